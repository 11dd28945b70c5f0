package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/example/transfer-booking/internal/config"
	"github.com/example/transfer-booking/internal/logging"
	"github.com/example/transfer-booking/internal/models"
	"github.com/example/transfer-booking/internal/storage"
)

var (
	msgsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_consumed_total",
		Help: "Total booking event messages consumed",
	})
	msgsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_invalid_total",
		Help: "Total invalid messages received",
	})
	redisUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_redis_updates_total",
		Help: "Total successful redis updates",
	})
	redisErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_redis_errors_total",
		Help: "Total redis errors",
	})
)

func init() {
	prometheus.MustRegister(msgsConsumed, msgsInvalid, redisUpdates, redisErrors)
}

func main() {
	cfg, err := config.LoadConsumerConfig()
	logger := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	radapter := &redisAdapter{c: rc, ttl: cfg.LedgerTTL}

	// metrics and health server
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := rc.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis not ready", 503)
				return
			}
			w.WriteHeader(200)
			w.Write([]byte("ready"))
		})
		logger.Info("metrics/health listening", "addr", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic, GroupID: cfg.KafkaGroup, MinBytes: 1, MaxBytes: 10e6})
	defer func() {
		_ = r.Close()
		_ = rc.Close()
	}()

	logger.Info("consumer listening", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers, "group", cfg.KafkaGroup)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down consumer")
				return
			}
			logger.Warn("kafka read error", "error", err, "backoff", backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		if err := handleMessage(ctx, radapter, m.Value, logger); err != nil {
			logger.Error("redis update failed", "key", string(m.Key), "error", err)
		}
	}
}

// handleMessage mirrors accepted bookings into the confirmation ledger so
// every server instance sees them as already confirmed.
func handleMessage(ctx context.Context, rc LedgerUpdater, value []byte, logger *slog.Logger) error {
	msgsConsumed.Inc()

	var ev models.BookingEvent
	if err := json.Unmarshal(value, &ev); err != nil || ev.UUID == "" {
		msgsInvalid.Inc()
		logger.Warn("invalid message", "error", err)
		return nil
	}
	if ev.Type != models.EventAccepted {
		return nil
	}
	if err := updateRedisWithRetry(ctx, rc, &ev, 3, 200*time.Millisecond); err != nil {
		redisErrors.Inc()
		return err
	}
	redisUpdates.Inc()
	return nil
}

// LedgerUpdater is the subset of redis operations the consumer needs.
type LedgerUpdater interface {
	SetNX(ctx context.Context, key string, value any) error
	HSet(ctx context.Context, key string, values map[string]any) error
}

type redisAdapter struct {
	c   *redis.Client
	ttl time.Duration
}

func (r *redisAdapter) SetNX(ctx context.Context, key string, value any) error {
	return r.c.SetNX(ctx, key, value, r.ttl).Err()
}

func (r *redisAdapter) HSet(ctx context.Context, key string, values map[string]any) error {
	return r.c.HSet(ctx, key, values).Err()
}

func statusKey(uuid string) string { return "booking:status:" + uuid }

// updateRedisWithRetry records the claim and the accepted status, retrying
// with exponential backoff. SETNX keeps an existing claim untouched.
func updateRedisWithRetry(ctx context.Context, rc LedgerUpdater, ev *models.BookingEvent, attempts int, delay time.Duration) error {
	at := time.Unix(ev.At, 0).UTC().Format(time.RFC3339)
	for i := 0; i < attempts; i++ {
		if err := rc.SetNX(ctx, storage.ConfirmationKey(ev.UUID), at); err != nil {
			if i == attempts-1 {
				return err
			}
			time.Sleep(delay)
			delay *= 2
			continue
		}
		if err := rc.HSet(ctx, statusKey(ev.UUID), map[string]any{"status": ev.Status, "at": ev.At}); err != nil {
			if i == attempts-1 {
				return err
			}
			time.Sleep(delay)
			delay *= 2
			continue
		}
		return nil
	}
	return nil
}
