package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/transfer-booking/internal/backend"
	"github.com/example/transfer-booking/internal/catalog"
	"github.com/example/transfer-booking/internal/config"
	"github.com/example/transfer-booking/internal/confirm"
	"github.com/example/transfer-booking/internal/currency"
	"github.com/example/transfer-booking/internal/events"
	"github.com/example/transfer-booking/internal/form"
	httpapi "github.com/example/transfer-booking/internal/http"
	"github.com/example/transfer-booking/internal/logging"
	"github.com/example/transfer-booking/internal/payments"
	"github.com/example/transfer-booking/internal/places"
	"github.com/example/transfer-booking/internal/routing"
	"github.com/example/transfer-booking/internal/storage"
)

func main() {
	cfg, err := config.LoadServerConfig()
	logger := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.ServerConfig, logger *slog.Logger) error {
	cat := catalog.New(cfg.AirportRadiusKm)
	for _, a := range cat.Unmapped() {
		logger.Warn("airport has no radius entry, using default", "airport", a.ID, "name", a.Name, "radius_km", catalog.DefaultRadiusKm)
	}

	var rc *redis.Client
	if cfg.RedisAddr != "" {
		rc = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rc.Close()
		if err := rc.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, continuing", "addr", cfg.RedisAddr, "error", err)
		}
	}

	var calc routing.Calculator = routing.StraightLine{}
	if cfg.OSRMEndpoint != "" {
		calc = routing.NewOSRMClient(cfg.OSRMEndpoint, cfg.BackendTimeout)
	} else {
		logger.Warn("OSRM_ENDPOINT not set, using straight-line distances")
	}
	var cache routing.ResultCache = routing.NewCache(cfg.RoutingCacheTTL)
	if rc != nil {
		cache = routing.NewRedisCache(rc, cfg.RoutingCacheTTL)
	}
	calc = routing.Cached{Next: calc, Cache: cache}

	ledger, closeLedger, err := openLedger(ctx, cfg, rc, logger)
	if err != nil {
		return err
	}
	defer closeLedger()

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		publisher = kp
	}

	var verifier payments.Verifier
	if cfg.StripeAPIKey != "" {
		verifier = payments.NewStripeVerifier(cfg.StripeAPIKey)
	}

	be := backend.NewClient(cfg.BackendBaseURL, cfg.BackendTimeout)
	srv := httpapi.NewServer(httpapi.Config{
		FormDeps: form.Deps{
			Catalog: cat,
			Places:  places.NewGoogleClient(cfg.PlacesEndpoint, cfg.PlacesAPIKey, cfg.BackendTimeout),
			Routing: calc,
			Backend: be,
			Events:  publisher,
			Logger:  logger,
		},
		FormOptions: form.Options{Location: cfg.Location, MinPrep: cfg.MinPrep},
		PageDeps: confirm.Deps{
			Backend:  be,
			Currency: currency.NewRateTable(cfg.CurrencyBase, cfg.CurrencyRates),
			Ledger:   ledger,
			Payments: verifier,
			Events:   publisher,
			Logger:   logger,
		},
		PageOptions: confirm.Options{
			AutoRedirect: cfg.ConfirmAutoRedirect,
			Countdown:    cfg.ConfirmCountdown,
			Currency:     cfg.CurrencyDefault,
		},
		SessionTTL: cfg.SessionTTL,
		Logger:     logger,
	})

	go sweepLoop(ctx, srv, cfg.SessionTTL/2)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("transfer-booking listening", "addr", cfg.HTTPAddr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	srv.WSReg.CloseAll()
	return httpServer.Shutdown(shutdownCtx)
}

// openLedger picks the shared confirmation ledger: PostgreSQL, then Redis,
// then an in-process map.
func openLedger(ctx context.Context, cfg config.ServerConfig, rc *redis.Client, logger *slog.Logger) (storage.Ledger, func(), error) {
	if cfg.PGDSN != "" {
		pl, err := storage.NewPostgresLedger(cfg.PGDSN)
		if err != nil {
			return nil, nil, err
		}
		if cfg.RunMigrations {
			if err := pl.Migrate(ctx); err != nil {
				_ = pl.Close()
				return nil, nil, err
			}
			logger.Info("migration applied: booking_confirmations")
		}
		return pl, func() { _ = pl.Close() }, nil
	}
	if rc != nil {
		return storage.NewRedisLedger(rc, 0), func() {}, nil
	}
	logger.Warn("no shared ledger configured, confirmations are deduplicated per process only")
	return storage.NewMemoryLedger(), func() {}, nil
}

func sweepLoop(ctx context.Context, srv *httpapi.Server, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			srv.SweepSessions()
		}
	}
}
