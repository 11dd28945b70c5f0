package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/example/transfer-booking/internal/catalog"
	"github.com/example/transfer-booking/internal/currency"
)

// ServerConfig captures all tunable parameters for the HTTP API process.
// Values are loaded from environment variables with defaults that let the
// binary run locally against a backend on localhost.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	BackendBaseURL string
	BackendTimeout time.Duration

	PlacesAPIKey   string
	PlacesEndpoint string

	OSRMEndpoint    string
	RoutingCacheTTL time.Duration

	RedisAddr     string
	RedisPassword string

	PGDSN string

	KafkaBrokers []string
	KafkaTopic   string

	StripeAPIKey string

	Location            *time.Location
	MinPrep             time.Duration
	ConfirmAutoRedirect bool
	ConfirmCountdown    int
	CurrencyBase        string
	CurrencyRates       map[string]float64
	CurrencyDefault     string
	AirportRadiusKm     map[string]float64
	SessionTTL          time.Duration

	LogLevel      string
	RunMigrations bool
}

// DefaultTimezone is where every catalog airport is; "today" for the
// pickup date is evaluated on this clock unless BOOKING_TIMEZONE is set.
const DefaultTimezone = "Europe/Istanbul"

func defaultServerConfig() ServerConfig {
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		loc = time.FixedZone("TRT", 3*60*60)
	}
	return ServerConfig{
		HTTPAddr:            ":8080",
		ReadTimeout:         5 * time.Second,
		WriteTimeout:        15 * time.Second,
		IdleTimeout:         120 * time.Second,
		ShutdownTimeout:     15 * time.Second,
		BackendBaseURL:      "http://localhost:3000",
		BackendTimeout:      10 * time.Second,
		PlacesEndpoint:      "https://maps.googleapis.com/maps/api/place",
		RoutingCacheTTL:     time.Hour,
		KafkaTopic:          "booking-events",
		Location:            loc,
		MinPrep:             2 * time.Hour,
		ConfirmAutoRedirect: true,
		ConfirmCountdown:    5,
		CurrencyBase:        "EUR",
		CurrencyDefault:     "EUR",
		SessionTTL:          30 * time.Minute,
		LogLevel:            "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	setStringFromEnv(&cfg.BackendBaseURL, "BACKEND_BASE_URL")
	setDurationFromEnv(&cfg.BackendTimeout, "BACKEND_TIMEOUT", &errs)

	cfg.PlacesAPIKey = strings.TrimSpace(os.Getenv("PLACES_API_KEY"))
	setStringFromEnv(&cfg.PlacesEndpoint, "PLACES_ENDPOINT")

	cfg.OSRMEndpoint = strings.TrimSpace(os.Getenv("OSRM_ENDPOINT"))
	setDurationFromEnv(&cfg.RoutingCacheTTL, "ROUTING_CACHE_TTL", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	cfg.PGDSN = os.Getenv("PG_DSN")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.StripeAPIKey = strings.TrimSpace(os.Getenv("STRIPE_API_KEY"))

	if v := strings.TrimSpace(os.Getenv("BOOKING_TIMEZONE")); v != "" {
		loc, err := time.LoadLocation(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid BOOKING_TIMEZONE: %w", err))
		} else {
			cfg.Location = loc
		}
	}
	setDurationFromEnv(&cfg.MinPrep, "MIN_PREP", &errs)
	setBoolFromEnv(&cfg.ConfirmAutoRedirect, "CONFIRM_AUTO_REDIRECT", &errs)
	setIntFromEnv(&cfg.ConfirmCountdown, "CONFIRM_COUNTDOWN", &errs)

	setStringFromEnv(&cfg.CurrencyBase, "CURRENCY_BASE")
	setStringFromEnv(&cfg.CurrencyDefault, "CURRENCY_DEFAULT")
	if v := os.Getenv("CURRENCY_RATES"); v != "" {
		rates, err := currency.ParseRates(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid CURRENCY_RATES: %w", err))
		} else {
			cfg.CurrencyRates = rates
		}
	}

	if v := os.Getenv("AIRPORT_RADIUS_KM"); v != "" {
		radii, err := catalog.ParseRadii(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid AIRPORT_RADIUS_KM: %w", err))
		} else {
			cfg.AirportRadiusKm = radii
		}
	}
	setDurationFromEnv(&cfg.SessionTTL, "SESSION_TTL", &errs)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if cfg.MinPrep <= 0 {
		errs = append(errs, fmt.Errorf("MIN_PREP must be > 0"))
	}
	if cfg.ConfirmCountdown <= 0 {
		errs = append(errs, fmt.Errorf("CONFIRM_COUNTDOWN must be > 0"))
	}
	if cfg.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_TTL must be > 0"))
	}
	rates := currency.NewRateTable(cfg.CurrencyBase, cfg.CurrencyRates)
	if !rates.Supports(cfg.CurrencyDefault) {
		errs = append(errs, fmt.Errorf("CURRENCY_DEFAULT %s has no rate", cfg.CurrencyDefault))
	}

	return cfg, errors.Join(errs...)
}

// ConsumerConfig configures the booking event consumer.
type ConsumerConfig struct {
	KafkaBrokers  []string
	KafkaTopic    string
	KafkaGroup    string
	RedisAddr     string
	RedisPassword string
	LedgerTTL     time.Duration
	MetricsAddr   string
	LogLevel      string
}

func LoadConsumerConfig() (ConsumerConfig, error) {
	cfg := ConsumerConfig{
		KafkaBrokers: []string{"localhost:9092"},
		KafkaTopic:   "booking-events",
		KafkaGroup:   "transfer-booking-ledger",
		RedisAddr:    "localhost:6379",
		MetricsAddr:  ":2112",
		LogLevel:     "info",
	}
	var errs []error

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")
	setStringFromEnv(&cfg.KafkaGroup, "KAFKA_GROUP")
	setStringFromEnv(&cfg.RedisAddr, "REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setDurationFromEnv(&cfg.LedgerTTL, "LEDGER_TTL", &errs)
	setStringFromEnv(&cfg.MetricsAddr, "METRICS_ADDR")
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if len(cfg.KafkaBrokers) == 0 {
		errs = append(errs, fmt.Errorf("KAFKA_BROKERS must list at least one broker"))
	}
	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setBoolFromEnv(target *bool, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = b
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
