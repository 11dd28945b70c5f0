package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerConfigDefaults(t *testing.T) {
	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 2*time.Hour, cfg.MinPrep)
	assert.True(t, cfg.ConfirmAutoRedirect)
	assert.Equal(t, 5, cfg.ConfirmCountdown)
	assert.Nil(t, cfg.AirportRadiusKm)
	assert.False(t, cfg.RunMigrations)
	assert.Equal(t, "Europe/Istanbul", cfg.Location.String())
}

func TestDefaultLocationIsAheadOfUTC(t *testing.T) {
	cfg, err := LoadServerConfig()
	require.NoError(t, err)

	// 22:00 UTC on the 16th is already the 17th in Istanbul
	now := time.Date(2026, 10, 16, 22, 0, 0, 0, time.UTC)
	local := now.In(cfg.Location)
	assert.Equal(t, 17, local.Day())
	assert.Equal(t, 1, local.Hour())
}

func TestLoadServerConfigFromEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("BOOKING_TIMEZONE", "UTC")
	t.Setenv("CONFIRM_AUTO_REDIRECT", "false")
	t.Setenv("CURRENCY_RATES", "USD:1.08,TRY:35.2")
	t.Setenv("CURRENCY_DEFAULT", "USD")
	t.Setenv("AIRPORT_RADIUS_KM", "Istanbul Airport=80;Trabzon Airport=40")
	t.Setenv("MIGRATE", "TRUE")

	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "UTC", cfg.Location.String())
	assert.False(t, cfg.ConfirmAutoRedirect)
	assert.Equal(t, 1.08, cfg.CurrencyRates["USD"])
	assert.Equal(t, map[string]float64{"Istanbul Airport": 80, "Trabzon Airport": 40}, cfg.AirportRadiusKm)
	assert.True(t, cfg.RunMigrations)
}

func TestLoadServerConfigJoinsErrors(t *testing.T) {
	t.Setenv("HTTP_READ_TIMEOUT", "soon")
	t.Setenv("CONFIRM_COUNTDOWN", "0")
	t.Setenv("CURRENCY_DEFAULT", "JPY")
	t.Setenv("BOOKING_TIMEZONE", "Nowhere/Special")

	_, err := LoadServerConfig()
	require.Error(t, err)
	for _, key := range []string{"HTTP_READ_TIMEOUT", "CONFIRM_COUNTDOWN", "JPY", "BOOKING_TIMEZONE"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestLoadConsumerConfig(t *testing.T) {
	t.Setenv("KAFKA_GROUP", "g1")
	t.Setenv("LEDGER_TTL", "720h")
	cfg, err := LoadConsumerConfig()
	require.NoError(t, err)
	assert.Equal(t, "g1", cfg.KafkaGroup)
	assert.Equal(t, 720*time.Hour, cfg.LedgerTTL)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
}
