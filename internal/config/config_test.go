package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 5*time.Minute, cfg.PaymentGrace)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, int64(4900), cfg.CODFee)
	assert.False(t, cfg.KafkaEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("PAYMENT_GRACE_SEC", "600")
	t.Setenv("COD_FEE", "0")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.Equal(t, 10*time.Minute, cfg.PaymentGrace)
	assert.Zero(t, cfg.CODFee)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"REDIS_DB":            "x",
		"PAYMENT_GRACE_SEC":   "0",
		"SWEEP_INTERVAL_SEC":  "120",
		"CHECKOUT_RATE_LIMIT": "-1",
		"COD_FEE":             "-5",
		"SHIPROCKET_EMAIL":    "ops@example.com",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
