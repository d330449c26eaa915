package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")

	cf, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cf.Port)
	assert.Equal(t, 100, cf.MaxItemQuantity)
	assert.Equal(t, 50, cf.MaxCartItems)
	assert.Equal(t, time.Hour, cf.RateLimitWindow)
	assert.Equal(t, 15*time.Minute, cf.ReservationTTL)
	assert.False(t, cf.TrustProxy)
	assert.True(t, cf.PriceEpsilonDecimal().Equal(decimal.RequireFromString("0.01")))
	assert.True(t, cf.MaxCartTotalDecimal().Equal(decimal.NewFromInt(50000)))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("TAX_RATE", "0.21")
	t.Setenv("RESERVATION_TTL", "30m")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("DB_DSN", "postgres://u@h/db")
	t.Setenv("TRUST_PROXY", "true")

	cf, err := Load()
	require.NoError(t, err)
	assert.True(t, cf.TaxRateDecimal().Equal(decimal.RequireFromString("0.21")))
	assert.Equal(t, 30*time.Minute, cf.ReservationTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cf.Brokers())
	assert.Equal(t, "postgres://u@h/db", cf.DSN())
	assert.True(t, cf.TrustProxy)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("PRICE_EPSILON", "abc")
	_, err = Load()
	require.Error(t, err)
}
