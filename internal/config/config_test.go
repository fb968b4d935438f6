package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, "XOF", cfg.Currency)
	assert.Equal(t, int64(330), cfg.CardMinAmount)
	assert.False(t, cfg.EnableOrangeMoney)
	assert.Equal(t, 4, cfg.InventoryWorkers)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("CARD_MIN_AMOUNT", "500")
	t.Setenv("ENABLE_WAVE_MONEY", "true")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("SEED_FILE", "seed.yaml")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, int64(500), cfg.CardMinAmount)
	assert.True(t, cfg.EnableWaveMoney)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, "seed.yaml", cfg.SeedFile)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("CARD_MIN_AMOUNT", "lots")
	_, err := Load()
	assert.ErrorContains(t, err, "CARD_MIN_AMOUNT")

	t.Setenv("CARD_MIN_AMOUNT", "")
	t.Setenv("STORE_DRIVER", "sqlite")
	_, err = Load()
	assert.ErrorContains(t, err, "STORE_DRIVER")

	t.Setenv("STORE_DRIVER", "")
	t.Setenv("JWT_SECRET", "")
	_, err = Load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}
