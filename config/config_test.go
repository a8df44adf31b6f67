package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SHIPPING_EXPRESS_COST", "")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, int64(0), cfg.Business.ShippingStandardCost)
	assert.Equal(t, int64(25000), cfg.Business.ShippingExpressCost)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("BULK_UPDATE_CONCURRENCY", "3")
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("LOG_LEVEL", "warn")

	cfg := Load()

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 3, cfg.Business.BulkUpdateConcurrency)
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, "warn", cfg.Observ.LogLevel)
}
