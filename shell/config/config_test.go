package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"

	"github.com/AntonStoeckl/marketplace-checkout-go/shell/config"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func Test_Load_Without_File_Should_Use_Defaults(t *testing.T) {
	// act
	cfg, err := config.Load("")

	// assert
	assert.NoError(t, err)
	assert.Equal(t, config.AdapterPGXPool, cfg.Postgres.Adapter)
	assert.Equal(t, time.Hour, cfg.Postgres.MaxConnLifetime)
	assert.Equal(t, 6, cfg.Retry.MaxAttempts)
	assert.Equal(t, 10*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func Test_Load_Should_Read_Yaml_And_Let_Env_Override(t *testing.T) {
	// arrange
	path := writeConfigFile(t, `
postgres:
  adapter: sqlx.db
  dsn: postgres://app:app@db:5432/marketplace
  max_conns: 40
redis:
  addr: cache:6379
  ttl: 30s
kafka:
  brokers: [k1:9092, k2:9092]
  topic: orders
`)
	t.Setenv("MARKET_POSTGRES_MAX_CONNS", "80")
	t.Setenv("MARKET_LOG_LEVEL", "debug")

	// act
	cfg, err := config.Load(path)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, config.AdapterSQLX, cfg.Postgres.Adapter)
	assert.Equal(t, "postgres://app:app@db:5432/marketplace", cfg.Postgres.DSN)
	assert.Equal(t, 80, cfg.Postgres.MaxConns)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, 30*time.Second, cfg.Redis.TTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "orders", cfg.Kafka.Topic)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func Test_Load_When_Adapter_Is_Unknown_Should_Fail(t *testing.T) {
	// arrange
	t.Setenv("MARKET_POSTGRES_ADAPTER", "gorm")

	// act
	_, err := config.Load("")

	// assert
	assert.ErrorIs(t, err, config.ErrUnsupportedAdapter)
}

func Test_Load_When_File_Is_Missing_Should_Fail(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))

	assert.Error(t, err)
}

func Test_NewRedisClient_When_Addr_Is_Empty_Should_Return_Nil(t *testing.T) {
	assert.Nil(t, config.NewRedisClient(config.RedisConfig{}))

	client := config.NewRedisClient(config.RedisConfig{Addr: "localhost:6379", PoolSize: 5})
	assert.NotNil(t, client)
	assert.NoError(t, client.Close())
}

func Test_NewZapLogger_Should_Honor_Level(t *testing.T) {
	logger, err := config.NewZapLogger(config.LogConfig{Level: "warn"}, config.ServiceConfig{Name: "test"}, nil)

	assert.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	_, err = config.NewZapLogger(config.LogConfig{Level: "loud"}, config.ServiceConfig{}, nil)
	assert.Error(t, err)
}
