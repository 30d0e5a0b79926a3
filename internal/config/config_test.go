package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richd0tcom/trashbin/internal/calendar"
	"github.com/richd0tcom/trashbin/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "trashbin.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_EmptyFile_UsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultPort, cfg.Server.Port)
	assert.Equal(t, config.BackendMongo, cfg.Store.Backend)
	assert.Equal(t, config.DefaultMongoURI, cfg.Store.Mongo.URI)
	assert.Equal(t, config.DefaultMongoDatabase, cfg.Store.Mongo.Database)
	assert.Equal(t, config.DefaultRedisAddr, cfg.Store.Redis.Addr)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, config.DefaultKafkaTopic, cfg.Kafka.Topic)
	assert.Equal(t, config.DefaultWorkerCount, cfg.Worker.Count)
	assert.Equal(t, config.DefaultWorkerBatchSize, cfg.Worker.BatchSize)
	assert.Equal(t, config.DefaultWorkerFlush, cfg.Worker.FlushInterval)
	assert.Equal(t, calendar.DefaultOptions(), cfg.Calendar.Options())
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadConfig_ValidFile_Unmarshals(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `server:
  port: "9090"
store:
  backend: redis
  redis:
    addr: cache:6379
kafka:
  enabled: true
  brokers: k1:9092,k2:9092
worker:
  count: 2
  batch_size: 50
  flush_interval: 250ms
calendar:
  timezone: Asia/Manila
  epoch_year: 2024
  start_hour: 6
  end_hour: 20
logging:
  level: debug
  format: text
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, config.BackendRedis, cfg.Store.Backend)
	assert.Equal(t, "cache:6379", cfg.Store.Redis.Addr)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, "k1:9092,k2:9092", cfg.Kafka.Brokers)
	assert.Equal(t, 2, cfg.Worker.Count)
	assert.Equal(t, 250*time.Millisecond, cfg.Worker.FlushInterval)
	assert.Equal(t, calendar.Options{EpochYear: 2024, StartHour: 6, EndHour: 20}, cfg.Calendar.Options())
	assert.Equal(t, "text", cfg.Logging.Format)

	loc, err := cfg.Calendar.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Manila", loc.String())
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	t.Setenv("TRASHBIN_STORE_BACKEND", "memory")
	t.Setenv("TRASHBIN_WORKER_COUNT", "12")

	cfg, err := config.LoadConfig(writeConfig(t, "store:\n  backend: redis\n"))
	require.NoError(t, err)

	assert.Equal(t, config.BackendMemory, cfg.Store.Backend)
	assert.Equal(t, 12, cfg.Worker.Count)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"backend", "store:\n  backend: sqlite\n", config.ErrUnknownBackend},
		{"workers", "worker:\n  count: 0\n", config.ErrInvalidWorkers},
		{"hours", "calendar:\n  start_hour: 22\n  end_hour: 7\n", config.ErrInvalidCalendar},
		{"timezone", "calendar:\n  timezone: Mars/Olympus\n", config.ErrInvalidTimezone},
		{"log format", "logging:\n  format: xml\n", config.ErrInvalidLogFormat},
		{"brokers", "kafka:\n  enabled: true\n  brokers: \"\"\n", config.ErrMissingBrokers},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadConfig(writeConfig(t, tt.content))
			require.ErrorIs(t, err, tt.want)
		})
	}
}
