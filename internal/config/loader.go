package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/richd0tcom/trashbin/internal/calendar"
)

const (
	configName      = "trashbin"
	configType      = "yaml"
	envPrefix       = "TRASHBIN"
	envKeySeparator = "_"
)

// LoadConfig loads configuration from file, env vars and defaults.
// If configPath is non-empty it is used as the config file; otherwise
// trashbin.yaml is looked up in the working directory and $HOME/.config.
// A missing config file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	applyDefaults(v)

	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.config")
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("server.port", DefaultPort)

	v.SetDefault("store.backend", DefaultBackend)
	v.SetDefault("store.mongo.uri", DefaultMongoURI)
	v.SetDefault("store.mongo.database", DefaultMongoDatabase)
	v.SetDefault("store.redis.addr", DefaultRedisAddr)
	v.SetDefault("store.redis.url", "")

	v.SetDefault("kafka.enabled", DefaultKafkaEnabled)
	v.SetDefault("kafka.brokers", DefaultKafkaBrokers)
	v.SetDefault("kafka.topic", DefaultKafkaTopic)
	v.SetDefault("kafka.group_id", DefaultKafkaGroupID)
	v.SetDefault("kafka.queue_size", DefaultQueueSize)

	v.SetDefault("worker.count", DefaultWorkerCount)
	v.SetDefault("worker.batch_size", DefaultWorkerBatchSize)
	v.SetDefault("worker.flush_interval", DefaultWorkerFlush)

	v.SetDefault("calendar.timezone", DefaultTimezone)
	v.SetDefault("calendar.epoch_year", calendar.DefaultEpochYear)
	v.SetDefault("calendar.start_hour", calendar.DefaultStartHour)
	v.SetDefault("calendar.end_hour", calendar.DefaultEndHour)

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.format", DefaultLogFormat)
}
