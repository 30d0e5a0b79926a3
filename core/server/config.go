package server

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/richd0tcom/trashbin/internal/broker"
	"github.com/richd0tcom/trashbin/internal/calendar"
	"github.com/richd0tcom/trashbin/internal/db"
	"github.com/richd0tcom/trashbin/internal/domain"
)

// Store is a backend that holds both the event log and the live counters.
type Store interface {
	domain.EventStore
	domain.CounterStore
}

type ServerConfig struct {
	MessageQueue  broker.MessageQueue
	Store         Store
	Listener      domain.ChangeListener
	WorkerCount   int
	BatchSize     int
	FlushInterval time.Duration
	Port          string
	Calendar      calendar.Options
	Location      *time.Location
	Clock         func() time.Time
	Logger        *slog.Logger
}

type ConfigOption func(*ServerConfig) error

// WithLogger must come before options that build components which log.
func WithLogger(logger *slog.Logger) ConfigOption {
	return func(config *ServerConfig) error {
		config.Logger = logger
		return nil
	}
}

func WithKafka(cfg broker.KafkaConfig) ConfigOption {
	return func(config *ServerConfig) error {
		mq, err := broker.NewKafkaQueue(cfg, config.Logger)
		if err != nil {
			return err
		}
		config.MessageQueue = mq
		return nil
	}
}

// WithChannelQueue runs ingest through an in-process queue holding up to
// size batches.
func WithChannelQueue(size int) ConfigOption {
	return func(config *ServerConfig) error {
		config.MessageQueue = broker.NewChannelQueue(size, config.Logger)
		return nil
	}
}

func WithMongoDB(ctx context.Context, client *mongo.Client, database string) ConfigOption {
	return func(config *ServerConfig) error {
		store, err := db.NewMongoStore(ctx, client, database)
		if err != nil {
			return err
		}
		config.Store = store
		return nil
	}
}

// WithRedis connects to addr, or to url when it is set.
func WithRedis(ctx context.Context, addr, url string) ConfigOption {
	return func(config *ServerConfig) error {
		var store *db.RedisStore
		if url != "" {
			s, err := db.NewRedisStoreWithURL(url)
			if err != nil {
				return err
			}
			store = s
		} else {
			store = db.NewRedisStore(addr)
		}
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return err
		}
		config.Store = store
		return nil
	}
}

func WithMemoryStore() ConfigOption {
	return WithStore(db.NewMemoryStore())
}

func WithStore(store Store) ConfigOption {
	return func(config *ServerConfig) error {
		config.Store = store
		return nil
	}
}

func WithListener(listener domain.ChangeListener) ConfigOption {
	return func(config *ServerConfig) error {
		config.Listener = listener
		return nil
	}
}

func WithWorkerConfig(workerCount, batchSize int, flushInterval time.Duration) ConfigOption {
	return func(config *ServerConfig) error {
		config.WorkerCount = workerCount
		config.BatchSize = batchSize
		config.FlushInterval = flushInterval
		return nil
	}
}

func WithCalendar(opts calendar.Options, loc *time.Location) ConfigOption {
	return func(config *ServerConfig) error {
		if err := opts.Validate(); err != nil {
			return err
		}
		config.Calendar = opts
		config.Location = loc
		return nil
	}
}

func WithClock(now func() time.Time) ConfigOption {
	return func(config *ServerConfig) error {
		config.Clock = now
		return nil
	}
}

func WithPort(port string) ConfigOption {
	return func(config *ServerConfig) error {
		config.Port = port
		return nil
	}
}
