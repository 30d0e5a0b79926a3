// Package cli holds the trashbin command tree.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/richd0tcom/trashbin/core/server"
	"github.com/richd0tcom/trashbin/internal/broker"
	"github.com/richd0tcom/trashbin/internal/config"
	"github.com/richd0tcom/trashbin/internal/db"
	"github.com/richd0tcom/trashbin/internal/logging"
)

type app struct {
	cfgFile string
	version string
	cfg     *config.Config
	logger  *slog.Logger
}

// NewRootCommand builds the trashbin command tree.
func NewRootCommand(version string) *cobra.Command {
	a := &app{version: version}

	root := &cobra.Command{
		Use:   "trashbin",
		Short: "Waste detection counters, charts and exports",
		Long: `trashbin ingests paper, can and PET bottle detections, keeps per-day
live counters and serves time-bucketed series and CSV exports.

Example usage:
  trashbin serve                               # run the HTTP API and ingest workers
  trashbin export --granularity weekly          # write this month's weekly CSV
  trashbin export --granularity daily --preview # print this week as a table
  trashbin rollover                             # archive yesterday's counters now`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./trashbin.yaml)")

	root.AddCommand(
		newServeCommand(a),
		newExportCommand(a),
		newRolloverCommand(a),
		newVersionCommand(a),
	)
	return root
}

// Execute runs the command tree and reports errors on stderr.
func Execute(version string) int {
	if err := NewRootCommand(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func (a *app) init(cmd *cobra.Command) error {
	if cmd.Name() == "version" {
		return nil
	}

	cfg, err := config.LoadConfig(a.cfgFile)
	if err != nil {
		return err
	}

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	a.cfg = cfg
	a.logger = logger
	return nil
}

// newServer assembles a server from the loaded config. Commands other than
// serve use it for its summary service and never start it.
func (a *app) newServer(ctx context.Context, ingest bool) (*server.Server, error) {
	loc, err := a.cfg.Calendar.Location()
	if err != nil {
		return nil, err
	}

	opts := []server.ConfigOption{
		server.WithLogger(a.logger),
		server.WithPort(a.cfg.Server.Port),
		server.WithCalendar(a.cfg.Calendar.Options(), loc),
		server.WithWorkerConfig(a.cfg.Worker.Count, a.cfg.Worker.BatchSize, a.cfg.Worker.FlushInterval),
	}

	switch a.cfg.Store.Backend {
	case config.BackendMongo:
		client, err := db.NewMongoConnection(ctx, a.cfg.Store.Mongo.URI)
		if err != nil {
			return nil, err
		}
		opts = append(opts, server.WithMongoDB(ctx, client, a.cfg.Store.Mongo.Database))
	case config.BackendRedis:
		opts = append(opts, server.WithRedis(ctx, a.cfg.Store.Redis.Addr, a.cfg.Store.Redis.URL))
	case config.BackendMemory:
		opts = append(opts, server.WithMemoryStore())
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, a.cfg.Store.Backend)
	}

	if ingest && a.cfg.Kafka.Enabled {
		opts = append(opts, server.WithKafka(broker.KafkaConfig{
			Brokers: a.cfg.Kafka.Brokers,
			Topic:   a.cfg.Kafka.Topic,
			GroupID: a.cfg.Kafka.GroupID,
		}))
	} else {
		opts = append(opts, server.WithChannelQueue(a.cfg.Kafka.QueueSize))
	}

	return server.NewServer(opts...)
}
