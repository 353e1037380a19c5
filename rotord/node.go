// Package rotord bundles the rotor processes behind a single daemon
// command, driven by the on-disk TOML configuration instead of
// environment variables.
package rotord

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/absmach/rotor"
	"github.com/absmach/rotor/model"
	"github.com/absmach/rotor/node"
	"github.com/absmach/rotor/pkg/prometheus"
	"github.com/absmach/rotor/store"
	"github.com/absmach/rotor/store/middleware"
)

var (
	logLevel   = "info"
	configPath = "rotor.toml"

	defAggregationMaxWait = 5 * time.Minute
	defMaxTrainings       = 5
)

func newLogger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return logger, nil
}

// StartNode runs a unified node from the given configuration until the
// context is cancelled or the node finishes its rounds.
func StartNode(ctx context.Context, cfg *rotor.Config, logger *slog.Logger) error {
	if err := cfg.Store.Validate(); err != nil {
		return fmt.Errorf("invalid store configuration: %w", err)
	}
	if err := cfg.Node.Validate(); err != nil {
		return fmt.Errorf("invalid node configuration: %w", err)
	}

	db, err := store.NewDatabase(cfg.Store.Path())
	if err != nil {
		return fmt.Errorf("failed to open coordination store: %w", err)
	}
	defer db.Close()

	svc := store.NewService(db)
	svc = middleware.Logging(logger, svc)
	counter, latency := prometheus.MakeMetrics("rotord", "store")
	svc = middleware.Metrics(counter, latency, svc)

	if err := svc.Init(ctx); err != nil {
		logger.Warn("Store initialization reported an error, continuing", slog.Any("error", err))
	}

	trainer := model.NewStaticTrainer(defMaxTrainings)
	aggregation := node.NewLedgerAggregation(svc, cfg.Node.AggregationThreshold, rotor.DefPollSeconds*time.Second, defAggregationMaxWait, logger)

	n := node.New(node.Config{
		ID:           uuid.NewString(),
		Name:         cfg.Node.Name,
		IP:           cfg.Node.IP,
		Port:         cfg.Node.Port,
		Threshold:    cfg.Node.Threshold,
		PollInterval: rotor.DefPollSeconds * time.Second,
	}, svc, trainer, aggregation, nil, logger)

	return n.Run(ctx)
}

var nodeCmd = []cobra.Command{
	{
		Use:   "start",
		Short: "Start node",
		Long:  `Start a unified node.`,
		Run: func(cmd *cobra.Command, _ []string) {
			logger, err := newLogger()
			if err != nil {
				cmd.PrintErrf("failed to start node: %s\n", err.Error())

				return
			}

			cfg, err := rotor.LoadConfig(configPath)
			if err != nil {
				cmd.PrintErrf("failed to start node: %s\n", err.Error())

				return
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if err := StartNode(ctx, cfg, logger); err != nil {
				cmd.PrintErrf("failed to start node: %s\n", err.Error())
			}
		},
	},
}

func NewNodeCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:   "node [start]",
		Short: "Node management",
		Long:  `Start a unified node for rotor.`,
	}

	for i := range nodeCmd {
		cmd.AddCommand(&nodeCmd[i])
	}

	cmd.PersistentFlags().StringVarP(
		&logLevel,
		"log-level",
		"l",
		logLevel,
		"Log level",
	)

	cmd.PersistentFlags().StringVarP(
		&configPath,
		"config",
		"c",
		configPath,
		"Path to the TOML configuration file",
	)

	return &cmd
}
