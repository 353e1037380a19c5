package rotord

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/absmach/rotor"
	"github.com/absmach/rotor/exchange"
	"github.com/absmach/rotor/model"
	"github.com/absmach/rotor/window"
)

// StartWindow runs the registration-window server from the given
// configuration until the context is cancelled.
func StartWindow(ctx context.Context, cfg *rotor.Config, logger *slog.Logger) error {
	if err := cfg.Window.Validate(); err != nil {
		return fmt.Errorf("invalid window configuration: %w", err)
	}
	wcfg := cfg.Window

	trainer := model.NewStaticTrainer(0)
	initial, err := trainer.Init(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize global model: %w", err)
	}

	svc, err := window.NewService(
		wcfg.StatePath,
		time.Duration(wcfg.WindowSeconds)*time.Second,
		wcfg.DatabaseFeatures,
		model.ToTransport(initial),
		logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create window service: %w", err)
	}
	svc.Start(ctx)

	return exchange.NewServer(wcfg.IP+":"+wcfg.Port, svc, logger).Listen(ctx)
}

var windowCmd = []cobra.Command{
	{
		Use:   "start",
		Short: "Start window",
		Long:  `Start the registration-window server.`,
		Run: func(cmd *cobra.Command, _ []string) {
			logger, err := newLogger()
			if err != nil {
				cmd.PrintErrf("failed to start window: %s\n", err.Error())

				return
			}

			cfg, err := rotor.LoadConfig(configPath)
			if err != nil {
				cmd.PrintErrf("failed to start window: %s\n", err.Error())

				return
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if err := StartWindow(ctx, cfg, logger); err != nil {
				cmd.PrintErrf("failed to start window: %s\n", err.Error())
			}
		},
	},
}

func NewWindowCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:   "window [start]",
		Short: "Window management",
		Long:  `Start the registration-window server for rotor.`,
	}

	for i := range windowCmd {
		cmd.AddCommand(&windowCmd[i])
	}

	return &cmd
}
