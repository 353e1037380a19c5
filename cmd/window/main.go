package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/absmach/rotor"
	"github.com/absmach/rotor/exchange"
	"github.com/absmach/rotor/model"
	"github.com/absmach/rotor/pkg/api"
	"github.com/absmach/rotor/window"
)

const (
	svcName = "window"
	pathEnv = ".env"
)

type envConfig struct {
	LogLevel   string `env:"ROTOR_LOG_LEVEL"            envDefault:"info"`
	InstanceID string `env:"ROTOR_INSTANCE_ID"`
	ConfigPath string `env:"ROTOR_WINDOW_CONFIG"        envDefault:"window.toml"`
	HTTPPort   string `env:"ROTOR_WINDOW_HTTP_PORT"     envDefault:"7071"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	cfg := envConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		log.Fatalf("failed to parse log level: %s", err.Error())
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	fileCfg, err := rotor.LoadConfig(cfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load window configuration: %w", err)
	}
	if err := fileCfg.Window.Validate(); err != nil {
		return fmt.Errorf("invalid window configuration: %w", err)
	}
	wcfg := fileCfg.Window

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

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

	logger.Info("Starting registration window server",
		slog.String("addr", wcfg.IP+":"+wcfg.Port),
		slog.Int("window_seconds", wcfg.WindowSeconds),
		slog.String("state_path", wcfg.StatePath),
	)

	g, ctx := errgroup.WithContext(ctx)

	srv := exchange.NewServer(wcfg.IP+":"+wcfg.Port, svc, logger)
	g.Go(func() error {
		return srv.Listen(ctx)
	})

	hs := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.MakeHandler(svcName, cfg.InstanceID),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		<-ctx.Done()

		return hs.Close()
	})
	g.Go(func() error {
		if err := hs.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("health server: %w", err)
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", svcName, err))

		return err
	}

	return nil
}
