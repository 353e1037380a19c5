package main

import (
	"context"
	"flag"
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
	"github.com/absmach/rotor/model"
	"github.com/absmach/rotor/node"
	"github.com/absmach/rotor/notify"
	"github.com/absmach/rotor/pkg/api"
	"github.com/absmach/rotor/pkg/prometheus"
	"github.com/absmach/rotor/store"
	"github.com/absmach/rotor/store/middleware"
)

const (
	svcName = "node"
	pathEnv = ".env"
)

type envConfig struct {
	LogLevel             string        `env:"ROTOR_LOG_LEVEL"              envDefault:"info"`
	InstanceID           string        `env:"ROTOR_INSTANCE_ID"`
	Name                 string        `env:"ROTOR_NODE_NAME"`
	IP                   string        `env:"ROTOR_NODE_IP"                envDefault:"127.0.0.1"`
	Port                 string        `env:"ROTOR_NODE_PORT"              envDefault:"50051"`
	Threshold            int           `env:"ROTOR_THRESHOLD"              envDefault:"4"`
	AggregationThreshold float64       `env:"ROTOR_AGGREGATION_THRESHOLD"  envDefault:"0.5"`
	StorePath            string        `env:"ROTOR_STORE_PATH"             envDefault:"rotor.db"`
	PollInterval         time.Duration `env:"ROTOR_POLL_INTERVAL"          envDefault:"2s"`
	QuorumMaxWait        time.Duration `env:"ROTOR_QUORUM_MAX_WAIT"        envDefault:"0s"`
	AggregationMaxWait   time.Duration `env:"ROTOR_AGGREGATION_MAX_WAIT"   envDefault:"5m"`
	MaxRounds            int           `env:"ROTOR_MAX_ROUNDS"             envDefault:"0"`
	MaxTrainings         int           `env:"ROTOR_MAX_TRAININGS"          envDefault:"5"`
	HTTPPort             string        `env:"ROTOR_HTTP_PORT"              envDefault:"7070"`
	MQTTAddress          string        `env:"ROTOR_MQTT_ADDRESS"`
	MQTTQoS              uint8         `env:"ROTOR_MQTT_QOS"               envDefault:"1"`
	MQTTTimeout          time.Duration `env:"ROTOR_MQTT_TIMEOUT"           envDefault:"30s"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		nameFlag      string
		portFlag      string
		thresholdFlag int
	)
	flag.StringVar(&nameFlag, "name", "", "Node name (overrides ROTOR_NODE_NAME)")
	flag.StringVar(&portFlag, "port", "", "Node exchange port (overrides ROTOR_NODE_PORT)")
	flag.IntVar(&thresholdFlag, "threshold", 0, "Registration quorum (overrides ROTOR_THRESHOLD)")
	flag.Parse()

	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	cfg := envConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}
	if nameFlag != "" {
		cfg.Name = nameFlag
	}
	if portFlag != "" {
		cfg.Port = portFlag
	}
	if thresholdFlag > 0 {
		cfg.Threshold = thresholdFlag
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	if cfg.Name == "" {
		cfg.Name = svcName + "-" + cfg.InstanceID
	}
	if cfg.Threshold < rotor.MinThreshold {
		return fmt.Errorf("registration threshold must be at least %d, got %d", rotor.MinThreshold, cfg.Threshold)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		log.Fatalf("failed to parse log level: %s", err.Error())
	}
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	db, err := store.NewDatabase(cfg.StorePath)
	if err != nil {
		return fmt.Errorf("failed to open coordination store: %w", err)
	}
	defer db.Close()

	svc := store.NewService(db)
	svc = middleware.Logging(logger, svc)
	counter, latency := prometheus.MakeMetrics(svcName, "store")
	svc = middleware.Metrics(counter, latency, svc)

	// Initialization races with other nodes starting against the same
	// file; an already-initialized store is fine.
	if err := svc.Init(ctx); err != nil {
		logger.Warn("Store initialization reported an error, continuing", slog.Any("error", err))
	}

	var notifier node.Notifier
	if cfg.MQTTAddress != "" {
		n, err := notify.New(cfg.MQTTAddress, svcName+"-"+cfg.InstanceID, cfg.MQTTQoS, cfg.MQTTTimeout, logger)
		if err != nil {
			return fmt.Errorf("failed to connect announcement broker: %w", err)
		}
		defer func() {
			if err := n.Disconnect(context.Background()); err != nil {
				logger.Warn("Failed to disconnect announcement broker", slog.Any("error", err))
			}
		}()
		notifier = n
	}

	trainer := model.NewStaticTrainer(cfg.MaxTrainings)
	aggregation := node.NewLedgerAggregation(svc, cfg.AggregationThreshold, cfg.PollInterval, cfg.AggregationMaxWait, logger)

	n := node.New(node.Config{
		ID:            cfg.InstanceID,
		Name:          cfg.Name,
		IP:            cfg.IP,
		Port:          cfg.Port,
		Threshold:     cfg.Threshold,
		PollInterval:  cfg.PollInterval,
		MaxQuorumWait: cfg.QuorumMaxWait,
		MaxRounds:     cfg.MaxRounds,
	}, svc, trainer, aggregation, notifier, logger)

	logger.Info("Starting unified node",
		slog.String("id", cfg.InstanceID),
		slog.String("name", cfg.Name),
		slog.String("ip", cfg.IP),
		slog.String("port", cfg.Port),
		slog.Int("threshold", cfg.Threshold),
	)

	g, ctx := errgroup.WithContext(ctx)

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

	g.Go(func() error {
		defer cancel()

		return n.Run(ctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", svcName, err))

		return err
	}

	return nil
}
