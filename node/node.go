// Package node runs the per-process role state machine: register with the
// coordination store, wait for quorum, elect, then execute either the
// aggregator path or the agent path for the round.
package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/absmach/rotor/election"
	"github.com/absmach/rotor/exchange"
	"github.com/absmach/rotor/model"
	"github.com/absmach/rotor/store"
)

// State is the node lifecycle. Transitions only move forward within a
// round; the loop re-enters Electing for the next round.
type State uint8

const (
	StateInit State = iota
	StateRegistering
	StateWaitingThreshold
	StateElecting
	StateRunningAggregator
	StateRunningAgent
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRegistering:
		return "registering"
	case StateWaitingThreshold:
		return "waiting_threshold"
	case StateElecting:
		return "electing"
	case StateRunningAggregator:
		return "running_aggregator"
	case StateRunningAgent:
		return "running_agent"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Aggregation is the model-combination collaborator executed by the elected
// aggregator once its exchange endpoints are up.
type Aggregation interface {
	Run(ctx context.Context, round int) error
}

// Notifier publishes round announcements. Announcements are best-effort:
// polling against the store remains the synchronization mechanism.
type Notifier interface {
	AggregatorSelected(ctx context.Context, info store.AggregatorInfo) error
	AggregationComplete(ctx context.Context, round int) error
}

type noopNotifier struct{}

func (noopNotifier) AggregatorSelected(context.Context, store.AggregatorInfo) error { return nil }
func (noopNotifier) AggregationComplete(context.Context, int) error                 { return nil }

// Config fixes one node process. No process-wide state: everything the
// state machine needs is handed in here and through New.
type Config struct {
	ID            string
	Name          string
	IP            string
	Port          string
	Threshold     int
	PollInterval  time.Duration
	MaxQuorumWait time.Duration
	SettleDelay   time.Duration
	MaxRounds     int
}

type Node struct {
	cfg         Config
	store       store.Service
	trainer     model.Trainer
	aggregation Aggregation
	notifier    Notifier
	logger      *slog.Logger

	state State
	role  election.Role
	round int
}

func New(cfg Config, svc store.Service, trainer model.Trainer, aggregation Aggregation, notifier Notifier, logger *slog.Logger) *Node {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = election.DefPollInterval
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = election.SettleDelay
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}

	return &Node{
		cfg:         cfg,
		store:       svc,
		trainer:     trainer,
		aggregation: aggregation,
		notifier:    notifier,
		logger:      logger,
		state:       StateInit,
	}
}

func (n *Node) State() State { return n.state }

func (n *Node) Role() election.Role { return n.role }

// Run drives the state machine until the trainer's termination predicate
// holds, MaxRounds is exhausted, or ctx is cancelled. Any unhandled error
// moves the node to Stopped and is returned.
func (n *Node) Run(ctx context.Context) error {
	defer func() { n.state = StateStopped }()

	if err := n.register(ctx); err != nil {
		n.logger.Error("Registration failed", slog.Any("error", err))

		return err
	}

	rounds := 0
	for {
		if n.cfg.MaxRounds > 0 && rounds >= n.cfg.MaxRounds {
			n.logger.Info("Max rounds reached, stopping", slog.Int("rounds", rounds))

			return nil
		}

		done, err := n.runRound(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				n.logger.Info("Node stopped by user")

				return nil
			}
			n.logger.Error("Round failed", slog.Any("error", err), slog.Int("round", n.round))

			return err
		}
		if done {
			return nil
		}

		rounds++
	}
}

func (n *Node) register(ctx context.Context) error {
	n.state = StateRegistering

	rank, err := n.store.RegisterAgent(ctx, n.cfg.ID, n.cfg.Name, n.cfg.IP, n.cfg.Port)
	if err != nil {
		return fmt.Errorf("failed to register agent: %w", err)
	}

	n.logger.Info("Node registered",
		slog.String("id", n.cfg.ID),
		slog.String("name", n.cfg.Name),
		slog.Int("random_value", rank),
	)

	return nil
}

// runRound executes one full election + exchange cycle. It returns true
// when the node should stop for good.
func (n *Node) runRound(ctx context.Context) (bool, error) {
	n.state = StateWaitingThreshold
	if err := election.WaitForQuorum(ctx, n.store, n.cfg.Threshold, n.cfg.PollInterval, n.cfg.MaxQuorumWait, n.logger); err != nil {
		return false, fmt.Errorf("quorum wait: %w", err)
	}

	n.state = StateElecting
	result, err := election.Elect(ctx, n.store, n.cfg.ID)
	if err != nil {
		return false, fmt.Errorf("election: %w", err)
	}
	n.role = result.Role
	n.round = result.Round

	n.logger.Info("Role assigned",
		slog.String("role", n.role.String()),
		slog.Int("round", n.round),
		slog.Group("aggregator",
			slog.String("id", result.Aggregator.ID),
			slog.String("name", result.Aggregator.Name),
		),
	)

	// Let the persisted selection propagate to slower readers before
	// anyone opens connections.
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-time.After(n.cfg.SettleDelay):
	}

	switch n.role {
	case election.Aggregator:
		if err := n.runAggregator(ctx, result); err != nil {
			return false, err
		}

		return false, nil
	case election.Agent:
		return n.runAgent(ctx, result)
	default:
		return false, fmt.Errorf("unknown role %q", n.role)
	}
}

// runAggregator serves the exchange endpoints, runs the aggregation
// collaborator, then advances the store to the next round.
func (n *Node) runAggregator(ctx context.Context, result election.Result) error {
	n.state = StateRunningAggregator
	n.logger.Info("Starting as aggregator", slog.Int("round", n.round))

	if err := n.notifier.AggregatorSelected(ctx, result.Aggregator); err != nil {
		n.logger.Warn("Failed to announce aggregator selection", slog.Any("error", err))
	}

	initial, err := n.trainer.Init(ctx)
	if err != nil {
		return fmt.Errorf("model init: %w", err)
	}

	srvCtx, stop := context.WithCancel(ctx)
	defer stop()

	handler := newAggregatorHandler(n.cfg.ID, n.cfg.IP, n.cfg.Port, model.ToTransport(initial))
	srv := exchange.NewServer(n.cfg.IP+":"+n.cfg.Port, handler, n.logger)

	g, srvCtx := errgroup.WithContext(srvCtx)
	g.Go(func() error {
		return srv.Listen(srvCtx)
	})
	g.Go(func() error {
		defer stop()

		if err := n.aggregation.Run(srvCtx, n.round); err != nil {
			return fmt.Errorf("aggregation: %w", err)
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := n.store.MarkAggregationComplete(ctx); err != nil {
		return err
	}
	if err := n.notifier.AggregationComplete(ctx, n.round); err != nil {
		n.logger.Warn("Failed to announce aggregation completion", slog.Any("error", err))
	}

	newRound, err := n.store.IncrementRound(ctx)
	if err != nil {
		return err
	}
	if err := n.store.ResetForNewRound(ctx); err != nil {
		return err
	}

	n.logger.Info("Round complete", slog.Int("round", n.round), slog.Int("next_round", newRound))

	return nil
}

// runAgent connects to the elected aggregator and runs the train/exchange
// loop until the termination predicate holds or the round completes.
func (n *Node) runAgent(ctx context.Context, result election.Result) (bool, error) {
	n.state = StateRunningAgent

	info, err := n.store.CurrentAggregator(ctx)
	if err != nil {
		return false, fmt.Errorf("no aggregator information: %w", err)
	}

	n.logger.Info("Starting as agent",
		slog.Int("round", n.round),
		slog.Group("aggregator",
			slog.String("id", info.ID),
			slog.String("ip", info.IP),
			slog.String("port", info.Port),
		),
	)

	client, err := exchange.Dial(ctx, "ws://"+info.IP+":"+info.Port+"/")
	if err != nil {
		return false, err
	}
	defer client.Close()

	assignment, err := client.WaitForRole(ctx, n.cfg.ID, n.cfg.PollInterval)
	if err != nil {
		// The peer going away ends the session, not the node.
		if errors.Is(err, exchange.ErrConnection) {
			n.logger.Warn("Aggregator connection lost", slog.Any("error", err))

			return false, nil
		}

		return false, err
	}

	state, err := model.FromTransport(assignment.Model)
	if err != nil {
		return false, fmt.Errorf("invalid model snapshot: %w", err)
	}

	return n.trainLoop(ctx, state)
}

func (n *Node) trainLoop(ctx context.Context, state model.State) (bool, error) {
	trainCount := 0
	gmCount := 1

	for !n.trainer.ShouldTerminate(trainCount, gmCount) {
		trained, err := n.trainer.Train(ctx, state, trainCount == 0)
		if err != nil {
			return false, fmt.Errorf("training: %w", err)
		}
		trainCount++

		perf, err := n.trainer.Performance(ctx, trained, true)
		if err != nil {
			return false, fmt.Errorf("performance: %w", err)
		}

		entry := store.LocalModel{
			ModelID:     uuid.NewString(),
			GeneratedAt: time.Now(),
			AgentID:     n.cfg.ID,
			Round:       n.round,
			Performance: perf,
			NumSamples:  len(state.Weights),
		}
		if err := n.store.SaveLocalModel(ctx, entry); err != nil {
			return false, err
		}

		n.logger.Info("Training complete",
			slog.Int("train_count", trainCount),
			slog.Float64("performance", perf),
		)

		complete, err := n.store.AggregationComplete(ctx)
		if err != nil {
			n.logger.Warn("Failed to check aggregation status", slog.Any("error", err))
		} else if complete {
			// Round over; the next election decides the new aggregator.
			return false, nil
		}

		state = trained

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(n.cfg.PollInterval):
		}
	}

	n.logger.Info("Termination predicate satisfied", slog.Int("train_count", trainCount))

	return true, nil
}
