// Package election implements the randomized-ranking leader election rule:
// every registered agent carries a uniform random rank, and the aggregator
// for a round is the active agent with the maximum rank. The rule is a
// deterministic function of the persisted agent set, so any node may invoke
// it once quorum is reached and all nodes resolve the same winner.
package election

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/absmach/rotor/store"
)

const (
	// DefPollInterval is how often a node re-reads the active agent count
	// while waiting for quorum.
	DefPollInterval = 2 * time.Second

	// SettleDelay gives slower readers time to observe the persisted
	// selection before any node acts on its role.
	SettleDelay = time.Second
)

var ErrQuorumTimeout = errors.New("quorum was not reached before the deadline")

type Role uint8

const (
	Undetermined Role = iota
	Aggregator
	Agent
)

func (r Role) String() string {
	switch r {
	case Aggregator:
		return "aggregator"
	case Agent:
		return "agent"
	default:
		return "undetermined"
	}
}

// Store is the subset of the coordination store the election path reads.
type Store interface {
	CountActiveAgents(ctx context.Context) (int, error)
	CurrentRound(ctx context.Context) (int, error)
	SelectAggregator(ctx context.Context, round int) (store.AggregatorInfo, error)
}

// Result fixes a node's role for one round.
type Result struct {
	Role       Role
	Round      int
	Aggregator store.AggregatorInfo
}

// WaitForQuorum polls the active agent count at the given interval until it
// reaches threshold. Transient read failures are retried silently on the
// next tick. A zero maxWait means no deadline: the wait then ends only with
// quorum or ctx cancellation.
func WaitForQuorum(ctx context.Context, s Store, threshold int, interval, maxWait time.Duration, logger *slog.Logger) error {
	if interval <= 0 {
		interval = DefPollInterval
	}

	var deadline <-chan time.Time
	if maxWait > 0 {
		timer := time.NewTimer(maxWait)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		count, err := s.CountActiveAgents(ctx)
		if err != nil {
			logger.Warn("Failed to read active agent count", slog.Any("error", err))
		} else {
			logger.Info("Waiting for quorum", slog.Int("registered", count), slog.Int("threshold", threshold))
			if count >= threshold {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return ErrQuorumTimeout
		case <-ticker.C:
		}
	}
}

// Elect runs the selection rule for the current round and fixes the role of
// the node identified by nodeID. Repeated invocations on a stable agent set
// return the same winner regardless of which node asks.
func Elect(ctx context.Context, s Store, nodeID string) (Result, error) {
	round, err := s.CurrentRound(ctx)
	if err != nil {
		return Result{}, err
	}

	info, err := s.SelectAggregator(ctx, round)
	if err != nil {
		return Result{}, err
	}

	role := Agent
	if info.ID == nodeID {
		role = Aggregator
	}

	return Result{
		Role:       role,
		Round:      round,
		Aggregator: info,
	}, nil
}
