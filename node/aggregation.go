package node

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/absmach/rotor/store"
)

var _ Aggregation = (*ledgerAggregation)(nil)

// ledgerAggregation waits until enough agents have recorded a local model
// for the round, taking the configured fraction of the active set as the
// participation quorum. The combination algorithm itself is the trainer
// side's concern; this collaborator only decides when the round is done.
type ledgerAggregation struct {
	store     store.Service
	threshold float64
	interval  time.Duration
	maxWait   time.Duration
	logger    *slog.Logger
}

func NewLedgerAggregation(svc store.Service, threshold float64, interval, maxWait time.Duration, logger *slog.Logger) Aggregation {
	if interval <= 0 {
		interval = 2 * time.Second
	}

	return &ledgerAggregation{
		store:     svc,
		threshold: threshold,
		interval:  interval,
		maxWait:   maxWait,
		logger:    logger,
	}
}

func (a *ledgerAggregation) Run(ctx context.Context, round int) error {
	var deadline <-chan time.Time
	if a.maxWait > 0 {
		timer := time.NewTimer(a.maxWait)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		active, err := a.store.CountActiveAgents(ctx)
		if err != nil {
			a.logger.Warn("Failed to read active agent count", slog.Any("error", err))
		} else {
			needed := int(math.Ceil(a.threshold * float64(active)))
			submitted, err := a.store.CountLocalModels(ctx, round)
			if err != nil {
				a.logger.Warn("Failed to read ledger count", slog.Any("error", err))
			} else {
				a.logger.Info("Waiting for local models",
					slog.Int("round", round),
					slog.Int("submitted", submitted),
					slog.Int("needed", needed),
				)
				if needed > 0 && submitted >= needed {
					return nil
				}
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			a.logger.Warn("Aggregation wait deadline reached, completing round early", slog.Int("round", round))

			return nil
		case <-ticker.C:
		}
	}
}
