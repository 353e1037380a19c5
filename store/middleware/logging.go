package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/absmach/rotor/store"
)

var _ store.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    store.Service
}

func Logging(logger *slog.Logger, svc store.Service) store.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) Init(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Initialize store failed", args...)

			return
		}
		lm.logger.Info("Initialize store completed successfully", args...)
	}(time.Now())

	return lm.svc.Init(ctx)
}

func (lm *loggingMiddleware) RegisterAgent(ctx context.Context, id, name, ip, port string) (rank int, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("agent",
				slog.String("id", id),
				slog.String("name", name),
			),
			slog.Int("random_value", rank),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Register agent failed", args...)

			return
		}
		lm.logger.Info("Register agent completed successfully", args...)
	}(time.Now())

	return lm.svc.RegisterAgent(ctx, id, name, ip, port)
}

func (lm *loggingMiddleware) CountActiveAgents(ctx context.Context) (count int, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("count", count),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Count active agents failed", args...)

			return
		}
		lm.logger.Debug("Count active agents completed successfully", args...)
	}(time.Now())

	return lm.svc.CountActiveAgents(ctx)
}

func (lm *loggingMiddleware) SelectAggregator(ctx context.Context, round int) (info store.AggregatorInfo, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("round", round),
			slog.Group("aggregator",
				slog.String("id", info.ID),
				slog.String("name", info.Name),
				slog.Int("random_value", info.RandomValue),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Select aggregator failed", args...)

			return
		}
		lm.logger.Info("Select aggregator completed successfully", args...)
	}(time.Now())

	return lm.svc.SelectAggregator(ctx, round)
}

func (lm *loggingMiddleware) CurrentAggregator(ctx context.Context) (info store.AggregatorInfo, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("aggregator",
				slog.String("id", info.ID),
				slog.Int("round", info.Round),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get current aggregator failed", args...)

			return
		}
		lm.logger.Debug("Get current aggregator completed successfully", args...)
	}(time.Now())

	return lm.svc.CurrentAggregator(ctx)
}

func (lm *loggingMiddleware) IncrementRound(ctx context.Context) (round int, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("round", round),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Increment round failed", args...)

			return
		}
		lm.logger.Info("Increment round completed successfully", args...)
	}(time.Now())

	return lm.svc.IncrementRound(ctx)
}

func (lm *loggingMiddleware) CurrentRound(ctx context.Context) (round int, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("round", round),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get current round failed", args...)

			return
		}
		lm.logger.Debug("Get current round completed successfully", args...)
	}(time.Now())

	return lm.svc.CurrentRound(ctx)
}

func (lm *loggingMiddleware) MarkAggregationComplete(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Mark aggregation complete failed", args...)

			return
		}
		lm.logger.Info("Mark aggregation complete completed successfully", args...)
	}(time.Now())

	return lm.svc.MarkAggregationComplete(ctx)
}

func (lm *loggingMiddleware) AggregationComplete(ctx context.Context) (complete bool, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Bool("complete", complete),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Check aggregation complete failed", args...)

			return
		}
		lm.logger.Debug("Check aggregation complete completed successfully", args...)
	}(time.Now())

	return lm.svc.AggregationComplete(ctx)
}

func (lm *loggingMiddleware) ResetForNewRound(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Reset for new round failed", args...)

			return
		}
		lm.logger.Info("Reset for new round completed successfully", args...)
	}(time.Now())

	return lm.svc.ResetForNewRound(ctx)
}

func (lm *loggingMiddleware) ListActiveAgents(ctx context.Context) (agents []store.AgentRecord, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("count", len(agents)),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List active agents failed", args...)

			return
		}
		lm.logger.Debug("List active agents completed successfully", args...)
	}(time.Now())

	return lm.svc.ListActiveAgents(ctx)
}

func (lm *loggingMiddleware) RoundStatus(ctx context.Context) (status store.RoundStatus, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("round", status.CurrentRound),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get round status failed", args...)

			return
		}
		lm.logger.Debug("Get round status completed successfully", args...)
	}(time.Now())

	return lm.svc.RoundStatus(ctx)
}

func (lm *loggingMiddleware) SaveLocalModel(ctx context.Context, m store.LocalModel) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("model",
				slog.String("id", m.ModelID),
				slog.String("agent_id", m.AgentID),
				slog.Int("round", m.Round),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Save local model failed", args...)

			return
		}
		lm.logger.Info("Save local model completed successfully", args...)
	}(time.Now())

	return lm.svc.SaveLocalModel(ctx, m)
}

func (lm *loggingMiddleware) CountLocalModels(ctx context.Context, round int) (count int, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("round", round),
			slog.Int("count", count),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Count local models failed", args...)

			return
		}
		lm.logger.Debug("Count local models completed successfully", args...)
	}(time.Now())

	return lm.svc.CountLocalModels(ctx, round)
}

func (lm *loggingMiddleware) SaveClusterModel(ctx context.Context, m store.ClusterModel) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("model",
				slog.String("id", m.ModelID),
				slog.String("aggregator_id", m.AggregatorID),
				slog.Int("round", m.Round),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Save cluster model failed", args...)

			return
		}
		lm.logger.Info("Save cluster model completed successfully", args...)
	}(time.Now())

	return lm.svc.SaveClusterModel(ctx, m)
}
