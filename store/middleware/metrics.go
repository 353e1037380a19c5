package middleware

import (
	"context"
	"time"

	"github.com/go-kit/kit/metrics"

	"github.com/absmach/rotor/store"
)

var _ store.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     store.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc store.Service) store.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) instrument(method string) func() {
	begin := time.Now()

	return func() {
		mm.counter.With("method", method).Add(1)
		mm.latency.With("method", method).Observe(time.Since(begin).Seconds())
	}
}

func (mm *metricsMiddleware) Init(ctx context.Context) error {
	defer mm.instrument("init")()

	return mm.svc.Init(ctx)
}

func (mm *metricsMiddleware) RegisterAgent(ctx context.Context, id, name, ip, port string) (int, error) {
	defer mm.instrument("register-agent")()

	return mm.svc.RegisterAgent(ctx, id, name, ip, port)
}

func (mm *metricsMiddleware) CountActiveAgents(ctx context.Context) (int, error) {
	defer mm.instrument("count-active-agents")()

	return mm.svc.CountActiveAgents(ctx)
}

func (mm *metricsMiddleware) SelectAggregator(ctx context.Context, round int) (store.AggregatorInfo, error) {
	defer mm.instrument("select-aggregator")()

	return mm.svc.SelectAggregator(ctx, round)
}

func (mm *metricsMiddleware) CurrentAggregator(ctx context.Context) (store.AggregatorInfo, error) {
	defer mm.instrument("current-aggregator")()

	return mm.svc.CurrentAggregator(ctx)
}

func (mm *metricsMiddleware) IncrementRound(ctx context.Context) (int, error) {
	defer mm.instrument("increment-round")()

	return mm.svc.IncrementRound(ctx)
}

func (mm *metricsMiddleware) CurrentRound(ctx context.Context) (int, error) {
	defer mm.instrument("current-round")()

	return mm.svc.CurrentRound(ctx)
}

func (mm *metricsMiddleware) MarkAggregationComplete(ctx context.Context) error {
	defer mm.instrument("mark-aggregation-complete")()

	return mm.svc.MarkAggregationComplete(ctx)
}

func (mm *metricsMiddleware) AggregationComplete(ctx context.Context) (bool, error) {
	defer mm.instrument("aggregation-complete")()

	return mm.svc.AggregationComplete(ctx)
}

func (mm *metricsMiddleware) ResetForNewRound(ctx context.Context) error {
	defer mm.instrument("reset-for-new-round")()

	return mm.svc.ResetForNewRound(ctx)
}

func (mm *metricsMiddleware) ListActiveAgents(ctx context.Context) ([]store.AgentRecord, error) {
	defer mm.instrument("list-active-agents")()

	return mm.svc.ListActiveAgents(ctx)
}

func (mm *metricsMiddleware) RoundStatus(ctx context.Context) (store.RoundStatus, error) {
	defer mm.instrument("round-status")()

	return mm.svc.RoundStatus(ctx)
}

func (mm *metricsMiddleware) SaveLocalModel(ctx context.Context, m store.LocalModel) error {
	defer mm.instrument("save-local-model")()

	return mm.svc.SaveLocalModel(ctx, m)
}

func (mm *metricsMiddleware) CountLocalModels(ctx context.Context, round int) (int, error) {
	defer mm.instrument("count-local-models")()

	return mm.svc.CountLocalModels(ctx, round)
}

func (mm *metricsMiddleware) SaveClusterModel(ctx context.Context, m store.ClusterModel) error {
	defer mm.instrument("save-cluster-model")()

	return mm.svc.SaveClusterModel(ctx, m)
}
