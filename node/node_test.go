package node_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/absmach/rotor/election"
	"github.com/absmach/rotor/exchange"
	"github.com/absmach/rotor/model"
	"github.com/absmach/rotor/node"
	"github.com/absmach/rotor/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupStore(t *testing.T) (*store.Database, store.Service) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test_"+uuid.NewString()+".db")
	db, err := store.NewDatabase(dbPath)
	require.Nil(t, err)
	t.Cleanup(func() { db.Close() })

	svc := store.NewService(db)
	require.Nil(t, svc.Init(context.Background()))

	return db, svc
}

func freePort(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.Nil(t, err)
	defer l.Close()

	_, port, err := net.SplitHostPort(l.Addr().String())
	require.Nil(t, err)

	return port
}

func waitForServer(t *testing.T, url string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for {
		client, err := exchange.Dial(ctx, url)
		if err == nil {
			client.Close()

			return
		}
		select {
		case <-ctx.Done():
			t.Fatalf("server at %s never came up: %s", url, err)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestStateString(t *testing.T) {
	cases := []struct {
		state node.State
		want  string
	}{
		{node.StateInit, "init"},
		{node.StateRegistering, "registering"},
		{node.StateWaitingThreshold, "waiting_threshold"},
		{node.StateElecting, "electing"},
		{node.StateRunningAggregator, "running_aggregator"},
		{node.StateRunningAgent, "running_agent"},
		{node.StateStopped, "stopped"},
		{node.State(99), "unknown"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.state.String())
	}
}

func TestLedgerAggregationQuorum(t *testing.T) {
	_, svc := setupStore(t)
	ctx := context.Background()

	for _, id := range []string{"agent-a", "agent-b"} {
		_, err := svc.RegisterAgent(ctx, id, id, "127.0.0.1", "50051")
		require.Nil(t, err)
	}

	// Half of two active agents: one ledger entry completes the round.
	require.Nil(t, svc.SaveLocalModel(ctx, store.LocalModel{
		ModelID:     uuid.NewString(),
		GeneratedAt: time.Now(),
		AgentID:     "agent-a",
		Round:       0,
		Performance: 0.9,
		NumSamples:  10,
	}))

	agg := node.NewLedgerAggregation(svc, 0.5, time.Millisecond, 0, discardLogger())

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	assert.Nil(t, agg.Run(ctx, 0))
}

func TestLedgerAggregationDeadline(t *testing.T) {
	_, svc := setupStore(t)
	ctx := context.Background()

	_, err := svc.RegisterAgent(ctx, "agent-a", "alpha", "127.0.0.1", "50051")
	require.Nil(t, err)

	// No ledger entries arrive; the deadline completes the round early.
	agg := node.NewLedgerAggregation(svc, 1.0, time.Millisecond, 20*time.Millisecond, discardLogger())
	assert.Nil(t, agg.Run(ctx, 0))
}

func TestLedgerAggregationCancelled(t *testing.T) {
	_, svc := setupStore(t)

	agg := node.NewLedgerAggregation(svc, 1.0, time.Millisecond, 0, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	assert.ErrorIs(t, agg.Run(ctx, 0), context.Canceled)
}

// TestRunSingleNodeAggregatorRound drives a full round with one node: it
// registers, reaches quorum alone, elects itself, serves the exchange
// endpoint, completes aggregation on deadline and advances the round.
func TestRunSingleNodeAggregatorRound(t *testing.T) {
	_, svc := setupStore(t)
	ctx := context.Background()

	trainer := model.NewStaticTrainer(1)
	aggregation := node.NewLedgerAggregation(svc, 1.0, time.Millisecond, 20*time.Millisecond, discardLogger())

	n := node.New(node.Config{
		ID:           "solo-node",
		Name:         "solo",
		IP:           "127.0.0.1",
		Port:         freePort(t),
		Threshold:    1,
		PollInterval: time.Millisecond,
		SettleDelay:  time.Millisecond,
		MaxRounds:    1,
	}, svc, trainer, aggregation, nil, discardLogger())

	require.Nil(t, n.Run(ctx))

	assert.Equal(t, node.StateStopped, n.State())
	assert.Equal(t, election.Aggregator, n.Role())

	round, err := svc.CurrentRound(ctx)
	require.Nil(t, err)
	assert.Equal(t, 1, round)

	// ResetForNewRound deactivated the aggregator record.
	_, err = svc.CurrentAggregator(ctx)
	assert.Error(t, err)
}

// roleHandler is a minimal aggregator-side handler for the agent path.
type roleHandler struct {
	self exchange.Participant
}

func (h roleHandler) Handle(_ context.Context, req exchange.Request) exchange.Reply {
	if req.Kind != exchange.KindGetRoleAndModel {
		return exchange.Reply{Status: exchange.StatusOK}
	}

	agg := h.self

	return exchange.Reply{
		Status:     exchange.StatusOK,
		Role:       exchange.RoleClient,
		Aggregator: &agg,
		Model:      model.Transport{"w": {0.1, 0.2}},
	}
}

// TestRunAgentRound rigs the election so another agent wins, serves that
// winner's exchange endpoint from the test, and checks the node runs the
// agent path: role poll, training, ledger entry, round end on completion.
func TestRunAgentRound(t *testing.T) {
	db, svc := setupStore(t)
	ctx := context.Background()

	port := freePort(t)
	winner := exchange.Participant{ComponentID: "agent-winner", IP: "127.0.0.1", Port: port}

	_, err := svc.RegisterAgent(ctx, winner.ComponentID, "winner", winner.IP, winner.Port)
	require.Nil(t, err)
	_, err = db.Exec(`UPDATE registered_agents SET random_value = 101 WHERE agent_id = ?`, winner.ComponentID)
	require.Nil(t, err)

	srvCtx, srvCancel := context.WithCancel(ctx)
	defer srvCancel()
	srvDone := make(chan error, 1)
	go func() {
		srvDone <- exchange.NewServer(winner.IP+":"+winner.Port, roleHandler{self: winner}, discardLogger()).Listen(srvCtx)
	}()
	waitForServer(t, "ws://"+winner.IP+":"+winner.Port+"/")

	// The round is already marked complete, so one training pass ends it.
	require.Nil(t, svc.MarkAggregationComplete(ctx))

	trainer := model.NewStaticTrainer(5)
	aggregation := node.NewLedgerAggregation(svc, 1.0, time.Millisecond, 20*time.Millisecond, discardLogger())

	n := node.New(node.Config{
		ID:           "agent-low",
		Name:         "low",
		IP:           "127.0.0.1",
		Port:         freePort(t),
		Threshold:    2,
		PollInterval: time.Millisecond,
		SettleDelay:  time.Millisecond,
		MaxRounds:    1,
	}, svc, trainer, aggregation, nil, discardLogger())

	runCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	require.Nil(t, n.Run(runCtx))

	assert.Equal(t, election.Agent, n.Role())

	count, err := svc.CountLocalModels(ctx, 0)
	require.Nil(t, err)
	assert.Equal(t, 1, count)

	srvCancel()
	select {
	case err := <-srvDone:
		assert.Nil(t, err)
	case <-time.After(5 * time.Second):
		t.Error("exchange server did not shut down")
	}
}
