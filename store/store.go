package store

import (
	"context"
	"time"
)

// TimeFormat is the timestamp layout persisted in the store. It is part of
// the on-disk compatibility surface shared with earlier deployments.
const TimeFormat = "01/02/2006 15:04:05"

const (
	// RandMin and RandMax bound the election rank drawn for every agent at
	// registration and at every round reset.
	RandMin = 1
	RandMax = 100
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// AgentRecord is one row of the shared agent registry. Records are never
// physically deleted, only deactivated.
type AgentRecord struct {
	ID               string `json:"agent_id"`
	Name             string `json:"agent_name"`
	IP               string `json:"agent_ip"`
	Port             string `json:"agent_port"`
	RandomValue      int    `json:"random_value"`
	RegistrationTime string `json:"registration_time"`
	Active           bool   `json:"is_active"`
}

// AggregatorInfo describes the aggregator elected for a round. Name is only
// known at selection time; lookups against the aggregator table leave it
// empty.
type AggregatorInfo struct {
	Round       int    `json:"round"`
	ID          string `json:"aggregator_id"`
	Name        string `json:"aggregator_name,omitempty"`
	IP          string `json:"aggregator_ip"`
	Port        string `json:"aggregator_port"`
	RandomValue int    `json:"random_value,omitempty"`
}

// RoundStatus mirrors the singleton round_control row.
type RoundStatus struct {
	CurrentRound        int    `json:"current_round"`
	AgentsRegistered    int    `json:"agents_registered"`
	AggregationComplete bool   `json:"aggregation_complete"`
	LastUpdate          string `json:"last_update"`
}

// LocalModel is a ledger entry for a model trained by one agent.
type LocalModel struct {
	ModelID     string
	GeneratedAt time.Time
	AgentID     string
	Round       int
	Performance float64
	NumSamples  int
}

// ClusterModel is a ledger entry for a model combined by an aggregator.
type ClusterModel struct {
	ModelID      string
	GeneratedAt  time.Time
	AggregatorID string
	Round        int
	NumSamples   int
}

// Service is the coordination store contract. All operations are safe under
// concurrent access from independent node processes: every read-modify-write
// sequence executes inside a single transaction.
type Service interface {
	// Init creates the schema. It is idempotent and safe to call from every
	// node at startup.
	Init(ctx context.Context) error

	// RegisterAgent upserts an agent record with a freshly drawn random
	// value in [RandMin, RandMax], marks it active, and refreshes the
	// distinct active-agent counter. It returns the drawn value.
	RegisterAgent(ctx context.Context, id, name, ip, port string) (int, error)

	CountActiveAgents(ctx context.Context) (int, error)

	// SelectAggregator picks the active agent with the maximum random value
	// (ties resolve to the lexicographically smallest id) and persists an
	// active aggregator record for the round. It returns ErrNoAgents when
	// the active set is empty. The rule is deterministic over the persisted
	// agent set, so concurrent callers observe the same winner.
	SelectAggregator(ctx context.Context, round int) (AggregatorInfo, error)

	// CurrentAggregator resolves to the highest round with an active record.
	CurrentAggregator(ctx context.Context) (AggregatorInfo, error)

	// IncrementRound bumps the round counter, zeroes the registration
	// counter and completion flag, and reactivates all agents, as one
	// atomic unit. It returns the new round number.
	IncrementRound(ctx context.Context) (int, error)

	CurrentRound(ctx context.Context) (int, error)

	MarkAggregationComplete(ctx context.Context) error
	AggregationComplete(ctx context.Context) (bool, error)

	// ResetForNewRound redraws a fresh random value for every active agent
	// and deactivates the previously active aggregator record.
	ResetForNewRound(ctx context.Context) error

	ListActiveAgents(ctx context.Context) ([]AgentRecord, error)
	RoundStatus(ctx context.Context) (RoundStatus, error)

	SaveLocalModel(ctx context.Context, m LocalModel) error
	SaveClusterModel(ctx context.Context, m ClusterModel) error

	// CountLocalModels reports how many local-model ledger entries exist
	// for a round.
	CountLocalModels(ctx context.Context, round int) (int, error)
}
