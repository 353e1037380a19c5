package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jmoiron/sqlx"

	pkgerrors "github.com/absmach/rotor/pkg/errors"
)

// ErrNoAgents is returned by SelectAggregator when the active set is empty.
var ErrNoAgents = pkgerrors.ErrNoAgents

type service struct {
	db *Database
}

func NewService(db *Database) Service {
	return &service{db: db}
}

func drawRank() int {
	return rand.Intn(RandMax-RandMin+1) + RandMin
}

func (s *service) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTxn, err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, rbErr)
		}

		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrTxn, err)
	}

	return nil
}

func (s *service) Init(_ context.Context) error {
	return s.db.Migrate()
}

func (s *service) RegisterAgent(ctx context.Context, id, name, ip, port string) (int, error) {
	if id == "" {
		return 0, pkgerrors.ErrEmptyID
	}

	rank := drawRank()
	now := time.Now().Format(TimeFormat)

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var existing string
		err := tx.GetContext(ctx, &existing, `SELECT agent_id FROM registered_agents WHERE agent_id = ?`, id)
		switch {
		case err == nil:
			query := `UPDATE registered_agents
				SET agent_name = ?, agent_ip = ?, agent_port = ?, random_value = ?,
					registration_time = ?, is_active = 1
				WHERE agent_id = ?`
			if _, err := tx.ExecContext(ctx, query, name, ip, port, rank, now, id); err != nil {
				return fmt.Errorf("%w: %w", ErrUpdate, err)
			}
		case errors.Is(err, sql.ErrNoRows):
			query := `INSERT INTO registered_agents
				(agent_id, agent_name, agent_ip, agent_port, random_value, registration_time, is_active)
				VALUES (?, ?, ?, ?, ?, ?, 1)`
			if _, err := tx.ExecContext(ctx, query, id, name, ip, port, rank, now); err != nil {
				return fmt.Errorf("%w: %w", ErrCreate, err)
			}
		default:
			return fmt.Errorf("%w: %w", ErrDBQuery, err)
		}

		// The counter tracks distinct active agents, so re-registration of
		// an existing id cannot drift it.
		query := `UPDATE round_control
			SET agents_registered = (SELECT COUNT(*) FROM registered_agents WHERE is_active = 1),
				last_update = ?
			WHERE id = 1`
		if _, err := tx.ExecContext(ctx, query, now); err != nil {
			return fmt.Errorf("%w: %w", ErrUpdate, err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return rank, nil
}

func (s *service) CountActiveAgents(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM registered_agents WHERE is_active = 1`)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return count, nil
}

type dbAgent struct {
	ID               string `db:"agent_id"`
	Name             string `db:"agent_name"`
	IP               string `db:"agent_ip"`
	Port             string `db:"agent_port"`
	RandomValue      int    `db:"random_value"`
	RegistrationTime string `db:"registration_time"`
	Active           bool   `db:"is_active"`
}

func (a dbAgent) toRecord() AgentRecord {
	return AgentRecord{
		ID:               a.ID,
		Name:             a.Name,
		IP:               a.IP,
		Port:             a.Port,
		RandomValue:      a.RandomValue,
		RegistrationTime: a.RegistrationTime,
		Active:           a.Active,
	}
}

func (s *service) SelectAggregator(ctx context.Context, round int) (AggregatorInfo, error) {
	var info AggregatorInfo

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		// Ties on random_value resolve to the smallest agent id so that
		// repeated invocations from independent nodes agree on the winner.
		query := `SELECT agent_id, agent_name, agent_ip, agent_port, random_value, registration_time, is_active
			FROM registered_agents
			WHERE is_active = 1
			ORDER BY random_value DESC, agent_id ASC
			LIMIT 1`

		var winner dbAgent
		err := tx.GetContext(ctx, &winner, query)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNoAgents
			}

			return fmt.Errorf("%w: %w", ErrDBQuery, err)
		}

		insert := `INSERT OR REPLACE INTO current_aggregator
			(round, aggregator_id, aggregator_ip, aggregator_port, selection_time, status)
			VALUES (?, ?, ?, ?, ?, 'active')`
		if _, err := tx.ExecContext(ctx, insert, round, winner.ID, winner.IP, winner.Port, time.Now().Format(TimeFormat)); err != nil {
			return fmt.Errorf("%w: %w", ErrCreate, err)
		}

		info = AggregatorInfo{
			Round:       round,
			ID:          winner.ID,
			Name:        winner.Name,
			IP:          winner.IP,
			Port:        winner.Port,
			RandomValue: winner.RandomValue,
		}

		return nil
	})
	if err != nil {
		return AggregatorInfo{}, err
	}

	return info, nil
}

func (s *service) CurrentAggregator(ctx context.Context) (AggregatorInfo, error) {
	query := `SELECT round, aggregator_id, aggregator_ip, aggregator_port
		FROM current_aggregator
		WHERE status = 'active'
		ORDER BY round DESC
		LIMIT 1`

	var row struct {
		Round int    `db:"round"`
		ID    string `db:"aggregator_id"`
		IP    string `db:"aggregator_ip"`
		Port  string `db:"aggregator_port"`
	}
	err := s.db.GetContext(ctx, &row, query)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AggregatorInfo{}, pkgerrors.ErrNotFound
		}

		return AggregatorInfo{}, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return AggregatorInfo{
		Round: row.Round,
		ID:    row.ID,
		IP:    row.IP,
		Port:  row.Port,
	}, nil
}

func (s *service) IncrementRound(ctx context.Context) (int, error) {
	var newRound int

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		update := `UPDATE round_control
			SET current_round = current_round + 1,
				agents_registered = 0,
				aggregation_complete = 0,
				last_update = ?
			WHERE id = 1`
		if _, err := tx.ExecContext(ctx, update, time.Now().Format(TimeFormat)); err != nil {
			return fmt.Errorf("%w: %w", ErrUpdate, err)
		}

		if err := tx.GetContext(ctx, &newRound, `SELECT current_round FROM round_control WHERE id = 1`); err != nil {
			return fmt.Errorf("%w: %w", ErrDBQuery, err)
		}

		if _, err := tx.ExecContext(ctx, `UPDATE registered_agents SET is_active = 1`); err != nil {
			return fmt.Errorf("%w: %w", ErrUpdate, err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return newRound, nil
}

func (s *service) CurrentRound(ctx context.Context) (int, error) {
	var round int
	err := s.db.GetContext(ctx, &round, `SELECT current_round FROM round_control WHERE id = 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}

		return 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return round, nil
}

func (s *service) MarkAggregationComplete(ctx context.Context) error {
	query := `UPDATE round_control
		SET aggregation_complete = 1,
			last_update = ?
		WHERE id = 1`
	if _, err := s.db.ExecContext(ctx, query, time.Now().Format(TimeFormat)); err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}

	return nil
}

func (s *service) AggregationComplete(ctx context.Context) (bool, error) {
	var complete bool
	err := s.db.GetContext(ctx, &complete, `SELECT aggregation_complete FROM round_control WHERE id = 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}

		return false, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return complete, nil
}

func (s *service) ResetForNewRound(ctx context.Context) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		var ids []string
		if err := tx.SelectContext(ctx, &ids, `SELECT agent_id FROM registered_agents WHERE is_active = 1`); err != nil {
			return fmt.Errorf("%w: %w", ErrDBQuery, err)
		}

		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, `UPDATE registered_agents SET random_value = ? WHERE agent_id = ?`, drawRank(), id); err != nil {
				return fmt.Errorf("%w: %w", ErrUpdate, err)
			}
		}

		if _, err := tx.ExecContext(ctx, `UPDATE current_aggregator SET status = 'inactive' WHERE status = 'active'`); err != nil {
			return fmt.Errorf("%w: %w", ErrUpdate, err)
		}

		return nil
	})
}

func (s *service) ListActiveAgents(ctx context.Context) ([]AgentRecord, error) {
	query := `SELECT agent_id, agent_name, agent_ip, agent_port, random_value, registration_time, is_active
		FROM registered_agents
		WHERE is_active = 1
		ORDER BY agent_id ASC`

	var rows []dbAgent
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	agents := make([]AgentRecord, 0, len(rows))
	for _, row := range rows {
		agents = append(agents, row.toRecord())
	}

	return agents, nil
}

func (s *service) RoundStatus(ctx context.Context) (RoundStatus, error) {
	query := `SELECT current_round, agents_registered, aggregation_complete, COALESCE(last_update, '') AS last_update
		FROM round_control WHERE id = 1`

	var row struct {
		CurrentRound        int    `db:"current_round"`
		AgentsRegistered    int    `db:"agents_registered"`
		AggregationComplete bool   `db:"aggregation_complete"`
		LastUpdate          string `db:"last_update"`
	}
	if err := s.db.GetContext(ctx, &row, query); err != nil {
		return RoundStatus{}, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return RoundStatus{
		CurrentRound:        row.CurrentRound,
		AgentsRegistered:    row.AgentsRegistered,
		AggregationComplete: row.AggregationComplete,
		LastUpdate:          row.LastUpdate,
	}, nil
}

func (s *service) SaveLocalModel(ctx context.Context, m LocalModel) error {
	query := `INSERT INTO local_models VALUES (?, ?, ?, ?, ?, ?)`
	genTime := m.GeneratedAt.Format(TimeFormat)
	if _, err := s.db.ExecContext(ctx, query, m.ModelID, genTime, m.AgentID, m.Round, m.Performance, m.NumSamples); err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return nil
}

func (s *service) CountLocalModels(ctx context.Context, round int) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM local_models WHERE round = ?`, round); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return count, nil
}

func (s *service) SaveClusterModel(ctx context.Context, m ClusterModel) error {
	query := `INSERT INTO cluster_models VALUES (?, ?, ?, ?, ?)`
	genTime := m.GeneratedAt.Format(TimeFormat)
	if _, err := s.db.ExecContext(ctx, query, m.ModelID, genTime, m.AggregatorID, m.Round, m.NumSamples); err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return nil
}
