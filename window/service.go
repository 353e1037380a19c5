// Package window implements the companion election path for ad-hoc
// single-host testing: a fixed-duration registration window followed by a
// uniform random choice among registered participants. Unlike the
// store-backed protocol there is no ranking; every participant is equally
// likely to be elected.
package window

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/absmach/rotor/exchange"
	"github.com/absmach/rotor/model"
)

var _ exchange.Handler = (*Service)(nil)

// Service accepts registrations while the window is open and answers role
// polls once the background election has run.
type Service struct {
	mu        sync.Mutex
	statePath string
	state     State
	opened    time.Time
	window    time.Duration
	features  map[string]string
	model     model.Transport
	logger    *slog.Logger
}

func NewService(statePath string, window time.Duration, features map[string]string, globalModel model.Transport, logger *slog.Logger) (*Service, error) {
	st, err := loadState(statePath)
	if err != nil {
		return nil, err
	}

	return &Service{
		statePath: statePath,
		state:     st,
		opened:    time.Now(),
		window:    window,
		features:  features,
		model:     globalModel,
		logger:    logger,
	}, nil
}

// Start arms the election timer. When the window elapses, one participant
// is chosen uniformly at random and persisted; if nobody registered the
// window closes with no aggregator.
func (s *Service) Start(ctx context.Context) {
	go func() {
		timer := time.NewTimer(s.window)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.electAggregator()
		}
	}()
}

func (s *Service) electAggregator() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.state.Participants) == 0 {
		s.logger.Info("Registration window ended with no participants")

		return
	}
	if s.state.Aggregator != nil {
		return
	}

	chosen := s.state.Participants[rand.Intn(len(s.state.Participants))]
	s.state.Aggregator = &chosen
	if err := saveState(s.statePath, s.state); err != nil {
		s.logger.Error("Failed to persist elected aggregator", slog.Any("error", err))
	}

	s.logger.Info("Registration window ended, aggregator elected",
		slog.String("component_id", chosen.ComponentID),
		slog.Int("participants", len(s.state.Participants)),
	)
}

// WindowOpen reports whether registrations are still accepted.
func (s *Service) WindowOpen() bool {
	return time.Since(s.opened) <= s.window
}

func (s *Service) Handle(_ context.Context, req exchange.Request) exchange.Reply {
	switch req.Kind {
	case exchange.KindRegister:
		return s.handleRegister(req)
	case exchange.KindGetFeaturesDB:
		return exchange.Reply{
			Status:           exchange.StatusOK,
			DatabaseFeatures: s.features,
		}
	case exchange.KindGetAggregator:
		s.mu.Lock()
		defer s.mu.Unlock()

		return exchange.Reply{
			Status:     exchange.StatusOK,
			Aggregator: s.state.Aggregator,
		}
	case exchange.KindGetRoleAndModel:
		return s.handleRoleAndModel(req)
	default:
		return exchange.Reply{
			Status: exchange.StatusError,
			Info:   "unknown_msg_type",
		}
	}
}

func (s *Service) handleRegister(req exchange.Request) exchange.Reply {
	if !s.WindowOpen() {
		return exchange.Reply{
			Status: exchange.StatusClosed,
			Info:   "registration_window_ended",
		}
	}

	participant := exchange.Participant{
		ComponentID: req.ComponentID,
		IP:          req.IP,
		Port:        req.Port,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.state.Participants {
		if p == participant {
			return exchange.Reply{Status: exchange.StatusOK, Info: "registered"}
		}
	}

	s.state.Participants = append(s.state.Participants, participant)
	if err := saveState(s.statePath, s.state); err != nil {
		s.logger.Error("Failed to persist participant", slog.Any("error", err))
	}

	s.logger.Info("Participant registered",
		slog.String("component_id", participant.ComponentID),
		slog.Int("participants", len(s.state.Participants)),
	)

	return exchange.Reply{Status: exchange.StatusOK, Info: "registered"}
}

func (s *Service) handleRoleAndModel(req exchange.Request) exchange.Reply {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Aggregator == nil {
		return exchange.Reply{
			Status: exchange.StatusPending,
			Info:   "aggregator_not_selected_yet",
		}
	}

	role := exchange.RoleClient
	if req.ComponentID == s.state.Aggregator.ComponentID {
		role = exchange.RoleAggregator
	}

	return exchange.Reply{
		Status:     exchange.StatusOK,
		Role:       role,
		Aggregator: s.state.Aggregator,
		Model:      s.model,
	}
}
