package node

import (
	"context"
	"sync"

	"github.com/absmach/rotor/exchange"
	"github.com/absmach/rotor/model"
)

var _ exchange.Handler = (*aggregatorHandler)(nil)

// aggregatorHandler answers the exchange contract once a round's aggregator
// is fixed. Registration authority lives in the coordination store, so
// register here only acknowledges the connection; the role poll never
// returns pending because the election already happened.
type aggregatorHandler struct {
	self     exchange.Participant
	mu       sync.RWMutex
	snapshot model.Transport
}

func newAggregatorHandler(id, ip, port string, snapshot model.Transport) *aggregatorHandler {
	return &aggregatorHandler{
		self: exchange.Participant{
			ComponentID: id,
			IP:          ip,
			Port:        port,
		},
		snapshot: snapshot,
	}
}

// SetModel swaps the snapshot served to agents, e.g. after a combination
// pass produces a new global model.
func (h *aggregatorHandler) SetModel(snapshot model.Transport) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snapshot = snapshot
}

func (h *aggregatorHandler) Handle(_ context.Context, req exchange.Request) exchange.Reply {
	switch req.Kind {
	case exchange.KindRegister:
		return exchange.Reply{Status: exchange.StatusOK, Info: "registered"}
	case exchange.KindGetFeaturesDB:
		return exchange.Reply{Status: exchange.StatusOK, DatabaseFeatures: map[string]string{}}
	case exchange.KindGetAggregator:
		agg := h.self

		return exchange.Reply{Status: exchange.StatusOK, Aggregator: &agg}
	case exchange.KindGetRoleAndModel:
		h.mu.RLock()
		defer h.mu.RUnlock()

		role := exchange.RoleClient
		if req.ComponentID == h.self.ComponentID {
			role = exchange.RoleAggregator
		}
		agg := h.self

		return exchange.Reply{
			Status:     exchange.StatusOK,
			Role:       role,
			Aggregator: &agg,
			Model:      h.snapshot,
		}
	default:
		return exchange.Reply{Status: exchange.StatusError, Info: "unknown_msg_type"}
	}
}
