// Package exchange defines the message-level contract nodes use to discover
// their role and receive the current model, carried as binary-encoded maps
// over a persistent websocket connection.
package exchange

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/absmach/rotor/model"
)

var ErrProtocol = errors.New("protocol error")

// Kind is the closed set of request message types. Anything outside the set
// is answered with an error reply and the connection stays open.
type Kind string

const (
	KindRegister        Kind = "register"
	KindGetFeaturesDB   Kind = "get_features_db"
	KindGetAggregator   Kind = "get_aggregator"
	KindGetRoleAndModel Kind = "get_role_and_model"
)

type Status string

const (
	StatusOK      Status = "ok"
	StatusClosed  Status = "closed"
	StatusPending Status = "pending"
	StatusError   Status = "error"
)

const (
	RoleAggregator = "aggregator"
	RoleClient     = "client"
)

// Participant identifies one registered component.
type Participant struct {
	ComponentID string `cbor:"component_id" json:"component_id"`
	IP          string `cbor:"ip"           json:"ip"`
	Port        string `cbor:"port"         json:"port"`
}

type Request struct {
	Kind        Kind   `cbor:"msg_type"`
	ComponentID string `cbor:"component_id,omitempty"`
	IP          string `cbor:"ip,omitempty"`
	Port        string `cbor:"port,omitempty"`
}

type Reply struct {
	Status           Status            `cbor:"status"`
	Info             string            `cbor:"info,omitempty"`
	DatabaseFeatures map[string]string `cbor:"database_features,omitempty"`
	Aggregator       *Participant      `cbor:"aggregator,omitempty"`
	Role             string            `cbor:"role,omitempty"`
	Model            model.Transport   `cbor:"model,omitempty"`
}

func EncodeRequest(req Request) ([]byte, error) {
	data, err := cbor.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProtocol, err)
	}

	return data, nil
}

func DecodeRequest(data []byte) (Request, error) {
	var req Request
	if err := cbor.Unmarshal(data, &req); err != nil {
		return Request{}, fmt.Errorf("%w: %w", ErrProtocol, err)
	}

	return req, nil
}

func EncodeReply(rep Reply) ([]byte, error) {
	data, err := cbor.Marshal(rep)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProtocol, err)
	}

	return data, nil
}

func DecodeReply(data []byte) (Reply, error) {
	var rep Reply
	if err := cbor.Unmarshal(data, &rep); err != nil {
		return Reply{}, fmt.Errorf("%w: %w", ErrProtocol, err)
	}

	return rep, nil
}
