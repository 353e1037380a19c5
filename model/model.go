// Package model carries the transmissible model representation and the
// collaborator contracts for training. The training routine itself is
// pluggable; the coordination core only moves model snapshots around.
package model

import (
	"context"
	"errors"
)

var (
	ErrNoUpdates      = errors.New("no updates to aggregate")
	ErrShapeMismatch  = errors.New("update shapes do not match")
	ErrEmptyTransport = errors.New("empty transport map")
)

// Transport is the wire form of a model: named parameter arrays.
type Transport map[string][]float64

// State is a trainable model snapshot.
type State struct {
	Weights map[string][]float64
}

// ToTransport converts a model state into its transmissible map form. The
// arrays are copied, so mutating the transport does not touch the state.
func ToTransport(s State) Transport {
	t := make(Transport, len(s.Weights))
	for name, arr := range s.Weights {
		cp := make([]float64, len(arr))
		copy(cp, arr)
		t[name] = cp
	}

	return t
}

// FromTransport reconstructs a model state from its map form.
// ToTransport(FromTransport(t)) preserves t exactly.
func FromTransport(t Transport) (State, error) {
	if len(t) == 0 {
		return State{}, ErrEmptyTransport
	}

	weights := make(map[string][]float64, len(t))
	for name, arr := range t {
		cp := make([]float64, len(arr))
		copy(cp, arr)
		weights[name] = cp
	}

	return State{Weights: weights}, nil
}

// Trainer is the external training collaborator. The core treats it as
// opaque: it initializes, trains, scores, and decides termination.
type Trainer interface {
	Init(ctx context.Context) (State, error)
	Train(ctx context.Context, s State, initial bool) (State, error)
	Performance(ctx context.Context, s State, local bool) (float64, error)
	ShouldTerminate(trainCount, globalModelCount int) bool
}
