package model

// Update is one agent's contribution to a round.
type Update struct {
	AgentID    string
	NumSamples int
	Weights    Transport
}

// Combiner merges agent updates into a new global model.
type Combiner interface {
	Combine(updates []Update) (State, error)
}

type fedAvg struct{}

// NewFedAvg returns a sample-weighted averaging combiner.
func NewFedAvg() Combiner {
	return fedAvg{}
}

func (fedAvg) Combine(updates []Update) (State, error) {
	if len(updates) == 0 {
		return State{}, ErrNoUpdates
	}

	shape := updates[0].Weights
	combined := make(map[string][]float64, len(shape))
	for name, arr := range shape {
		combined[name] = make([]float64, len(arr))
	}

	var totalSamples float64
	for _, update := range updates {
		if len(update.Weights) != len(shape) {
			return State{}, ErrShapeMismatch
		}

		weight := float64(update.NumSamples)
		totalSamples += weight

		for name, arr := range update.Weights {
			dst, ok := combined[name]
			if !ok || len(dst) != len(arr) {
				return State{}, ErrShapeMismatch
			}
			for i, v := range arr {
				dst[i] += v * weight
			}
		}
	}

	if totalSamples > 0 {
		for _, arr := range combined {
			for i := range arr {
				arr[i] /= totalSamples
			}
		}
	}

	return State{Weights: combined}, nil
}
