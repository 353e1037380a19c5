package model

import "context"

// StaticTrainer is a stand-in training collaborator: it serves a fixed
// small model and terminates after a set number of training passes. Useful
// for protocol testing and deployments where the real training backend is
// wired in separately.
type StaticTrainer struct {
	MaxTrainings int
	performance  float64
}

func NewStaticTrainer(maxTrainings int) *StaticTrainer {
	return &StaticTrainer{MaxTrainings: maxTrainings}
}

func (t *StaticTrainer) Init(context.Context) (State, error) {
	return State{
		Weights: map[string][]float64{
			"w": {0.1, 0.2, 0.3},
			"b": {0.0},
		},
	}, nil
}

func (t *StaticTrainer) Train(_ context.Context, s State, _ bool) (State, error) {
	t.performance += 0.1
	if t.performance > 1 {
		t.performance = 1
	}

	return s, nil
}

func (t *StaticTrainer) Performance(context.Context, State, bool) (float64, error) {
	return t.performance, nil
}

func (t *StaticTrainer) ShouldTerminate(trainCount, _ int) bool {
	return trainCount >= t.MaxTrainings
}
