package model_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/absmach/rotor/model"
)

func TestTransportRoundTrip(t *testing.T) {
	tr := model.Transport{
		"w": {0.1, 0.2, 0.3},
		"b": {0.5},
	}

	s, err := model.FromTransport(tr)
	require.Nil(t, err)
	assert.Equal(t, map[string][]float64(tr), s.Weights)

	back := model.ToTransport(s)
	assert.Equal(t, tr, back)

	// Copies are deep: mutating the transport leaves the state intact.
	back["w"][0] = 99
	assert.Equal(t, 0.1, s.Weights["w"][0])
}

func TestFromTransportEmpty(t *testing.T) {
	_, err := model.FromTransport(model.Transport{})
	assert.ErrorIs(t, err, model.ErrEmptyTransport)

	_, err = model.FromTransport(nil)
	assert.ErrorIs(t, err, model.ErrEmptyTransport)
}

func TestFedAvgCombine(t *testing.T) {
	combiner := model.NewFedAvg()

	cases := []struct {
		desc    string
		updates []model.Update
		want    map[string][]float64
		err     error
	}{
		{
			desc:    "no updates",
			updates: nil,
			err:     model.ErrNoUpdates,
		},
		{
			desc: "single update passes through",
			updates: []model.Update{
				{AgentID: "a", NumSamples: 10, Weights: model.Transport{"w": {1, 2}}},
			},
			want: map[string][]float64{"w": {1, 2}},
		},
		{
			desc: "sample-weighted average",
			updates: []model.Update{
				{AgentID: "a", NumSamples: 1, Weights: model.Transport{"w": {0, 0}}},
				{AgentID: "b", NumSamples: 3, Weights: model.Transport{"w": {4, 8}}},
			},
			want: map[string][]float64{"w": {3, 6}},
		},
		{
			desc: "mismatched parameter names",
			updates: []model.Update{
				{AgentID: "a", NumSamples: 1, Weights: model.Transport{"w": {1}}},
				{AgentID: "b", NumSamples: 1, Weights: model.Transport{"v": {1}}},
			},
			err: model.ErrShapeMismatch,
		},
		{
			desc: "mismatched array lengths",
			updates: []model.Update{
				{AgentID: "a", NumSamples: 1, Weights: model.Transport{"w": {1, 2}}},
				{AgentID: "b", NumSamples: 1, Weights: model.Transport{"w": {1}}},
			},
			err: model.ErrShapeMismatch,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			s, err := combiner.Combine(tc.updates)
			assert.Equal(t, tc.err, err, fmt.Sprintf("%s: expected error %v, got %v", tc.desc, tc.err, err))
			if tc.err == nil {
				assert.Equal(t, tc.want, s.Weights)
			}
		})
	}
}
