package gatescore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/tradegate/internal/config"
)

type stubDetector struct {
	threshold float64
	err       error
}

func (d *stubDetector) Threshold(regime string, base float64) (float64, error) {
	if d.err != nil {
		return 0, d.err
	}
	return d.threshold, nil
}

func TestAllowTradeNoInputs(t *testing.T) {
	g := New(config.Gate{Threshold: 0.6}, nil)
	v := g.AllowTrade(nil, "trend")
	assert.False(t, v.Allowed)
	assert.Equal(t, "no_model_inputs", v.Reason)
}

func TestAllowTradeStrictMissing(t *testing.T) {
	cfg := config.Gate{
		Threshold:     0.5,
		StrictMissing: true,
		Weights:       map[string]float64{"momentum": 0.5, "meanrev": 0.5},
	}
	g := New(cfg, nil)

	v := g.AllowTrade(map[string]float64{"momentum": 0.9}, "trend")
	require.False(t, v.Allowed)
	assert.Equal(t, "missing_model:meanrev", v.Reason)

	// Non-strict: the present model absorbs the full weight.
	cfg.StrictMissing = false
	v = New(cfg, nil).AllowTrade(map[string]float64{"momentum": 0.9}, "trend")
	assert.True(t, v.Allowed)
	assert.InDelta(t, 0.9, v.Score, 1e-9)
}

func TestEnsembleScoreWeighting(t *testing.T) {
	cfg := config.Gate{
		Threshold: 0.5,
		Weights:   map[string]float64{"momentum": 0.75, "meanrev": 0.25},
	}
	g := New(cfg, nil)

	v := g.AllowTrade(map[string]float64{"momentum": 0.8, "meanrev": 0.4}, "trend")
	assert.InDelta(t, 0.75*0.8+0.25*0.4, v.Score, 1e-9)
	assert.True(t, v.Allowed)
}

func TestEnsembleScoreEqualSplitFallbacks(t *testing.T) {
	// No weights configured at all.
	g := New(config.Gate{Threshold: 0.5}, nil)
	v := g.AllowTrade(map[string]float64{"a": 0.4, "b": 0.8}, "trend")
	assert.InDelta(t, 0.6, v.Score, 1e-9)

	// Weights configured but none of the reporting models carry one.
	g = New(config.Gate{
		Threshold: 0.5,
		Weights:   map[string]float64{"other": 1.0},
	}, nil)
	v = g.AllowTrade(map[string]float64{"a": 0.4, "b": 0.8}, "trend")
	assert.InDelta(t, 0.6, v.Score, 1e-9)
}

func TestEnsembleScoreDropsUnweightedWhenWeightedPresent(t *testing.T) {
	g := New(config.Gate{
		Threshold: 0.5,
		Weights:   map[string]float64{"momentum": 1.0},
	}, nil)
	// The untracked model's zero score must not dilute the weighted one.
	v := g.AllowTrade(map[string]float64{"momentum": 0.8, "untracked": 0.0}, "trend")
	assert.InDelta(t, 0.8, v.Score, 1e-9)
	assert.True(t, v.Allowed)
}

func TestWeakEdgeBlocks(t *testing.T) {
	g := New(config.Gate{Threshold: 0.7}, nil)
	v := g.AllowTrade(map[string]float64{"momentum": 0.65}, "trend")
	assert.False(t, v.Allowed)
	assert.Equal(t, "weak_edge", v.Reason)
	assert.InDelta(t, 0.7, v.Threshold, 1e-9)
}

func TestRegimeMultiplierCapsAtOne(t *testing.T) {
	cfg := config.Gate{
		Threshold:         0.5,
		RegimeMultipliers: map[string]float64{"trend": 1.5},
	}
	v := New(cfg, nil).AllowTrade(map[string]float64{"momentum": 0.9}, "trend")
	assert.InDelta(t, 1.0, v.Score, 1e-9)

	// Unknown regime leaves the score untouched.
	v = New(cfg, nil).AllowTrade(map[string]float64{"momentum": 0.9}, "chop")
	assert.InDelta(t, 0.9, v.Score, 1e-9)
}

func TestAdaptiveThreshold(t *testing.T) {
	cfg := config.Gate{Threshold: 0.5, AdaptiveThreshold: true}

	// Detector tightens the bar; the same score now blocks.
	g := New(cfg, &stubDetector{threshold: 0.95})
	v := g.AllowTrade(map[string]float64{"momentum": 0.9}, "volatile")
	assert.False(t, v.Allowed)
	assert.InDelta(t, 0.95, v.Threshold, 1e-9)

	// Detector failure falls open to the static default.
	g = New(cfg, &stubDetector{err: errors.New("regime feed down")})
	v = g.AllowTrade(map[string]float64{"momentum": 0.9}, "volatile")
	assert.True(t, v.Allowed)
	assert.InDelta(t, 0.5, v.Threshold, 1e-9)
}
