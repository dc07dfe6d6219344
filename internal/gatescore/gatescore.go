package gatescore

import (
	"github.com/quantfold/tradegate/internal/config"
	"github.com/quantfold/tradegate/internal/observ"
)

// RegimeDetector supplies a regime-adjusted threshold. Implementations may
// fail; the gate then falls open to the static default rather than crashing
// the caller.
type RegimeDetector interface {
	Threshold(regime string, base float64) (float64, error)
}

// Gate is the weighted ensemble confidence gate. Weights over the reporting
// models are renormalized to sum 1; an equal split applies only when no
// weighted model reports.
type Gate struct {
	cfg      config.Gate
	detector RegimeDetector
}

// Verdict carries the full decision for audit mode.
type Verdict struct {
	Allowed   bool
	Score     float64
	Threshold float64
	Reason    string
}

func New(cfg config.Gate, detector RegimeDetector) *Gate {
	return &Gate{cfg: cfg, detector: detector}
}

// AllowTrade computes the weighted ensemble score over the model inputs and
// compares against the (possibly regime-adaptive) threshold.
func (g *Gate) AllowTrade(inputs map[string]float64, regime string) Verdict {
	if len(inputs) == 0 {
		return Verdict{Allowed: false, Threshold: g.cfg.Threshold, Reason: "no_model_inputs"}
	}

	// strictMissing: every configured model must report a score.
	if g.cfg.StrictMissing {
		for model := range g.cfg.Weights {
			if _, ok := inputs[model]; !ok {
				return Verdict{Allowed: false, Threshold: g.cfg.Threshold, Reason: "missing_model:" + model}
			}
		}
	}

	score := g.ensembleScore(inputs)
	if mult, ok := g.cfg.RegimeMultipliers[regime]; ok && mult > 0 {
		score *= mult
		if score > 1 {
			score = 1
		}
	}

	threshold := g.cfg.Threshold
	if g.cfg.AdaptiveThreshold && g.detector != nil {
		if adaptive, err := g.detector.Threshold(regime, threshold); err != nil {
			// Detector failure fails open to the static default.
			observ.Log("regime_detector_failed", map[string]any{
				"regime": regime, "error": err.Error(),
			})
		} else {
			threshold = adaptive
		}
	}

	v := Verdict{Score: score, Threshold: threshold}
	if score >= threshold {
		v.Allowed = true
	} else {
		v.Reason = "weak_edge"
	}
	return v
}

// ensembleScore weights present inputs, renormalizing the configured weights
// over the models that actually reported. Inputs without a configured weight
// contribute only in the equal-split fallbacks: no weights configured at all,
// or none of the weighted models reporting.
func (g *Gate) ensembleScore(inputs map[string]float64) float64 {
	if len(g.cfg.Weights) == 0 {
		sum := 0.0
		for _, s := range inputs {
			sum += s
		}
		return sum / float64(len(inputs))
	}

	totalW := 0.0
	for model := range inputs {
		if w, ok := g.cfg.Weights[model]; ok {
			totalW += w
		}
	}
	if totalW == 0 {
		// No weighted model reported; fall back to equal split.
		sum := 0.0
		for _, s := range inputs {
			sum += s
		}
		return sum / float64(len(inputs))
	}

	score := 0.0
	for model, s := range inputs {
		if w, ok := g.cfg.Weights[model]; ok {
			score += s * (w / totalW)
		}
	}
	return score
}
