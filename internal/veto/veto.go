package veto

import (
	"strings"

	"github.com/quantfold/tradegate/internal/config"
)

// Layer is one independent veto check applied before any sizing or routing.
// Layers compose; the first veto wins.
type Layer interface {
	Name() string
	Check(symbol, side string, ctx Context) (vetoed bool, reason string)
}

// Context is the market/news snapshot the layers read. All fields are
// supplied by external collaborators; zero values mean "no data".
type Context struct {
	SentimentScore float64  // [-1..1]; 0 when no news signal
	HasSentiment   bool
	Headlines      []string
	VolSigma       float64 // recent volatility in trailing-window sigmas
}

// SentimentFilter vetoes entries on strongly negative news sentiment.
// Exits are never vetoed: reducing risk on bad news is the point.
type SentimentFilter struct {
	floor float64
}

func NewSentimentFilter(cfg config.Veto) *SentimentFilter {
	return &SentimentFilter{floor: cfg.SentimentFloor}
}

func (f *SentimentFilter) Name() string { return "sentiment" }

func (f *SentimentFilter) Check(symbol, side string, ctx Context) (bool, string) {
	if side == "SELL" {
		return false, ""
	}
	if !ctx.HasSentiment {
		return false, ""
	}
	if ctx.SentimentScore < f.floor {
		return true, "sentiment_veto"
	}
	return false, ""
}

// BlackSwanGuard vetoes everything on catastrophic-event markers: a
// configured keyword in recent headlines or an extreme volatility spike.
type BlackSwanGuard struct {
	keywords []string
	volSpike float64
}

func NewBlackSwanGuard(cfg config.Veto) *BlackSwanGuard {
	kws := cfg.BlackSwanKeywords
	if len(kws) == 0 {
		kws = []string{"crash", "default", "war", "halt", "contagion"}
	}
	return &BlackSwanGuard{keywords: kws, volSpike: cfg.VolSpikeThreshold}
}

func (g *BlackSwanGuard) Name() string { return "blackswan" }

func (g *BlackSwanGuard) Check(symbol, side string, ctx Context) (bool, string) {
	if g.volSpike > 0 && ctx.VolSigma >= g.volSpike {
		return true, "blackswan_vol_spike"
	}
	for _, h := range ctx.Headlines {
		lower := strings.ToLower(h)
		for _, kw := range g.keywords {
			if strings.Contains(lower, kw) {
				return true, "blackswan_headline"
			}
		}
	}
	return false, ""
}
