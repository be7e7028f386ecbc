// Package processor holds the adaptive enhancement core: spectral
// analysis, filter chain synthesis, and loudness normalization.
package processor

import (
	"context"
	"math"

	"github.com/tonelift/api/internal/engine"
	"github.com/tonelift/api/internal/model"
)

// Band filter expressions for the measurement passes.
const (
	bandLowFilter  = "lowpass=f=200"
	bandMidFilter  = "highpass=f=200,lowpass=f=8000"
	bandHighFilter = "highpass=f=8000"
)

// Classification thresholds in dB. Fixed constants: profiles are never
// compared against configuration.
const (
	lowWeakBelow    = -8.0
	lowHeavyAbove   = 6.0
	harshAbove      = -3.0
	dullBelow       = -14.0
	midForwardAbove = 2.5
	loudPeakAbove   = -1.0
	quietMeanBelow  = -22.0
)

// Analyzer measures a decoded stream's band energies and classifies the
// resulting profile.
type Analyzer struct {
	engine engine.Engine
}

func NewAnalyzer(eng engine.Engine) *Analyzer {
	return &Analyzer{engine: eng}
}

// Analyze runs four measurement passes (low, mid, high, unfiltered) and
// classifies the profile. Engine invocation failures propagate;
// individual unparsable figures only disable their rules.
func (a *Analyzer) Analyze(ctx context.Context, inputPath string) (*model.Analysis, error) {
	low, err := a.engine.MeasureVolume(ctx, inputPath, bandLowFilter)
	if err != nil {
		return nil, err
	}
	mid, err := a.engine.MeasureVolume(ctx, inputPath, bandMidFilter)
	if err != nil {
		return nil, err
	}
	high, err := a.engine.MeasureVolume(ctx, inputPath, bandHighFilter)
	if err != nil {
		return nil, err
	}
	full, err := a.engine.MeasureVolume(ctx, inputPath, "")
	if err != nil {
		return nil, err
	}
	profile := model.SpectralProfile{
		LowMeanDb:  finiteOrNil(low.MeanDb),
		MidMeanDb:  finiteOrNil(mid.MeanDb),
		HighMeanDb: finiteOrNil(high.MeanDb),
		FullMeanDb: finiteOrNil(full.MeanDb),
		FullPeakDb: finiteOrNil(full.PeakDb),
	}
	return &model.Analysis{Profile: profile, Tags: Classify(profile)}, nil
}

// Classify maps a profile to its tags. A rule whose inputs are missing
// never fires: absent data cannot raise a tag.
func Classify(p model.SpectralProfile) []model.Tag {
	tags := []model.Tag{}
	low, lowOK := value(p.LowMeanDb)
	mid, midOK := value(p.MidMeanDb)
	high, highOK := value(p.HighMeanDb)
	full, fullOK := value(p.FullMeanDb)
	peak, peakOK := value(p.FullPeakDb)

	if lowOK && midOK {
		switch diff := low - mid; {
		case diff < lowWeakBelow:
			tags = append(tags, model.TagLowEndWeak)
		case diff > lowHeavyAbove:
			tags = append(tags, model.TagLowEndHeavy)
		}
	}
	if highOK && midOK {
		switch diff := high - mid; {
		case diff > harshAbove:
			tags = append(tags, model.TagHarshHighs)
		case diff < dullBelow:
			tags = append(tags, model.TagDullHighs)
		}
	}
	if midOK && fullOK && mid-full > midForwardAbove {
		tags = append(tags, model.TagMidForward)
	}
	if peakOK && peak > loudPeakAbove {
		tags = append(tags, model.TagTooLoud)
	}
	if fullOK && full < quietMeanBelow {
		tags = append(tags, model.TagTooQuiet)
	}
	return tags
}

func value(p *float64) (float64, bool) {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return 0, false
	}
	return *p, true
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
