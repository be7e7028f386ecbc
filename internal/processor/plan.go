package processor

import (
	"fmt"
	"math"
	"strings"

	"github.com/tonelift/api/internal/engine"
	"github.com/tonelift/api/internal/model"
)

// Filter names as the engine knows them.
const (
	fVolume     = "volume"
	fHighpass   = "highpass"
	fLowpass    = "lowpass"
	fBass       = "bass"
	fTreble     = "treble"
	fEqualizer  = "equalizer"
	fCompressor = "acompressor"
	fDeesser    = "deesser"
	fWiden      = "stereowiden"
	fTremolo    = "tremolo"
	fEcho       = "aecho"
	fResample   = "aresample"
	fSetRate    = "asetrate"
	fTempo      = "atempo"
	fLoudnorm   = "loudnorm"
	fLimiter    = "alimiter"
)

// preGainDb is the headroom attenuation prepended for too_loud inputs.
const preGainDb = -6.0

// toneOrder fixes the evaluation order of adaptive tone corrections.
var toneOrder = []model.Tag{
	model.TagLowEndWeak,
	model.TagLowEndHeavy,
	model.TagHarshHighs,
	model.TagDullHighs,
	model.TagMidForward,
}

func op(stage model.PlanStage, filter, spec string) model.PlanOp {
	return model.PlanOp{Stage: stage, Filter: filter, Spec: spec}
}

// Synthesize builds the ordered render plan for a request. Pure and
// deterministic: identical inputs produce identical plans.
//
// Op order is fixed: pre-gain (too_loud only), core chain, adaptive
// tone, focus, tempo/pitch, loudness (master only), final limiter.
func Synthesize(tags []model.Tag, req model.EnhanceRequest) *model.RenderPlan {
	plan := &model.RenderPlan{
		Actions: model.PlanActions{
			Mode:            req.EnhancementType,
			Focus:           req.Focus,
			MasterProfile:   req.MasterProfile,
			SpeedMultiplier: req.SpeedMultiplier,
			PitchSemitones:  req.PitchSemitones,
			Tags:            append([]model.Tag{}, tags...),
		},
	}
	if hasTag(tags, model.TagTooLoud) {
		plan.Ops = append(plan.Ops, op(model.StagePreGain, fVolume,
			fmt.Sprintf("volume=%.1fdB", preGainDb)))
	}
	plan.Ops = append(plan.Ops, coreOps(req.EnhancementType)...)
	plan.Ops = append(plan.Ops, toneOps(tags)...)
	plan.Ops = append(plan.Ops, focusOps(req.Focus)...)
	plan.Ops = append(plan.Ops, tempoPitchOps(req.SpeedMultiplier, req.PitchSemitones)...)
	if req.EnhancementType == model.EnhancementMaster {
		t := MasterTarget(req.MasterProfile)
		plan.Ops = append(plan.Ops, op(model.StageLoudness, fLoudnorm,
			fmt.Sprintf("loudnorm=I=%.1f:TP=%.1f:LRA=%.1f", t.IntegratedLufs, t.TruePeakDb, t.LoudnessRange)))
	}
	plan.Ops = append(plan.Ops, limiterOp(req.EnhancementType, req.MasterProfile))
	return plan
}

// coreOps is the mode-specific base chain.
func coreOps(mode model.EnhancementType) []model.PlanOp {
	switch mode {
	case model.Enhancement4D:
		return []model.PlanOp{
			op(model.StageCore, fHighpass, "highpass=f=30:poles=2"),
			op(model.StageCore, fLowpass, "lowpass=f=17000:poles=2"),
			op(model.StageCore, fWiden, "stereowiden=delay=20:feedback=0.35:crossfeed=0.4:drygain=0.75"),
			op(model.StageCore, fTremolo, "tremolo=f=0.15:d=0.35"),
			op(model.StageCore, fEcho, "aecho=0.8:0.7:60:0.25"),
		}
	case model.EnhancementMaster:
		return []model.PlanOp{
			op(model.StageCore, fHighpass, "highpass=f=20:poles=2"),
			op(model.StageCore, fLowpass, "lowpass=f=20000:poles=2"),
			op(model.StageCore, fCompressor, buildCompressor(-14, 1.5, 25, 300, 1.0, 8)),
		}
	default: // mix
		return []model.PlanOp{
			op(model.StageCore, fHighpass, "highpass=f=30:poles=2"),
			op(model.StageCore, fLowpass, "lowpass=f=18000:poles=2"),
			op(model.StageCore, fCompressor, buildCompressor(-18, 2.0, 20, 250, 1.5, 6)),
			op(model.StageCore, fWiden, "stereowiden=delay=12:feedback=0.2:crossfeed=0.2:drygain=0.9"),
		}
	}
}

// toneOps maps tags to corrective filters in fixed evaluation order.
// too_loud is handled by pre-gain and too_quiet by normalization, so
// neither has a tone block.
func toneOps(tags []model.Tag) []model.PlanOp {
	var ops []model.PlanOp
	for _, tag := range toneOrder {
		if !hasTag(tags, tag) {
			continue
		}
		switch tag {
		case model.TagLowEndWeak:
			ops = append(ops, op(model.StageTone, fBass, "bass=g=4.0:f=110"))
		case model.TagLowEndHeavy:
			ops = append(ops,
				op(model.StageTone, fBass, "bass=g=-3.5:f=100"),
				op(model.StageTone, fEqualizer, buildPeakEQ(250, 1.2, -2.5)),
			)
		case model.TagHarshHighs:
			ops = append(ops,
				op(model.StageTone, fTreble, "treble=g=-3.0:f=7500"),
				op(model.StageTone, fEqualizer, buildPeakEQ(5000, 1.5, -2.0)),
			)
		case model.TagDullHighs:
			ops = append(ops, op(model.StageTone, fTreble, "treble=g=3.5:f=7000"))
		case model.TagMidForward:
			ops = append(ops, op(model.StageTone, fEqualizer, buildPeakEQ(1800, 1.1, -2.5)))
		}
	}
	return ops
}

// focusOps maps the focus selector to zero, one or two operations.
func focusOps(focus model.FocusMode) []model.PlanOp {
	switch focus {
	case model.FocusBass:
		return []model.PlanOp{
			op(model.StageFocus, fBass, "bass=g=5.0:f=90"),
			op(model.StageFocus, fEqualizer, buildPeakEQ(60, 1.0, 2.0)),
		}
	case model.FocusPresence:
		return []model.PlanOp{
			op(model.StageFocus, fEqualizer, buildPeakEQ(3000, 1.0, 3.0)),
			op(model.StageFocus, fDeesser, "deesser=i=0.40:m=0.40:f=0.50"),
		}
	case model.FocusAir:
		return []model.PlanOp{
			op(model.StageFocus, fTreble, "treble=g=4.0:f=11000"),
		}
	case model.FocusWide:
		return []model.PlanOp{
			op(model.StageFocus, fWiden, "stereowiden=delay=18:feedback=0.3:crossfeed=0.35:drygain=0.8"),
		}
	case model.FocusPunch:
		return []model.PlanOp{
			op(model.StageFocus, fCompressor, buildPunchCompressor()),
			op(model.StageFocus, fEqualizer, buildPeakEQ(180, 1.3, 1.5)),
		}
	default:
		return nil
	}
}

// tempoPitchOps always stabilizes the sample rate and scales tempo.
// A pitch shift resamples at rate * 2^(st/12), restabilizes, then
// counter-scales tempo by the inverse factor so the shift alone leaves
// duration untouched. Composition order matters: net duration must
// equal original / speed.
func tempoPitchOps(speed, semitones float64) []model.PlanOp {
	ops := []model.PlanOp{
		op(model.StageTempo, fResample, fmt.Sprintf("aresample=%d", engine.CanonicalSampleRate)),
		op(model.StageTempo, fTempo, fmt.Sprintf("atempo=%.4f", speed)),
	}
	if semitones != 0 {
		factor := math.Pow(2, semitones/12.0)
		rate := int(math.Round(engine.CanonicalSampleRate * factor))
		ops = append(ops,
			op(model.StageTempo, fSetRate, fmt.Sprintf("asetrate=%d", rate)),
			op(model.StageTempo, fResample, fmt.Sprintf("aresample=%d", engine.CanonicalSampleRate)),
			op(model.StageTempo, fTempo, fmt.Sprintf("atempo=%.4f", 1/factor)),
		)
	}
	return ops
}

// limiterOp builds the final brick-wall limiter. The ceiling comes from
// the mode's normalization target; attack/release are tuned against
// audible pumping.
func limiterOp(mode model.EnhancementType, profile model.MasterProfile) model.PlanOp {
	ceiling := DbToLinear(NormalizationTarget(mode, profile).TruePeakDb)
	return op(model.StageLimiter, fLimiter,
		fmt.Sprintf("alimiter=limit=%.6f:attack=5:release=80:asc=1:asc_level=0.5", ceiling))
}

func buildCompressor(thresholdDb, ratio, attackMs, releaseMs, makeupDb, kneeDb float64) string {
	return fmt.Sprintf("acompressor=threshold=%.6f:ratio=%.1f:attack=%.0f:release=%.0f:makeup=%.2f:knee=%.1f:detection=rms",
		DbToLinear(thresholdDb), ratio, attackMs, releaseMs, makeupDb, kneeDb)
}

func buildPunchCompressor() string {
	return fmt.Sprintf("acompressor=threshold=%.6f:ratio=%.1f:attack=%.0f:release=%.0f:makeup=%.2f:knee=%.1f:detection=peak",
		DbToLinear(-16.0), 4.0, 5.0, 120.0, 2.0, 3.0)
}

func buildPeakEQ(freq, width, gainDb float64) string {
	return fmt.Sprintf("equalizer=f=%.0f:width_type=q:width=%.2f:g=%.1f", freq, width, gainDb)
}

func hasTag(tags []model.Tag, want model.Tag) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}

// DbToLinear converts decibels to a linear amplitude factor.
func DbToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// FilterSpec serializes the plan ops belonging to the given stages, in
// plan order, as one engine filter graph.
func FilterSpec(plan *model.RenderPlan, stages ...model.PlanStage) string {
	include := make(map[model.PlanStage]bool, len(stages))
	for _, s := range stages {
		include[s] = true
	}
	var specs []string
	for _, o := range plan.Ops {
		if include[o.Stage] {
			specs = append(specs, o.Spec)
		}
	}
	return strings.Join(specs, ",")
}

// PrePassSpec serializes everything that runs before normalization: the
// loudness stage and final limiter are excluded.
func PrePassSpec(plan *model.RenderPlan) string {
	return FilterSpec(plan,
		model.StagePreGain, model.StageCore, model.StageTone, model.StageFocus, model.StageTempo)
}

// LimiterSpec serializes only the final limiter.
func LimiterSpec(plan *model.RenderPlan) string {
	return FilterSpec(plan, model.StageLimiter)
}
