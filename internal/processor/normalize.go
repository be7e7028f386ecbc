package processor

import (
	"context"
	"fmt"
	"math"

	"github.com/tonelift/api/internal/engine"
	"github.com/tonelift/api/internal/model"
)

// Normalizer implements the two-pass loudness protocol: measure the
// input against the target, then apply a linear correction built from
// the measured figures.
type Normalizer struct {
	engine engine.Engine
}

func NewNormalizer(eng engine.Engine) *Normalizer {
	return &Normalizer{engine: eng}
}

// Normalize runs both passes and writes the corrected stream. The
// measurement from the first pass is returned for audit.
func (n *Normalizer) Normalize(ctx context.Context, inputPath, outputPath string, target model.LoudnessTarget) (*model.LoudnessMeasurement, error) {
	m, err := n.engine.MeasureLoudness(ctx, inputPath, target)
	if err != nil {
		return nil, err
	}
	// A non-finite integrated loudness means the input carried no
	// measurable program (silence). Correcting it would blow up the
	// gain, so the stage fails instead.
	if math.IsInf(m.InputI, 0) || math.IsNaN(m.InputI) {
		return nil, fmt.Errorf("loudness measure pass returned non-finite integrated loudness %v", m.InputI)
	}
	if err := n.engine.Render(ctx, inputPath, ApplyFilter(target, m), outputPath); err != nil {
		return nil, err
	}
	return m, nil
}

// ApplyFilter builds the second-pass filter. Every figure from the
// measure pass is embedded so the engine applies a single linear
// correction instead of re-measuring dynamically.
func ApplyFilter(target model.LoudnessTarget, m *model.LoudnessMeasurement) string {
	return fmt.Sprintf(
		"loudnorm=I=%.1f:TP=%.1f:LRA=%.1f:measured_I=%.2f:measured_TP=%.2f:measured_LRA=%.2f:measured_thresh=%.2f:offset=%.2f:linear=true:print_format=summary",
		target.IntegratedLufs, target.TruePeakDb, target.LoudnessRange,
		m.InputI, m.InputTP, m.InputLRA, m.InputThresh, m.TargetOffset,
	)
}
