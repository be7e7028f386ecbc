// Package engine wraps the external DSP process the pipeline delegates
// to. Every invocation is an independent subprocess; no state is shared
// between calls, so concurrent job pipelines are safe.
package engine

import (
	"context"
	"fmt"

	"github.com/tonelift/api/internal/model"
)

// Canonical processing format. Every pipeline stage consumes and
// produces this layout.
const (
	CanonicalSampleRate = 44100
	CanonicalChannels   = 2
)

// VolumeStats holds the mean and peak levels from a volume measurement
// pass. A field is NaN when the engine output lacked that figure.
type VolumeStats struct {
	MeanDb float64
	PeakDb float64
}

// TrackInfo describes a probed audio stream
type TrackInfo struct {
	Duration   float64
	SampleRate int
	Channels   int
}

// Engine is the boundary to the external DSP process.
type Engine interface {
	// Decode transcodes the input to the canonical processing format.
	Decode(ctx context.Context, inputPath, outputPath string) error

	// MeasureVolume runs a volume detection pass, optionally behind a
	// band filter expression, and returns the parsed levels. A level
	// missing from the output is NaN, not an error; a failed
	// invocation is an error.
	MeasureVolume(ctx context.Context, inputPath, bandFilter string) (VolumeStats, error)

	// MeasureLoudness runs a loudness analysis pass against the target
	// and returns the measured report. A missing or malformed report
	// is an error.
	MeasureLoudness(ctx context.Context, inputPath string, target model.LoudnessTarget) (*model.LoudnessMeasurement, error)

	// Render applies a serialized filter graph to the input.
	Render(ctx context.Context, inputPath, filterSpec, outputPath string) error

	// Probe returns stream information for the input.
	Probe(ctx context.Context, inputPath string) (TrackInfo, error)
}

// EngineError carries a failed invocation's diagnostic output,
// truncated to a fixed bound before it reaches a job record.
type EngineError struct {
	Op     string
	Err    error
	Output string
}

func (e *EngineError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("engine %s: %v: %s", e.Op, e.Err, e.Output)
	}
	return fmt.Sprintf("engine %s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }
