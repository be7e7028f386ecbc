package engine

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/tonelift/api/internal/model"
)

// StubEngine stands in when no DSP binary is installed. Renders copy
// the input through unchanged and measurements return fixed plausible
// figures, so the API stays usable in development environments.
type StubEngine struct{}

func NewStubEngine() *StubEngine {
	return &StubEngine{}
}

func (s *StubEngine) Decode(ctx context.Context, inputPath, outputPath string) error {
	return copyFile(inputPath, outputPath)
}

// MeasureVolume returns band-dependent canned levels that classify as a
// balanced profile (no tags).
func (s *StubEngine) MeasureVolume(ctx context.Context, inputPath, bandFilter string) (VolumeStats, error) {
	switch {
	case bandFilter == "":
		return VolumeStats{MeanDb: -17.0, PeakDb: -6.0}, nil
	case strings.HasPrefix(bandFilter, "lowpass"):
		return VolumeStats{MeanDb: -20.0, PeakDb: -8.5}, nil
	case strings.HasPrefix(bandFilter, "highpass=f=8000"):
		return VolumeStats{MeanDb: -26.0, PeakDb: -12.0}, nil
	default:
		return VolumeStats{MeanDb: -18.0, PeakDb: -7.0}, nil
	}
}

func (s *StubEngine) MeasureLoudness(ctx context.Context, inputPath string, target model.LoudnessTarget) (*model.LoudnessMeasurement, error) {
	return &model.LoudnessMeasurement{
		InputI:       -20.3,
		InputTP:      -5.6,
		InputLRA:     6.4,
		InputThresh:  -30.9,
		TargetOffset: target.IntegratedLufs + 20.3,
	}, nil
}

func (s *StubEngine) Render(ctx context.Context, inputPath, filterSpec, outputPath string) error {
	return copyFile(inputPath, outputPath)
}

func (s *StubEngine) Probe(ctx context.Context, inputPath string) (TrackInfo, error) {
	return TrackInfo{Duration: 30, SampleRate: CanonicalSampleRate, Channels: CanonicalChannels}, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
