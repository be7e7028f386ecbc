package processor

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/tonelift/api/internal/engine"
	"github.com/tonelift/api/internal/model"
)

// fakeEngine scripts measurement results per band filter and records
// render invocations. Shared by the analyzer and normalizer tests.
type fakeEngine struct {
	volumes    map[string]engine.VolumeStats
	volumeErr  error
	measured   *model.LoudnessMeasurement
	measureErr error
	renderErr  error

	measureCalls  int
	renderedSpecs []string
}

func (f *fakeEngine) Decode(ctx context.Context, inputPath, outputPath string) error {
	return nil
}

func (f *fakeEngine) MeasureVolume(ctx context.Context, inputPath, bandFilter string) (engine.VolumeStats, error) {
	if f.volumeErr != nil {
		return engine.VolumeStats{}, f.volumeErr
	}
	if stats, ok := f.volumes[bandFilter]; ok {
		return stats, nil
	}
	return engine.VolumeStats{MeanDb: math.NaN(), PeakDb: math.NaN()}, nil
}

func (f *fakeEngine) MeasureLoudness(ctx context.Context, inputPath string, target model.LoudnessTarget) (*model.LoudnessMeasurement, error) {
	f.measureCalls++
	if f.measureErr != nil {
		return nil, f.measureErr
	}
	return f.measured, nil
}

func (f *fakeEngine) Render(ctx context.Context, inputPath, filterSpec, outputPath string) error {
	if f.renderErr != nil {
		return f.renderErr
	}
	f.renderedSpecs = append(f.renderedSpecs, filterSpec)
	return nil
}

func (f *fakeEngine) Probe(ctx context.Context, inputPath string) (engine.TrackInfo, error) {
	return engine.TrackInfo{Duration: 30, SampleRate: engine.CanonicalSampleRate, Channels: engine.CanonicalChannels}, nil
}

func ptr(v float64) *float64 { return &v }

func profile(low, mid, high, full, peak float64) model.SpectralProfile {
	return model.SpectralProfile{
		LowMeanDb:  ptr(low),
		MidMeanDb:  ptr(mid),
		HighMeanDb: ptr(high),
		FullMeanDb: ptr(full),
		FullPeakDb: ptr(peak),
	}
}

// balanced measurements that trigger no rule.
func balanced() model.SpectralProfile {
	return profile(-18, -17, -25, -17, -6)
}

func containsTag(tags []model.Tag, want model.Tag) bool {
	for _, tag := range tags {
		if tag == want {
			return true
		}
	}
	return false
}

func TestClassifyBalancedProfileHasNoTags(t *testing.T) {
	if tags := Classify(balanced()); len(tags) != 0 {
		t.Errorf("Classify(balanced) = %v, want no tags", tags)
	}
}

func TestClassifyLowEndBoundaries(t *testing.T) {
	cases := []struct {
		name   string
		lowMid float64
		want   []model.Tag
	}{
		{"exactly -8 excludes weak", -8.0, nil},
		{"just past -8 includes weak", -8.01, []model.Tag{model.TagLowEndWeak}},
		{"exactly 6 excludes heavy", 6.0, nil},
		{"just past 6 includes heavy", 6.01, []model.Tag{model.TagLowEndHeavy}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := balanced()
			p.LowMeanDb = ptr(*p.MidMeanDb + tc.lowMid)
			tags := Classify(p)
			if containsTag(tags, model.TagLowEndWeak) != containsTag(tc.want, model.TagLowEndWeak) {
				t.Errorf("low_end_weak mismatch for diff %v: got %v", tc.lowMid, tags)
			}
			if containsTag(tags, model.TagLowEndHeavy) != containsTag(tc.want, model.TagLowEndHeavy) {
				t.Errorf("low_end_heavy mismatch for diff %v: got %v", tc.lowMid, tags)
			}
		})
	}
}

func TestClassifyLowTagsNeverCoOccur(t *testing.T) {
	for diff := -30.0; diff <= 30.0; diff += 0.5 {
		p := balanced()
		p.LowMeanDb = ptr(*p.MidMeanDb + diff)
		tags := Classify(p)
		if containsTag(tags, model.TagLowEndWeak) && containsTag(tags, model.TagLowEndHeavy) {
			t.Fatalf("low_end_weak and low_end_heavy co-occur at diff %v", diff)
		}
	}
}

func TestClassifyHighBoundaries(t *testing.T) {
	p := balanced()
	p.HighMeanDb = ptr(*p.MidMeanDb - 3.0)
	if containsTag(Classify(p), model.TagHarshHighs) {
		t.Error("high-mid of exactly -3 should not tag harsh_highs")
	}
	p.HighMeanDb = ptr(*p.MidMeanDb - 2.99)
	if !containsTag(Classify(p), model.TagHarshHighs) {
		t.Error("high-mid of -2.99 should tag harsh_highs")
	}
	p.HighMeanDb = ptr(*p.MidMeanDb - 14.0)
	if containsTag(Classify(p), model.TagDullHighs) {
		t.Error("high-mid of exactly -14 should not tag dull_highs")
	}
	p.HighMeanDb = ptr(*p.MidMeanDb - 14.01)
	if !containsTag(Classify(p), model.TagDullHighs) {
		t.Error("high-mid of -14.01 should tag dull_highs")
	}
}

func TestClassifyMidForwardBoundary(t *testing.T) {
	p := balanced()
	p.MidMeanDb = ptr(*p.FullMeanDb + 2.5)
	if containsTag(Classify(p), model.TagMidForward) {
		t.Error("mid-full of exactly 2.5 should not tag mid_forward")
	}
	p.MidMeanDb = ptr(*p.FullMeanDb + 2.51)
	if !containsTag(Classify(p), model.TagMidForward) {
		t.Error("mid-full of 2.51 should tag mid_forward")
	}
}

func TestClassifyLevelBoundaries(t *testing.T) {
	p := balanced()
	p.FullPeakDb = ptr(-1.0)
	if containsTag(Classify(p), model.TagTooLoud) {
		t.Error("peak of exactly -1.0 should not tag too_loud")
	}
	p.FullPeakDb = ptr(-0.99)
	if !containsTag(Classify(p), model.TagTooLoud) {
		t.Error("peak of -0.99 should tag too_loud")
	}

	p = balanced()
	p.FullMeanDb = ptr(-22.0)
	if containsTag(Classify(p), model.TagTooQuiet) {
		t.Error("mean of exactly -22 should not tag too_quiet")
	}
	p.FullMeanDb = ptr(-22.01)
	if !containsTag(Classify(p), model.TagTooQuiet) {
		t.Error("mean of -22.01 should tag too_quiet")
	}
}

// Absent data must never raise a tag: each rule needs all its inputs.
func TestClassifyMissingMeasurementsDisableRules(t *testing.T) {
	p := profile(-60, -5, -60, -60, -60) // extreme values, every rule would fire
	p.MidMeanDb = nil
	tags := Classify(p)
	for _, forbidden := range []model.Tag{model.TagLowEndWeak, model.TagLowEndHeavy, model.TagHarshHighs, model.TagDullHighs, model.TagMidForward} {
		if containsTag(tags, forbidden) {
			t.Errorf("tag %s fired without a mid measurement", forbidden)
		}
	}

	if tags := Classify(model.SpectralProfile{}); len(tags) != 0 {
		t.Errorf("empty profile produced tags %v", tags)
	}
}

func TestAnalyzeRunsFourBandPasses(t *testing.T) {
	eng := &fakeEngine{volumes: map[string]engine.VolumeStats{
		bandLowFilter:  {MeanDb: -30.0, PeakDb: -12.0},
		bandMidFilter:  {MeanDb: -16.0, PeakDb: -5.0},
		bandHighFilter: {MeanDb: -24.0, PeakDb: -10.0},
		"":             {MeanDb: -17.0, PeakDb: -4.0},
	}}

	analysis, err := NewAnalyzer(eng).Analyze(context.Background(), "in.wav")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got := *analysis.Profile.LowMeanDb; got != -30.0 {
		t.Errorf("LowMeanDb = %v, want -30.0", got)
	}
	if got := *analysis.Profile.FullPeakDb; got != -4.0 {
		t.Errorf("FullPeakDb = %v, want -4.0", got)
	}
	// low - mid = -14 < -8
	if !containsTag(analysis.Tags, model.TagLowEndWeak) {
		t.Errorf("tags = %v, want low_end_weak", analysis.Tags)
	}
}

func TestAnalyzeMapsNonFiniteToNil(t *testing.T) {
	eng := &fakeEngine{volumes: map[string]engine.VolumeStats{
		bandLowFilter:  {MeanDb: math.NaN(), PeakDb: math.NaN()},
		bandMidFilter:  {MeanDb: -16.0, PeakDb: -5.0},
		bandHighFilter: {MeanDb: -24.0, PeakDb: -10.0},
		"":             {MeanDb: -17.0, PeakDb: math.Inf(-1)},
	}}

	analysis, err := NewAnalyzer(eng).Analyze(context.Background(), "in.wav")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if analysis.Profile.LowMeanDb != nil {
		t.Error("unparsable low mean should be nil")
	}
	if analysis.Profile.FullPeakDb != nil {
		t.Error("non-finite peak should be nil")
	}
	if containsTag(analysis.Tags, model.TagLowEndWeak) || containsTag(analysis.Tags, model.TagTooLoud) {
		t.Errorf("rules with missing inputs fired: %v", analysis.Tags)
	}
}

func TestAnalyzePropagatesEngineFailure(t *testing.T) {
	eng := &fakeEngine{volumeErr: errors.New("exit status 1")}
	if _, err := NewAnalyzer(eng).Analyze(context.Background(), "in.wav"); err == nil {
		t.Fatal("expected engine failure to propagate")
	}
}
