package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/tonelift/api/internal/model"
)

// maxDiagnosticBytes bounds how much engine output an error carries.
const maxDiagnosticBytes = 2048

var (
	meanVolumeRe = regexp.MustCompile(`mean_volume:\s*([-\d\.]+)\s*dB`)
	maxVolumeRe  = regexp.MustCompile(`max_volume:\s*([-\d\.]+)\s*dB`)
)

// FFmpegEngine shells out to ffmpeg and ffprobe binaries.
type FFmpegEngine struct {
	FFmpegBin  string
	FFprobeBin string
}

// NewFFmpegEngine returns an engine using the given binaries, falling
// back to ffmpeg/ffprobe on PATH when empty.
func NewFFmpegEngine(ffmpegBin, ffprobeBin string) *FFmpegEngine {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	if ffprobeBin == "" {
		ffprobeBin = "ffprobe"
	}
	return &FFmpegEngine{FFmpegBin: ffmpegBin, FFprobeBin: ffprobeBin}
}

// Available reports whether the ffmpeg binary can be resolved.
func (e *FFmpegEngine) Available() bool {
	_, err := exec.LookPath(e.FFmpegBin)
	return err == nil
}

func (e *FFmpegEngine) run(ctx context.Context, op, bin string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Env = append(os.Environ(), "LC_ALL=C")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", &EngineError{Op: op, Err: err, Output: truncateDiagnostic(string(out))}
	}
	return string(out), nil
}

func truncateDiagnostic(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxDiagnosticBytes {
		return s[:maxDiagnosticBytes] + "... (truncated)"
	}
	return s
}

// Decode transcodes to the canonical 44.1 kHz stereo 16-bit PCM WAV.
func (e *FFmpegEngine) Decode(ctx context.Context, inputPath, outputPath string) error {
	_, err := e.run(ctx, "decode", e.FFmpegBin,
		"-hide_banner", "-nostats", "-y",
		"-i", inputPath,
		"-vn",
		"-ar", strconv.Itoa(CanonicalSampleRate),
		"-ac", strconv.Itoa(CanonicalChannels),
		"-c:a", "pcm_s16le",
		outputPath,
	)
	return err
}

// MeasureVolume runs volumedetect, optionally behind a band filter.
func (e *FFmpegEngine) MeasureVolume(ctx context.Context, inputPath, bandFilter string) (VolumeStats, error) {
	filter := "volumedetect"
	if bandFilter != "" {
		filter = bandFilter + ",volumedetect"
	}
	out, err := e.run(ctx, "measure volume", e.FFmpegBin,
		"-hide_banner", "-nostats", "-vn",
		"-i", inputPath,
		"-af", filter,
		"-f", "null", "-",
	)
	if err != nil {
		return VolumeStats{}, err
	}
	return parseVolumeStats(out), nil
}

// parseVolumeStats extracts mean and peak levels from volumedetect
// output. A missing figure stays NaN: the classifier treats non-finite
// values as absent data rather than failing the pass.
func parseVolumeStats(out string) VolumeStats {
	stats := VolumeStats{MeanDb: math.NaN(), PeakDb: math.NaN()}
	if m := meanVolumeRe.FindStringSubmatch(out); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			stats.MeanDb = v
		}
	}
	if m := maxVolumeRe.FindStringSubmatch(out); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			stats.PeakDb = v
		}
	}
	return stats
}

// loudnormReport mirrors the JSON block loudnorm prints. The engine
// emits every field as a string.
type loudnormReport struct {
	InputI            string `json:"input_i"`
	InputTP           string `json:"input_tp"`
	InputLRA          string `json:"input_lra"`
	InputThresh       string `json:"input_thresh"`
	OutputI           string `json:"output_i"`
	OutputTP          string `json:"output_tp"`
	OutputLRA         string `json:"output_lra"`
	OutputThresh      string `json:"output_thresh"`
	NormalizationType string `json:"normalization_type"`
	TargetOffset      string `json:"target_offset"`
}

// MeasureLoudness runs a loudnorm analysis pass. The JSON report is
// required; a missing or malformed block fails the call.
func (e *FFmpegEngine) MeasureLoudness(ctx context.Context, inputPath string, target model.LoudnessTarget) (*model.LoudnessMeasurement, error) {
	filter := fmt.Sprintf("loudnorm=I=%.1f:TP=%.1f:LRA=%.1f:print_format=json",
		target.IntegratedLufs, target.TruePeakDb, target.LoudnessRange)
	out, err := e.run(ctx, "measure loudness", e.FFmpegBin,
		"-hide_banner", "-nostats", "-vn",
		"-i", inputPath,
		"-af", filter,
		"-f", "null", "-",
	)
	if err != nil {
		return nil, err
	}
	return parseLoudnormReport(out)
}

// parseLoudnormReport locates the report as the first-to-last brace
// block in the combined output. Any structural deviation is an error;
// a measurement is never default-substituted.
func parseLoudnormReport(out string) (*model.LoudnessMeasurement, error) {
	start := strings.Index(out, "{")
	end := strings.LastIndex(out, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no loudnorm report found in engine output")
	}
	var report loudnormReport
	if err := json.Unmarshal([]byte(out[start:end+1]), &report); err != nil {
		return nil, fmt.Errorf("parse loudnorm report: %w", err)
	}
	m := &model.LoudnessMeasurement{}
	fields := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"input_i", report.InputI, &m.InputI},
		{"input_tp", report.InputTP, &m.InputTP},
		{"input_lra", report.InputLRA, &m.InputLRA},
		{"input_thresh", report.InputThresh, &m.InputThresh},
		{"target_offset", report.TargetOffset, &m.TargetOffset},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f.raw), 64)
		if err != nil {
			return nil, fmt.Errorf("loudnorm report field %s: %w", f.name, err)
		}
		*f.dst = v
	}
	return m, nil
}

// Render applies a serialized filter graph, writing the canonical
// format. An empty spec re-encodes without filtering.
func (e *FFmpegEngine) Render(ctx context.Context, inputPath, filterSpec, outputPath string) error {
	args := []string{"-hide_banner", "-nostats", "-y", "-i", inputPath, "-vn"}
	if filterSpec != "" {
		args = append(args, "-af", filterSpec)
	}
	args = append(args,
		"-ar", strconv.Itoa(CanonicalSampleRate),
		"-ac", strconv.Itoa(CanonicalChannels),
		"-c:a", "pcm_s16le",
		outputPath,
	)
	_, err := e.run(ctx, "render", e.FFmpegBin, args...)
	return err
}

type probeFormat struct {
	Duration string `json:"duration"`
}

type probeStream struct {
	CodecType  string `json:"codec_type"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

type probeOutput struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

// Probe reads duration and stream layout via ffprobe.
func (e *FFmpegEngine) Probe(ctx context.Context, inputPath string) (TrackInfo, error) {
	out, err := e.run(ctx, "probe", e.FFprobeBin,
		"-v", "error",
		"-print_format", "json",
		"-show_format", "-show_streams",
		inputPath,
	)
	if err != nil {
		return TrackInfo{}, err
	}
	var probe probeOutput
	if err := json.Unmarshal([]byte(out), &probe); err != nil {
		return TrackInfo{}, fmt.Errorf("parse probe output: %w", err)
	}
	info := TrackInfo{}
	info.Duration, _ = strconv.ParseFloat(probe.Format.Duration, 64)
	for _, s := range probe.Streams {
		if s.CodecType == "audio" {
			info.SampleRate, _ = strconv.Atoi(s.SampleRate)
			info.Channels = s.Channels
			break
		}
	}
	return info, nil
}
