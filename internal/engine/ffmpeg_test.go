package engine

import (
	"errors"
	"math"
	"strings"
	"testing"
)

const volumedetectOutput = `Input #0, wav, from 'input.wav':
  Duration: 00:01:40.00, bitrate: 1411 kb/s
Output #0, null, to 'pipe:':
[Parsed_volumedetect_0 @ 0x55d9c7e09e40] n_samples: 8820000
[Parsed_volumedetect_0 @ 0x55d9c7e09e40] mean_volume: -17.3 dB
[Parsed_volumedetect_0 @ 0x55d9c7e09e40] max_volume: -2.5 dB
[Parsed_volumedetect_0 @ 0x55d9c7e09e40] histogram_2db: 55
`

func TestParseVolumeStats(t *testing.T) {
	stats := parseVolumeStats(volumedetectOutput)
	if stats.MeanDb != -17.3 {
		t.Errorf("MeanDb = %v, want -17.3", stats.MeanDb)
	}
	if stats.PeakDb != -2.5 {
		t.Errorf("PeakDb = %v, want -2.5", stats.PeakDb)
	}
}

func TestParseVolumeStatsMissingFigures(t *testing.T) {
	stats := parseVolumeStats("no measurements in this output")
	if !math.IsNaN(stats.MeanDb) {
		t.Errorf("MeanDb = %v, want NaN for missing figure", stats.MeanDb)
	}
	if !math.IsNaN(stats.PeakDb) {
		t.Errorf("PeakDb = %v, want NaN for missing figure", stats.PeakDb)
	}
}

func TestParseVolumeStatsPartial(t *testing.T) {
	stats := parseVolumeStats("[Parsed_volumedetect_0] mean_volume: -21.0 dB")
	if stats.MeanDb != -21.0 {
		t.Errorf("MeanDb = %v, want -21.0", stats.MeanDb)
	}
	if !math.IsNaN(stats.PeakDb) {
		t.Errorf("PeakDb = %v, want NaN", stats.PeakDb)
	}
}

const loudnormOutput = `Output #0, null, to 'pipe:':
[Parsed_loudnorm_0 @ 0x5640b5e2d2c0]
{
	"input_i" : "-23.61",
	"input_tp" : "-6.33",
	"input_lra" : "4.70",
	"input_thresh" : "-34.13",
	"output_i" : "-15.93",
	"output_tp" : "-2.73",
	"output_lra" : "3.50",
	"output_thresh" : "-26.26",
	"normalization_type" : "dynamic",
	"target_offset" : "-0.07"
}
`

func TestParseLoudnormReport(t *testing.T) {
	m, err := parseLoudnormReport(loudnormOutput)
	if err != nil {
		t.Fatalf("parseLoudnormReport: %v", err)
	}
	if m.InputI != -23.61 {
		t.Errorf("InputI = %v, want -23.61", m.InputI)
	}
	if m.InputTP != -6.33 {
		t.Errorf("InputTP = %v, want -6.33", m.InputTP)
	}
	if m.InputLRA != 4.70 {
		t.Errorf("InputLRA = %v, want 4.70", m.InputLRA)
	}
	if m.InputThresh != -34.13 {
		t.Errorf("InputThresh = %v, want -34.13", m.InputThresh)
	}
	if m.TargetOffset != -0.07 {
		t.Errorf("TargetOffset = %v, want -0.07", m.TargetOffset)
	}
}

func TestParseLoudnormReportMissingBlock(t *testing.T) {
	if _, err := parseLoudnormReport("stream mapping only, no report"); err == nil {
		t.Fatal("expected error for output without a report block")
	}
}

func TestParseLoudnormReportMalformedField(t *testing.T) {
	out := strings.Replace(loudnormOutput, `"-23.61"`, `"n/a"`, 1)
	_, err := parseLoudnormReport(out)
	if err == nil {
		t.Fatal("expected error for unparsable field")
	}
	if !strings.Contains(err.Error(), "input_i") {
		t.Errorf("error %q should name the bad field", err)
	}
}

func TestParseLoudnormReportInfiniteInput(t *testing.T) {
	out := strings.Replace(loudnormOutput, `"-23.61"`, `"-inf"`, 1)
	m, err := parseLoudnormReport(out)
	if err != nil {
		t.Fatalf("parseLoudnormReport: %v", err)
	}
	if !math.IsInf(m.InputI, -1) {
		t.Errorf("InputI = %v, want -Inf", m.InputI)
	}
}

func TestTruncateDiagnostic(t *testing.T) {
	long := strings.Repeat("x", maxDiagnosticBytes+500)
	got := truncateDiagnostic(long)
	if len(got) > maxDiagnosticBytes+len("... (truncated)") {
		t.Errorf("diagnostic not truncated: %d bytes", len(got))
	}
	if !strings.HasSuffix(got, "(truncated)") {
		t.Error("truncated diagnostic should be marked")
	}
	if truncateDiagnostic("  short  ") != "short" {
		t.Error("short diagnostics should only be trimmed")
	}
}

func TestEngineErrorIncludesDiagnostic(t *testing.T) {
	err := &EngineError{Op: "render", Err: errors.New("exit status 1"), Output: "Invalid argument"}
	if !strings.Contains(err.Error(), "render") || !strings.Contains(err.Error(), "Invalid argument") {
		t.Errorf("EngineError.Error() = %q", err.Error())
	}
}
