package model

import "time"

// Job represents one enhancement request tracked through its lifecycle.
// After creation only the worker mutates it; readers receive snapshots.
type Job struct {
	ID              string         `json:"id"`
	Status          JobStatus      `json:"status"`
	Progress        int            `json:"progress"`
	CurrentStep     string         `json:"currentStep,omitempty"`
	Request         EnhanceRequest `json:"request"`
	Analysis        *Analysis      `json:"analysis,omitempty"`
	RenderPlan      *RenderPlan    `json:"renderPlan,omitempty"`
	OutputPath      string         `json:"outputPath,omitempty"`
	EnhancedFileURL string         `json:"enhancedFileUrl,omitempty"`
	OutputSeconds   float64        `json:"outputSeconds,omitempty"`
	Error           *string        `json:"error,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	StartedAt       *time.Time     `json:"startedAt,omitempty"`
	FinishedAt      *time.Time     `json:"finishedAt,omitempty"`
}

// EnhanceRequest is the immutable parameter set of one job
type EnhanceRequest struct {
	InputFileURL    string          `json:"inputFileUrl" validate:"required,url"`
	EnhancementType EnhancementType `json:"enhancementType" validate:"required,oneof=mix master 4d"`
	SpeedMultiplier float64         `json:"speedMultiplier" validate:"omitempty,min=0.5,max=2.0"`
	PitchSemitones  float64         `json:"pitchSemitones" validate:"min=-4,max=4"`
	Focus           FocusMode       `json:"focus" validate:"omitempty,oneof=none bass presence air wide punch"`
	MasterProfile   MasterProfile   `json:"masterProfile" validate:"omitempty,oneof=spotify streaming apple_music soundcloud loud"`
}

// ApplyDefaults fills unset optional fields before validation.
func (r *EnhanceRequest) ApplyDefaults() {
	if r.SpeedMultiplier == 0 {
		r.SpeedMultiplier = 1.0
	}
	if r.Focus == "" {
		r.Focus = FocusNone
	}
	if r.MasterProfile == "" {
		r.MasterProfile = ProfileStreaming
	}
}

// SpectralProfile holds per-band energy measurements in dB.
// A nil field is a measurement that could not be parsed.
type SpectralProfile struct {
	LowMeanDb  *float64 `json:"lowMeanDb,omitempty"`
	MidMeanDb  *float64 `json:"midMeanDb,omitempty"`
	HighMeanDb *float64 `json:"highMeanDb,omitempty"`
	FullMeanDb *float64 `json:"fullMeanDb,omitempty"`
	FullPeakDb *float64 `json:"fullPeakDb,omitempty"`
}

// Analysis is the analyzer's output for one job
type Analysis struct {
	Profile SpectralProfile `json:"profile"`
	Tags    []Tag           `json:"tags"`
}

// EnhanceStartResponse is returned by job submission
type EnhanceStartResponse struct {
	JobID  string    `json:"jobId"`
	Status JobStatus `json:"status"`
}

// EnhanceStatusResponse is a point-in-time snapshot of a job
type EnhanceStatusResponse struct {
	JobID           string      `json:"jobId"`
	Status          JobStatus   `json:"status"`
	Progress        int         `json:"progress"`
	CurrentStep     string      `json:"currentStep,omitempty"`
	Analysis        *Analysis   `json:"analysis,omitempty"`
	RenderPlan      *RenderPlan `json:"renderPlan,omitempty"`
	Error           *string     `json:"error,omitempty"`
	EnhancedFileURL string      `json:"enhancedFileUrl,omitempty"`
	OutputSeconds   float64     `json:"outputSeconds,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	FinishedAt      *time.Time  `json:"finishedAt,omitempty"`
}

// FeedbackRequest is the body of a feedback submission
type FeedbackRequest struct {
	Rating FeedbackRating `json:"rating" validate:"required,oneof=satisfied not_satisfied"`
	Reason string         `json:"reason,omitempty" validate:"omitempty,oneof=too_quiet too_loud distorted artifacts wrong_tone other"`
	Notes  string         `json:"notes,omitempty" validate:"omitempty,max=2000"`
}
