package model

// Plan stages, in pipeline order
type PlanStage string

const (
	StagePreGain  PlanStage = "pre_gain"
	StageCore     PlanStage = "core"
	StageTone     PlanStage = "tone"
	StageFocus    PlanStage = "focus"
	StageTempo    PlanStage = "tempo"
	StageLoudness PlanStage = "loudness"
	StageLimiter  PlanStage = "limiter"
)

// PlanOp is one named DSP operation. Spec holds the operation's
// expression in the engine's filter syntax.
type PlanOp struct {
	Stage  PlanStage `json:"stage"`
	Filter string    `json:"filter"`
	Spec   string    `json:"spec"`
}

// PlanActions summarizes the inputs that shaped a render plan
type PlanActions struct {
	Mode            EnhancementType `json:"mode"`
	Focus           FocusMode       `json:"focus"`
	MasterProfile   MasterProfile   `json:"masterProfile"`
	SpeedMultiplier float64         `json:"speedMultiplier"`
	PitchSemitones  float64         `json:"pitchSemitones"`
	Tags            []Tag           `json:"tags"`
}

// RenderPlan is the ordered operation list synthesized for one job.
// Immutable once built; persisted with the job for audit.
type RenderPlan struct {
	Actions PlanActions `json:"actions"`
	Ops     []PlanOp    `json:"ops"`
}

// LoudnessTarget is a delivery loudness specification
type LoudnessTarget struct {
	IntegratedLufs float64 `json:"integratedLufs"`
	TruePeakDb     float64 `json:"truePeakDb"`
	LoudnessRange  float64 `json:"loudnessRange"`
}

// LoudnessMeasurement is the report produced by a loudness measure pass
type LoudnessMeasurement struct {
	InputI       float64 `json:"inputI"`
	InputTP      float64 `json:"inputTp"`
	InputLRA     float64 `json:"inputLra"`
	InputThresh  float64 `json:"inputThresh"`
	TargetOffset float64 `json:"targetOffset"`
}
