package model

// Enhancement types
type EnhancementType string

const (
	EnhancementMix    EnhancementType = "mix"
	EnhancementMaster EnhancementType = "master"
	Enhancement4D     EnhancementType = "4d"
)

var ValidEnhancementTypes = []EnhancementType{
	EnhancementMix, EnhancementMaster, Enhancement4D,
}

// Focus modes
type FocusMode string

const (
	FocusNone     FocusMode = "none"
	FocusBass     FocusMode = "bass"
	FocusPresence FocusMode = "presence"
	FocusAir      FocusMode = "air"
	FocusWide     FocusMode = "wide"
	FocusPunch    FocusMode = "punch"
)

var ValidFocusModes = []FocusMode{
	FocusNone, FocusBass, FocusPresence, FocusAir, FocusWide, FocusPunch,
}

// Master profiles (loudness delivery targets)
type MasterProfile string

const (
	ProfileSpotify    MasterProfile = "spotify"
	ProfileStreaming  MasterProfile = "streaming"
	ProfileAppleMusic MasterProfile = "apple_music"
	ProfileSoundCloud MasterProfile = "soundcloud"
	ProfileLoud       MasterProfile = "loud"
)

var ValidMasterProfiles = []MasterProfile{
	ProfileSpotify, ProfileStreaming, ProfileAppleMusic, ProfileSoundCloud, ProfileLoud,
}

// Job status
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusDone       JobStatus = "done"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether the status permits no further transitions.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusDone || s == JobStatusFailed
}

// Spectral tags
type Tag string

const (
	TagLowEndWeak  Tag = "low_end_weak"
	TagLowEndHeavy Tag = "low_end_heavy"
	TagHarshHighs  Tag = "harsh_highs"
	TagDullHighs   Tag = "dull_highs"
	TagMidForward  Tag = "mid_forward"
	TagTooLoud     Tag = "too_loud"
	TagTooQuiet    Tag = "too_quiet"
)

// Classification event types
type EventType string

const (
	EventRenderCompleted EventType = "render_completed"
	EventRenderFailed    EventType = "render_failed"
	EventFeedback        EventType = "feedback"
)

// Feedback ratings
type FeedbackRating string

const (
	RatingSatisfied    FeedbackRating = "satisfied"
	RatingNotSatisfied FeedbackRating = "not_satisfied"
)
