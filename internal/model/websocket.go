package model

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage reports pipeline progress for a job
type WSProgressMessage struct {
	Type        string    `json:"type"`
	JobID       string    `json:"jobId"`
	Progress    int       `json:"progress"`
	Status      JobStatus `json:"status"`
	CurrentStep string    `json:"currentStep,omitempty"`
}

// WSCompleteMessage announces a finished job
type WSCompleteMessage struct {
	Type   string           `json:"type"`
	JobID  string           `json:"jobId"`
	Result WSCompleteResult `json:"result"`
}

// WSCompleteResult carries the output reference of a done job
type WSCompleteResult struct {
	EnhancedFileURL string  `json:"enhancedFileUrl,omitempty"`
	OutputSeconds   float64 `json:"outputSeconds,omitempty"`
}

// WSErrorMessage reports a failed job
type WSErrorMessage struct {
	Type  string  `json:"type"`
	JobID string  `json:"jobId"`
	Error WSError `json:"error"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
