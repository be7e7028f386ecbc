package model

import "time"

// ClassificationEvent is an immutable record of a job outcome or user
// feedback. Request, analysis and renderPlan are copies of the job's
// state at record time and serialize as null when absent so failure
// records show exactly how far the job got.
type ClassificationEvent struct {
	ID         string           `json:"id"`
	Type       EventType        `json:"type"`
	JobID      string           `json:"jobId,omitempty"`
	Request    *EnhanceRequest  `json:"request"`
	Analysis   *Analysis        `json:"analysis"`
	RenderPlan *RenderPlan      `json:"renderPlan"`
	Error      string           `json:"error,omitempty"`
	Feedback   *FeedbackPayload `json:"feedback,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
}

// FeedbackPayload captures a user's verdict on a job
type FeedbackPayload struct {
	Rating FeedbackRating `json:"rating"`
	Reason string         `json:"reason,omitempty"`
	Notes  string         `json:"notes,omitempty"`
	UserID string         `json:"userId,omitempty"`
}
