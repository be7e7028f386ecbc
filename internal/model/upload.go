package model

import "time"

// UploadTrackResponse represents the response for a staged track upload
type UploadTrackResponse struct {
	ID          string    `json:"id"`
	FileURL     string    `json:"fileUrl"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	CreatedAt   time.Time `json:"createdAt"`
}
