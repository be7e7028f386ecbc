package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/tonelift/api/internal/client"
	"github.com/tonelift/api/internal/model"
)

// UploadService stages input audio ahead of an enhancement request.
// With object storage configured uploads go there; otherwise they land
// in a local staging directory and are referenced by file URL, which
// the input fetcher accepts.
type UploadService struct {
	storage    client.StorageClient
	stagingDir string
}

func NewUploadService(storage client.StorageClient, stagingDir string) *UploadService {
	return &UploadService{
		storage:    storage,
		stagingDir: stagingDir,
	}
}

// UploadTrack stores an uploaded file and returns a URL usable as a
// job's inputFileUrl.
func (s *UploadService) UploadTrack(ctx context.Context, userID, filename, contentType string, file io.Reader, fileSize int64) (*model.UploadTrackResponse, error) {
	trackID := uuid.New().String()
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".wav"
	}

	if s.storage == nil {
		return s.uploadLocal(trackID, ext, contentType, file, fileSize)
	}

	key := fmt.Sprintf("uploads/%s/%s%s", userID, trackID, ext)
	fileURL, err := s.storage.Upload(ctx, key, file, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to upload track: %w", err)
	}

	return &model.UploadTrackResponse{
		ID:          trackID,
		FileURL:     fileURL,
		Size:        fileSize,
		ContentType: contentType,
		CreatedAt:   time.Now(),
	}, nil
}

// DeleteTrack removes a staged upload. Local staging files are matched
// by track ID prefix.
func (s *UploadService) DeleteTrack(ctx context.Context, userID, trackID string) error {
	if s.storage == nil {
		matches, err := filepath.Glob(filepath.Join(s.stagingDir, trackID+".*"))
		if err != nil {
			return err
		}
		for _, m := range matches {
			if err := os.Remove(m); err != nil {
				return err
			}
		}
		return nil
	}

	// Extension is unknown at delete time; try the common ones.
	for _, ext := range []string{".wav", ".mp3", ".m4a", ".aac", ".flac", ".ogg"} {
		key := fmt.Sprintf("uploads/%s/%s%s", userID, trackID, ext)
		_ = s.storage.Delete(ctx, key)
	}
	return nil
}

func (s *UploadService) uploadLocal(trackID, ext, contentType string, file io.Reader, fileSize int64) (*model.UploadTrackResponse, error) {
	if err := os.MkdirAll(s.stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	destPath := filepath.Join(s.stagingDir, trackID+ext)
	out, err := os.Create(destPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create staging file: %w", err)
	}

	_, err = io.Copy(out, file)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(destPath)
		return nil, fmt.Errorf("failed to write staging file: %w", err)
	}

	absPath, err := filepath.Abs(destPath)
	if err != nil {
		return nil, err
	}

	return &model.UploadTrackResponse{
		ID:          trackID,
		FileURL:     "file://" + absPath,
		Size:        fileSize,
		ContentType: contentType,
		CreatedAt:   time.Now(),
	}, nil
}
