package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/tonelift/api/internal/events"
	"github.com/tonelift/api/internal/model"
	"github.com/tonelift/api/internal/store"
)

const TaskTypeEnhance = "enhance:process"

// Dispatcher hands a queued job to the worker. Submission never blocks
// on the pipeline itself.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string) error
}

// AsynqDispatcher enqueues jobs onto the Redis-backed task queue.
// Failed jobs are terminal, so tasks carry no retries.
type AsynqDispatcher struct {
	client *asynq.Client
}

func NewAsynqDispatcher(client *asynq.Client) *AsynqDispatcher {
	return &AsynqDispatcher{client: client}
}

func (d *AsynqDispatcher) Dispatch(ctx context.Context, jobID string) error {
	payload, err := json.Marshal(map[string]string{"jobId": jobID})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TaskTypeEnhance, payload)
	_, err = d.client.Enqueue(task,
		asynq.Queue("enhance"),
		asynq.MaxRetry(0),
		asynq.Retention(24*time.Hour),
	)
	return err
}

// JobProcessor runs one job's pipeline to its terminal state.
type JobProcessor interface {
	Process(ctx context.Context, jobID string) error
}

// InlineDispatcher runs the pipeline on a goroutine in this process.
// Used when Redis is unavailable and in tests. The processor owns the
// terminal state transition, so a returned error needs no handling
// beyond the log line.
type InlineDispatcher struct {
	processor JobProcessor
}

func NewInlineDispatcher(processor JobProcessor) *InlineDispatcher {
	return &InlineDispatcher{processor: processor}
}

func (d *InlineDispatcher) Dispatch(ctx context.Context, jobID string) error {
	go func() {
		if err := d.processor.Process(context.Background(), jobID); err != nil {
			log.Printf("Enhance job %s failed: %v", jobID, err)
		}
	}()
	return nil
}

// EnhanceService handles enhancement job submission, status reads and
// feedback recording.
type EnhanceService struct {
	store      store.JobStore
	dispatcher Dispatcher
	events     *events.Logger
}

func NewEnhanceService(jobStore store.JobStore, dispatcher Dispatcher, eventLogger *events.Logger) *EnhanceService {
	return &EnhanceService{
		store:      jobStore,
		dispatcher: dispatcher,
		events:     eventLogger,
	}
}

// Submit creates a queued job and dispatches it. Returns immediately
// with the job identifier.
func (s *EnhanceService) Submit(ctx context.Context, req *model.EnhanceRequest) (*model.EnhanceStartResponse, error) {
	job := &model.Job{
		ID:        uuid.New().String(),
		Status:    model.JobStatusQueued,
		Progress:  0,
		Request:   *req,
		CreatedAt: time.Now(),
	}

	if err := s.store.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	if err := s.dispatcher.Dispatch(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	return &model.EnhanceStartResponse{
		JobID:  job.ID,
		Status: model.JobStatusQueued,
	}, nil
}

// GetStatus returns a point-in-time snapshot of a job.
func (s *EnhanceService) GetStatus(ctx context.Context, jobID string) (*model.EnhanceStatusResponse, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	return &model.EnhanceStatusResponse{
		JobID:           job.ID,
		Status:          job.Status,
		Progress:        job.Progress,
		CurrentStep:     job.CurrentStep,
		Analysis:        job.Analysis,
		RenderPlan:      job.RenderPlan,
		Error:           job.Error,
		EnhancedFileURL: job.EnhancedFileURL,
		OutputSeconds:   job.OutputSeconds,
		CreatedAt:       job.CreatedAt,
		FinishedAt:      job.FinishedAt,
	}, nil
}

// GetJob returns the full job record, for the output endpoint.
func (s *EnhanceService) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	return s.store.Get(ctx, jobID)
}

// RecordFeedback stores a feedback classification event. The event is
// recorded whether or not the referenced job still exists; job context
// is attached when available.
func (s *EnhanceService) RecordFeedback(ctx context.Context, jobID string, req *model.FeedbackRequest, userID string) {
	ev := model.ClassificationEvent{
		Type:  model.EventFeedback,
		JobID: jobID,
		Feedback: &model.FeedbackPayload{
			Rating: req.Rating,
			Reason: req.Reason,
			Notes:  req.Notes,
			UserID: userID,
		},
	}

	if job, err := s.store.Get(ctx, jobID); err == nil {
		reqCopy := job.Request
		ev.Request = &reqCopy
		ev.Analysis = job.Analysis
		ev.RenderPlan = job.RenderPlan
	}

	s.events.Record(ctx, ev)
}
