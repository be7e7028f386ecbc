// Package worker drives the enhancement pipeline for queued jobs. The
// worker is the sole writer of a job record after submission; each
// job's stages run strictly sequentially while different jobs overlap
// freely.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tonelift/api/internal/client"
	"github.com/tonelift/api/internal/engine"
	"github.com/tonelift/api/internal/events"
	"github.com/tonelift/api/internal/model"
	"github.com/tonelift/api/internal/processor"
	"github.com/tonelift/api/internal/store"
	"github.com/tonelift/api/internal/websocket"
)

// EnhanceWorker processes enhancement jobs
type EnhanceWorker struct {
	store      store.JobStore
	engine     engine.Engine
	analyzer   *processor.Analyzer
	normalizer *processor.Normalizer
	fetcher    *client.Fetcher
	storage    client.StorageClient
	events     *events.Logger
	hub        *websocket.Hub
	scratchDir string
	outputDir  string
}

// NewEnhanceWorker creates a worker. storage may be nil; outputs are
// then served from the local output directory.
func NewEnhanceWorker(
	jobStore store.JobStore,
	eng engine.Engine,
	fetcher *client.Fetcher,
	storage client.StorageClient,
	eventLogger *events.Logger,
	hub *websocket.Hub,
	scratchDir, outputDir string,
) *EnhanceWorker {
	return &EnhanceWorker{
		store:      jobStore,
		engine:     eng,
		analyzer:   processor.NewAnalyzer(eng),
		normalizer: processor.NewNormalizer(eng),
		fetcher:    fetcher,
		storage:    storage,
		events:     eventLogger,
		hub:        hub,
		scratchDir: scratchDir,
		outputDir:  outputDir,
	}
}

// ProcessTask handles an asynq enhancement task
func (w *EnhanceWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload struct {
		JobID string `json:"jobId"`
	}
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}
	return w.Process(ctx, payload.JobID)
}

// Process runs one job's pipeline to a terminal state. The returned
// error mirrors the failure already recorded on the job; callers need
// not act on it.
func (w *EnhanceWorker) Process(ctx context.Context, jobID string) error {
	job, err := w.store.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	if job.Status.IsTerminal() {
		log.Printf("Enhance job %s already %s, skipping", jobID, job.Status)
		return nil
	}

	log.Printf("Starting enhance job: %s", jobID)

	scratch := filepath.Join(w.scratchDir, jobID)
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		werr := fmt.Errorf("failed to create scratch space: %w", err)
		w.failJob(ctx, job, werr)
		return werr
	}
	defer os.RemoveAll(scratch)

	if err := w.runPipeline(ctx, job, scratch); err != nil {
		w.failJob(ctx, job, err)
		return err
	}

	w.completeJob(ctx, job)
	return nil
}

func (w *EnhanceWorker) runPipeline(ctx context.Context, job *model.Job, scratch string) error {
	inputPath := filepath.Join(scratch, "input")
	decodedPath := filepath.Join(scratch, "decoded.wav")
	prePassPath := filepath.Join(scratch, "prepass.wav")
	normalizedPath := filepath.Join(scratch, "normalized.wav")
	finalPath := filepath.Join(scratch, "final.wav")

	w.updateProgress(ctx, job, 5, "Downloading audio…")
	if err := w.fetcher.Fetch(ctx, job.Request.InputFileURL, inputPath); err != nil {
		return err
	}

	w.updateProgress(ctx, job, 15, "Decoding…")
	if err := w.engine.Decode(ctx, inputPath, decodedPath); err != nil {
		return err
	}

	w.updateProgress(ctx, job, 25, "Analyzing tone & dynamics…")
	analysis, err := w.analyzer.Analyze(ctx, decodedPath)
	if err != nil {
		return err
	}
	job.Analysis = analysis
	w.saveJob(ctx, job)

	w.updateProgress(ctx, job, 35, "Planning enhancements…")
	job.RenderPlan = processor.Synthesize(analysis.Tags, job.Request)
	w.saveJob(ctx, job)

	w.updateProgress(ctx, job, 45, "Rendering…")
	if err := w.engine.Render(ctx, decodedPath, processor.PrePassSpec(job.RenderPlan), prePassPath); err != nil {
		return err
	}
	if err := verifyArtifact(prePassPath); err != nil {
		return err
	}

	w.updateProgress(ctx, job, 65, "Normalizing loudness…")
	target := processor.NormalizationTarget(job.Request.EnhancementType, job.Request.MasterProfile)
	if _, err := w.normalizer.Normalize(ctx, prePassPath, normalizedPath, target); err != nil {
		return err
	}

	w.updateProgress(ctx, job, 85, "Applying final limiter…")
	if err := w.engine.Render(ctx, normalizedPath, processor.LimiterSpec(job.RenderPlan), finalPath); err != nil {
		return err
	}
	if err := verifyArtifact(finalPath); err != nil {
		return err
	}

	w.updateProgress(ctx, job, 95, "Finalizing…")
	info, err := w.engine.Probe(ctx, finalPath)
	if err != nil {
		return err
	}
	job.OutputSeconds = info.Duration

	return w.publish(ctx, job, finalPath)
}

// publish moves the finished artifact out of scratch space: to object
// storage when configured, to the local output directory otherwise.
func (w *EnhanceWorker) publish(ctx context.Context, job *model.Job, finalPath string) error {
	if w.storage != nil {
		f, err := os.Open(finalPath)
		if err != nil {
			return fmt.Errorf("failed to open output artifact: %w", err)
		}
		defer f.Close()

		key := fmt.Sprintf("outputs/%s.wav", job.ID)
		url, err := w.storage.Upload(ctx, key, f, "audio/wav")
		if err != nil {
			return fmt.Errorf("failed to publish output: %w", err)
		}
		job.EnhancedFileURL = url
		return nil
	}

	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	outPath := filepath.Join(w.outputDir, job.ID+".wav")
	if err := moveFile(finalPath, outPath); err != nil {
		return fmt.Errorf("failed to store output: %w", err)
	}
	job.OutputPath = outPath
	job.EnhancedFileURL = fmt.Sprintf("/api/enhance/output/%s", job.ID)
	return nil
}

// verifyArtifact confirms a render stage produced a non-empty file.
func verifyArtifact(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("output artifact missing: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("output artifact is empty: %s", path)
	}
	return nil
}

// moveFile renames, falling back to copy across filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

func (w *EnhanceWorker) updateProgress(ctx context.Context, job *model.Job, progress int, step string) {
	job.Progress = progress
	job.CurrentStep = step
	if job.Status == model.JobStatusQueued {
		job.Status = model.JobStatusProcessing
		now := time.Now()
		job.StartedAt = &now
	}
	w.saveJob(ctx, job)
	w.hub.BroadcastProgress(job.ID, progress, job.Status, step)
}

func (w *EnhanceWorker) completeJob(ctx context.Context, job *model.Job) {
	job.Status = model.JobStatusDone
	job.Progress = 100
	job.CurrentStep = ""
	now := time.Now()
	job.FinishedAt = &now
	w.saveJob(ctx, job)

	w.events.Record(ctx, w.outcomeEvent(model.EventRenderCompleted, job, ""))
	w.hub.BroadcastComplete(job.ID, model.WSCompleteResult{
		EnhancedFileURL: job.EnhancedFileURL,
		OutputSeconds:   job.OutputSeconds,
	})
	log.Printf("Enhance job %s completed", job.ID)
}

func (w *EnhanceWorker) failJob(ctx context.Context, job *model.Job, jobErr error) {
	errMsg := jobErr.Error()
	job.Status = model.JobStatusFailed
	job.Error = &errMsg
	now := time.Now()
	job.FinishedAt = &now
	w.saveJob(ctx, job)

	w.events.Record(ctx, w.outcomeEvent(model.EventRenderFailed, job, errMsg))
	w.hub.BroadcastError(job.ID, "ENHANCE_FAILED", errMsg)
	log.Printf("Enhance job %s failed: %v", job.ID, jobErr)
}

// outcomeEvent snapshots the job into a classification event. Analysis
// and renderPlan stay null when the job failed before those stages.
func (w *EnhanceWorker) outcomeEvent(evType model.EventType, job *model.Job, errMsg string) model.ClassificationEvent {
	reqCopy := job.Request
	return model.ClassificationEvent{
		Type:       evType,
		JobID:      job.ID,
		Request:    &reqCopy,
		Analysis:   job.Analysis,
		RenderPlan: job.RenderPlan,
		Error:      errMsg,
	}
}

func (w *EnhanceWorker) saveJob(ctx context.Context, job *model.Job) {
	if err := w.store.Save(ctx, job); err != nil {
		log.Printf("Failed to save job %s: %v", job.ID, err)
	}
}
