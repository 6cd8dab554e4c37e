package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kozaktomas/speaker-labeler/internal/metrics"
	"github.com/kozaktomas/speaker-labeler/internal/output"
	"github.com/kozaktomas/speaker-labeler/internal/pipeline"
	"github.com/kozaktomas/speaker-labeler/internal/store"
)

// PipelineRunner is the part of the processing pipeline the handler drives.
// A fresh runner is created per job; progress callbacks are job-scoped.
type PipelineRunner interface {
	Run(ctx context.Context, req pipeline.Request) (*output.Document, error)
	OnProgress(fn func(pipeline.Progress))
}

// RunnerFactory builds a pipeline runner for one processing job.
type RunnerFactory func() (PipelineRunner, error)

// ProcessHandler handles asynchronous processing of recordings.
type ProcessHandler struct {
	store      store.Store
	log        *slog.Logger
	jobManager *JobManager
	newRunner  RunnerFactory
	metrics    *metrics.Metrics
}

// NewProcessHandler creates a new process handler.
func NewProcessHandler(st store.Store, log *slog.Logger, jm *JobManager, newRunner RunnerFactory, m *metrics.Metrics) *ProcessHandler {
	return &ProcessHandler{
		store:      st,
		log:        log,
		jobManager: jm,
		newRunner:  newRunner,
		metrics:    m,
	}
}

// processRequest is the body of a process start call.
type processRequest struct {
	NumSpeakers    int    `json:"num_speakers"`
	TranscriptPath string `json:"transcript_path"`
}

// Start launches a processing job for a recording.
func (h *ProcessHandler) Start(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing recording ID")
		return
	}

	var req processRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, errInvalidRequestBody)
			return
		}
	}

	rec, err := h.store.GetRecording(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "recording not found")
		return
	}

	if active := h.jobManager.ActiveJobForRecording(id); active != nil {
		respondError(w, http.StatusConflict, fmt.Sprintf("recording is already being processed (job %s)", active.ID))
		return
	}

	jobID := uuid.New().String()
	options := ProcessJobOptions{
		NumSpeakers:    req.NumSpeakers,
		TranscriptPath: req.TranscriptPath,
	}
	job := h.jobManager.CreateJob(jobID, rec.ID, rec.FileName, options)

	go h.runProcessJob(job, rec)

	respondJSON(w, http.StatusAccepted, map[string]string{
		"job_id":       jobID,
		"recording_id": rec.ID,
		"status":       string(JobStatusPending),
	})
}

// Status returns the status of a processing job.
func (h *ProcessHandler) Status(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return
	}

	job := h.jobManager.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}

	respondJSON(w, http.StatusOK, job.Snapshot())
}

// Events streams job events via SSE.
func (h *ProcessHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r,
		func(id string) SSEJob {
			job := h.jobManager.GetJob(id)
			if job == nil {
				return nil
			}
			return job
		},
		func(job SSEJob) any {
			return job.(*ProcessJob).Snapshot()
		},
	)
}

// Cancel cancels a processing job.
func (h *ProcessHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return
	}

	job := h.jobManager.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}

	job.Cancel()
	respondJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

// runProcessJob runs the pipeline for one recording in the background.
func (h *ProcessHandler) runProcessJob(job *ProcessJob, rec *store.Recording) {
	ctx, cancel := context.WithCancel(context.Background())
	job.setCancel(cancel)
	defer cancel()

	started := time.Now()
	h.metrics.JobStarted()
	defer h.metrics.JobFinished()

	job.setStatus(JobStatusRunning)
	job.SendEvent(JobEvent{Type: "started", Message: "Processing started"})

	if err := h.store.UpdateStatus(ctx, rec.ID, store.StatusProcessing, ""); err != nil {
		h.failJob(ctx, job, rec.ID, fmt.Sprintf("failed to update recording status: %v", err))
		return
	}

	runner, err := h.newRunner()
	if err != nil {
		h.failJob(ctx, job, rec.ID, fmt.Sprintf("failed to build pipeline: %v", err))
		return
	}
	runner.OnProgress(func(p pipeline.Progress) {
		job.setProgress(p.Stage, p.Percent)
		job.SendEvent(JobEvent{Type: "progress", Message: p.Message, Data: p})
	})

	doc, err := runner.Run(ctx, pipeline.Request{
		VideoPath:      rec.VideoPath,
		TranscriptPath: job.Options.TranscriptPath,
		NumSpeakers:    job.Options.NumSpeakers,
	})
	if err != nil {
		if job.GetStatus() == JobStatusCancelled {
			// Cancelled jobs keep the cancelled status; the recording goes
			// back to pending so it can be processed again.
			if uerr := h.store.UpdateStatus(context.Background(), rec.ID, store.StatusPending, ""); uerr != nil {
				h.log.Error("failed to reset cancelled recording", "id", rec.ID, "error", uerr)
			}
			return
		}
		h.metrics.RecordingFailed()
		h.failJob(context.Background(), job, rec.ID, err.Error())
		return
	}

	if err := h.store.SaveResult(context.Background(), rec.ID, doc); err != nil {
		h.failJob(context.Background(), job, rec.ID, fmt.Sprintf("failed to save result: %v", err))
		return
	}

	h.metrics.RecordingProcessed(time.Since(started).Seconds())
	h.metrics.AddSegmentsFused(doc.Summary.TotalSegments)
	h.metrics.AddSpeakersNamed(len(doc.Speakers))

	job.finish(JobStatusCompleted, "", doc)
	job.SendEvent(JobEvent{Type: "completed", Message: "Processing completed", Data: doc})
	h.log.Info("processing job completed", "job", job.ID, "recording", rec.ID, "took", time.Since(started).Round(time.Second))
}

// failJob marks the job and recording as failed and notifies listeners.
func (h *ProcessHandler) failJob(ctx context.Context, job *ProcessJob, recordingID, message string) {
	job.finish(JobStatusFailed, message, nil)
	if err := h.store.UpdateStatus(ctx, recordingID, store.StatusFailed, message); err != nil {
		h.log.Error("failed to record failure", "id", recordingID, "error", err)
	}
	job.SendEvent(JobEvent{Type: "failed", Message: message})
	h.log.Error("processing job failed", "job", job.ID, "recording", recordingID, "error", message)
}
