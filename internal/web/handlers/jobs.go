package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/kozaktomas/speaker-labeler/internal/constants"
	"github.com/kozaktomas/speaker-labeler/internal/output"
)

// JobStatus represents the status of an async job.
type JobStatus string

// JobStatus constants define the lifecycle states of an async job.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// ProcessJob represents an async processing run for one recording.
type ProcessJob struct {
	EventBroadcaster

	ID          string            `json:"id"`
	RecordingID string            `json:"recording_id"`
	FileName    string            `json:"file_name"`
	Status      JobStatus         `json:"status"`
	Stage       string            `json:"stage"`
	Percent     float64           `json:"percent"`
	Error       string            `json:"error,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Options     ProcessJobOptions `json:"options"`
	Result      *output.Document  `json:"result,omitempty"`
}

// ProcessJobOptions represents processing job options.
type ProcessJobOptions struct {
	NumSpeakers    int    `json:"num_speakers"`
	TranscriptPath string `json:"transcript_path,omitempty"`
}

// Snapshot copies the exported fields under lock. JSON responses encode the
// snapshot, never the live struct the worker goroutine is mutating.
func (j *ProcessJob) Snapshot() *ProcessJob {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return &ProcessJob{
		ID:          j.ID,
		RecordingID: j.RecordingID,
		FileName:    j.FileName,
		Status:      j.Status,
		Stage:       j.Stage,
		Percent:     j.Percent,
		Error:       j.Error,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		Options:     j.Options,
		Result:      j.Result,
	}
}

// GetStatus returns the current job status (implements SSEJob).
func (j *ProcessJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// setStatus updates the job status under lock.
func (j *ProcessJob) setStatus(status JobStatus) {
	j.mu.Lock()
	j.Status = status
	j.mu.Unlock()
}

// setProgress records the latest pipeline stage and percentage under lock.
func (j *ProcessJob) setProgress(stage string, percent float64) {
	j.mu.Lock()
	j.Stage = stage
	j.Percent = percent
	j.mu.Unlock()
}

// finish records a terminal state with its completion time.
func (j *ProcessJob) finish(status JobStatus, errMsg string, result *output.Document) {
	now := time.Now()
	j.mu.Lock()
	j.Status = status
	j.Error = errMsg
	j.Result = result
	j.CompletedAt = &now
	j.mu.Unlock()
}

// Cancel cancels the processing job.
func (j *ProcessJob) Cancel() {
	j.EventBroadcaster.Cancel()
	j.setStatus(JobStatusCancelled)
}

// JobEvent represents an event from a job.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting for async jobs.
// Embed this in job structs to get AddListener, RemoveListener, and SendEvent methods.
type EventBroadcaster struct {
	cancel    context.CancelFunc
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// setCancel hands the worker's context cancel func to the broadcaster.
func (b *EventBroadcaster) setCancel(cancel context.CancelFunc) {
	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()
}

// Cancel cancels the job via context and sends a cancelled event.
func (b *EventBroadcaster) Cancel() {
	b.mu.RLock()
	cancel := b.cancel
	b.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	b.SendEvent(JobEvent{Type: "cancelled", Message: "Job cancelled by user"})
}

// SSEJob is the interface required by streamSSEEvents to stream job events via SSE.
type SSEJob interface {
	AddListener() chan JobEvent
	RemoveListener(ch chan JobEvent)
	GetStatus() JobStatus
}

// JobManager manages async processing jobs.
type JobManager struct {
	jobs map[string]*ProcessJob
	mu   sync.RWMutex
}

// NewJobManager creates a new job manager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*ProcessJob),
	}
}

// CreateJob creates a new processing job.
func (m *JobManager) CreateJob(id, recordingID, fileName string, options ProcessJobOptions) *ProcessJob {
	job := &ProcessJob{
		ID:          id,
		RecordingID: recordingID,
		FileName:    fileName,
		Status:      JobStatusPending,
		StartedAt:   time.Now(),
		Options:     options,
	}

	m.mu.Lock()
	m.jobs[id] = job
	m.mu.Unlock()

	return job
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *ProcessJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// ActiveJobForRecording returns a pending or running job for the recording,
// if any. Used to reject concurrent processing of the same recording.
func (m *JobManager) ActiveJobForRecording(recordingID string) *ProcessJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, job := range m.jobs {
		if job.RecordingID != recordingID {
			continue
		}
		if status := job.GetStatus(); status == JobStatusPending || status == JobStatusRunning {
			return job
		}
	}
	return nil
}

// DeleteJob removes a job.
func (m *JobManager) DeleteJob(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
}

// ListJobs returns all jobs.
func (m *JobManager) ListJobs() []*ProcessJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jobs := make([]*ProcessJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	return jobs
}
