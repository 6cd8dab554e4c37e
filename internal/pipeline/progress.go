package pipeline

import (
	"sync"
	"time"
)

// Stage names, in execution order.
const (
	StageExtractAudio  = "extract_audio"
	StageDiarization   = "diarization"
	StageTranscription = "transcription"
	StageFaceTracking  = "face_tracking"
	StageFusion        = "fusion"
	StageNaming        = "naming"
	StageOutput        = "output"
	StageDone          = "done"
	StageFailed        = "failed"
)

// stageWeights positions each stage's start on the overall percent scale.
// Face tracking dominates wall clock time, so it gets the widest band.
var stageWeights = map[string]float64{
	StageExtractAudio:  0,
	StageDiarization:   5,
	StageTranscription: 25,
	StageFaceTracking:  35,
	StageFusion:        85,
	StageNaming:        90,
	StageOutput:        95,
	StageDone:          100,
	StageFailed:        100,
}

// stageSpan is how much of the percent scale a stage covers.
var stageSpan = map[string]float64{
	StageExtractAudio:  5,
	StageDiarization:   20,
	StageTranscription: 10,
	StageFaceTracking:  50,
	StageFusion:        5,
	StageNaming:        5,
	StageOutput:        5,
}

// Progress is a copy-out snapshot of the pipeline state.
type Progress struct {
	Stage     string    `json:"stage"`
	Percent   float64   `json:"percent"`
	Message   string    `json:"message"`
	UpdatedAt time.Time `json:"updated_at"`
}

type progressState struct {
	mu       sync.Mutex
	current  Progress
	listener func(Progress)
}

// OnProgress registers a callback invoked on every progress change. The
// callback runs outside the progress lock; it must not call back into the
// Processor.
func (p *Processor) OnProgress(fn func(Progress)) {
	p.progress.mu.Lock()
	p.progress.listener = fn
	p.progress.mu.Unlock()
}

// Progress returns the current snapshot.
func (p *Processor) Progress() Progress {
	p.progress.mu.Lock()
	defer p.progress.mu.Unlock()
	return p.progress.current
}

func (p *Processor) publish(next Progress) {
	p.progress.mu.Lock()
	next.UpdatedAt = time.Now().UTC()
	p.progress.current = next
	listener := p.progress.listener
	p.progress.mu.Unlock()

	if listener != nil {
		listener(next)
	}
}

func (p *Processor) resetProgress() {
	p.publish(Progress{Stage: StageExtractAudio, Percent: 0, Message: "starting"})
}

func (p *Processor) setStage(stage, message string) {
	p.publish(Progress{Stage: stage, Percent: stageWeights[stage], Message: message})
}

// setStageProgress advances the percent within the current stage's band.
// fraction is in [0,1].
func (p *Processor) setStageProgress(fraction float64) {
	p.progress.mu.Lock()
	cur := p.progress.current
	p.progress.mu.Unlock()

	cur.Percent = stageWeights[cur.Stage] + stageSpan[cur.Stage]*fraction
	p.publish(cur)
}

func (p *Processor) finishProgress() {
	p.publish(Progress{Stage: StageDone, Percent: 100, Message: "complete"})
}

func (p *Processor) failProgress(message string) {
	p.progress.mu.Lock()
	percent := p.progress.current.Percent
	p.progress.mu.Unlock()

	p.publish(Progress{Stage: StageFailed, Percent: percent, Message: message})
}
