package model

import (
	"fmt"
	"time"

	"tttranscribe/internal/domain"
)

type JobPhase string

const (
	JobPhaseSubmitted    JobPhase = "SUBMITTED"
	JobPhaseDownloading  JobPhase = "DOWNLOADING"
	JobPhaseTranscribing JobPhase = "TRANSCRIBING"
	JobPhaseFinalizing   JobPhase = "FINALIZING"
	JobPhaseCompleted    JobPhase = "COMPLETED"
	JobPhaseFailed       JobPhase = "FAILED"
)

// phaseOrder is the forward-only sequence of non-failure phases.
var phaseOrder = []JobPhase{
	JobPhaseSubmitted,
	JobPhaseDownloading,
	JobPhaseTranscribing,
	JobPhaseFinalizing,
	JobPhaseCompleted,
}

// phaseProgress is the progress reported on entering a phase.
var phaseProgress = map[JobPhase]int{
	JobPhaseSubmitted:    0,
	JobPhaseDownloading:  10,
	JobPhaseTranscribing: 40,
	JobPhaseFinalizing:   85,
	JobPhaseCompleted:    100,
}

// phaseRemaining is the advisory time left once a phase has been entered.
var phaseRemaining = map[JobPhase]time.Duration{
	JobPhaseSubmitted:    85 * time.Second,
	JobPhaseDownloading:  80 * time.Second,
	JobPhaseTranscribing: 65 * time.Second,
	JobPhaseFinalizing:   5 * time.Second,
}

// Rank orders phases. FAILED ranks above every phase it can be reached from.
func (p JobPhase) Rank() int {
	if p == JobPhaseFailed {
		return len(phaseOrder)
	}
	for i, ph := range phaseOrder {
		if ph == p {
			return i
		}
	}
	return -1
}

func (p JobPhase) IsTerminal() bool {
	return p == JobPhaseCompleted || p == JobPhaseFailed
}

func (p JobPhase) Valid() bool { return p.Rank() >= 0 }

// CanTransitionTo allows exactly the next phase in order, or FAILED from any
// non-terminal phase.
func (p JobPhase) CanTransitionTo(next JobPhase) bool {
	if p.IsTerminal() || !p.Valid() {
		return false
	}
	if next == JobPhaseFailed {
		return true
	}
	return next.Rank() == p.Rank()+1
}

// Outcome is the cacheable product of a successful job.
type Outcome struct {
	Transcript      string
	Summary         string
	Title           string
	Language        string
	DurationSeconds float64
	CharacterCount  int
}

// JobResult is an Outcome plus per-job processing metrics.
type JobResult struct {
	Outcome
	ProcessingTime time.Duration
	CacheHit       bool
}

type JobFailure struct {
	Kind    FailureKind
	Message string
}

// Job is one tracked transcription request.
type Job struct {
	ID                    string
	InputKey              string
	ClientID              string
	CorrelationID         string
	Phase                 JobPhase
	ProgressPercent       int
	CreatedAt             time.Time
	UpdatedAt             time.Time
	EstimatedCompletionAt *time.Time
	Result                *JobResult
	Failure               *JobFailure
}

// NewJob creates a job in SUBMITTED phase.
func NewJob(id, inputKey, clientID, correlationID string, now time.Time) (*Job, error) {
	if id == "" || inputKey == "" {
		return nil, domain.ErrInvalidInput
	}
	j := &Job{
		ID:            id,
		InputKey:      inputKey,
		ClientID:      clientID,
		CorrelationID: correlationID,
		Phase:         JobPhaseSubmitted,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	j.estimate(now)
	return j, nil
}

// Advance moves the job to the next non-terminal phase.
func (j *Job) Advance(next JobPhase, now time.Time) error {
	if next.IsTerminal() {
		return fmt.Errorf("%w: use Complete or Fail for %s", domain.ErrInvalidTransition, next)
	}
	if err := j.transition(next, now); err != nil {
		return err
	}
	j.ProgressPercent = maxInt(j.ProgressPercent, phaseProgress[next])
	j.estimate(now)
	return nil
}

// Complete records the result and moves the job to COMPLETED.
func (j *Job) Complete(res JobResult, now time.Time) error {
	if err := j.transition(JobPhaseCompleted, now); err != nil {
		return err
	}
	j.ProgressPercent = 100
	j.Result = &res
	j.EstimatedCompletionAt = nil
	return nil
}

// CompleteCached finishes a freshly submitted job straight from a cached
// outcome, skipping the work phases.
func (j *Job) CompleteCached(res JobResult, now time.Time) error {
	if j.Phase != JobPhaseSubmitted {
		return fmt.Errorf("%w: cached completion from %s", domain.ErrInvalidTransition, j.Phase)
	}
	j.Phase = JobPhaseCompleted
	if now.After(j.UpdatedAt) {
		j.UpdatedAt = now
	}
	res.CacheHit = true
	j.ProgressPercent = 100
	j.Result = &res
	j.EstimatedCompletionAt = nil
	return nil
}

// Fail moves the job to FAILED with the enumerated message for kind.
// Progress is left where it was.
func (j *Job) Fail(kind FailureKind, now time.Time) error {
	if err := j.transition(JobPhaseFailed, now); err != nil {
		return err
	}
	j.Failure = &JobFailure{Kind: kind, Message: FailureMessage(kind)}
	j.EstimatedCompletionAt = nil
	return nil
}

func (j *Job) transition(next JobPhase, now time.Time) error {
	if j.Phase.IsTerminal() {
		return fmt.Errorf("%w: %s", domain.ErrJobTerminal, j.Phase)
	}
	if !j.Phase.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, j.Phase, next)
	}
	j.Phase = next
	if now.After(j.UpdatedAt) {
		j.UpdatedAt = now
	}
	return nil
}

func (j *Job) estimate(now time.Time) {
	if d, ok := phaseRemaining[j.Phase]; ok {
		eta := now.Add(d)
		j.EstimatedCompletionAt = &eta
	}
}

// TerminalStatus maps a terminal phase to the webhook status vocabulary.
func (j *Job) TerminalStatus() (TerminalStatus, bool) {
	switch j.Phase {
	case JobPhaseCompleted:
		return TerminalStatusCompleted, true
	case JobPhaseFailed:
		return TerminalStatusFailed, true
	}
	return "", false
}

// Clone returns a deep copy safe to hand out to readers.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	if j.EstimatedCompletionAt != nil {
		eta := *j.EstimatedCompletionAt
		cp.EstimatedCompletionAt = &eta
	}
	if j.Result != nil {
		r := *j.Result
		cp.Result = &r
	}
	if j.Failure != nil {
		f := *j.Failure
		cp.Failure = &f
	}
	return &cp
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
