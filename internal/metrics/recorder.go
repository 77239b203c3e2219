package metrics

import "time"

// OutcomeLabel is the final status of a publish transaction.
type OutcomeLabel string

const (
	OutcomeSuccess OutcomeLabel = "success"
	OutcomeFailed  OutcomeLabel = "failed"
)

// Recorder defines observability hooks for publish transactions.
type Recorder interface {
	// ObservePublishDuration records the wall time of a whole transaction.
	ObservePublishDuration(outcome OutcomeLabel, d time.Duration)
	// IncPublishOutcome counts transactions by result code ("success" or an error code).
	IncPublishOutcome(code string)
	ObserveStageDuration(stage string, d time.Duration)
	ObserveLockWait(d time.Duration)
	AddItemsPublished(category string, n int)
	IncReplay()
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObservePublishDuration(OutcomeLabel, time.Duration) {}
func (NoopRecorder) IncPublishOutcome(string)                           {}
func (NoopRecorder) ObserveStageDuration(string, time.Duration)         {}
func (NoopRecorder) ObserveLockWait(time.Duration)                      {}
func (NoopRecorder) AddItemsPublished(string, int)                      {}
func (NoopRecorder) IncReplay()                                         {}
