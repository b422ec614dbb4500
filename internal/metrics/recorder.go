package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultWarning  ResultLabel = "warning"
	ResultFailed   ResultLabel = "failed"
	ResultCanceled ResultLabel = "canceled"
)

// Stage names used as label values.
const (
	StageCompile  = "compile"
	StageBundle   = "bundle"
	StageIDELoad  = "ide_load"
	StageRebuild  = "rebuild"
	StageArtifact = "artifact"
)

// Recorder defines observability hooks for build stages and requests.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	// IncRequestOutcome counts settled requests by build mode (batch|incremental).
	IncRequestOutcome(mode string, result ResultLabel)
	IncUnknownModuleRecovery()
	IncConnectAttempt(success bool)
	SetQueueDepth(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) IncRequestOutcome(string, ResultLabel)      {}
func (NoopRecorder) IncUnknownModuleRecovery()                  {}
func (NoopRecorder) IncConnectAttempt(bool)                     {}
func (NoopRecorder) SetQueueDepth(int)                          {}

// Or returns r, or NoopRecorder when r is nil.
func Or(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
