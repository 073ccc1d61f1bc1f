// Package metrics records task and reload activity. The Prometheus
// implementation backs the dev server's /metrics endpoint; NoopRecorder is
// used by one-shot CLI runs.
package metrics

import "time"

// ResultLabel enumerates task result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
)

// Recorder defines observability hooks for task runs and the watch loop.
type Recorder interface {
	ObserveTaskDuration(task string, d time.Duration)
	IncTaskResult(task string, result ResultLabel)
	IncRerun(group string)
	IncReload()
	SetReloadClients(n int)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) ObserveTaskDuration(string, time.Duration) {}
func (NoopRecorder) IncTaskResult(string, ResultLabel)         {}
func (NoopRecorder) IncRerun(string)                           {}
func (NoopRecorder) IncReload()                                {}
func (NoopRecorder) SetReloadClients(int)                      {}

// ResultFor maps an error to its result label.
func ResultFor(err error) ResultLabel {
	if err != nil {
		return ResultFailed
	}
	return ResultSuccess
}
