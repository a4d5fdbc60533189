// Package metrics defines a small Recorder interface for build telemetry.
// Components default to NoopRecorder; watch mode injects the Prometheus
// implementation and serves it over HTTP.
package metrics

import "time"

// Recorder receives build lifecycle events.
type Recorder interface {
	BuildStarted()
	BuildFinished(status string, duration time.Duration)
}

// NoopRecorder is the zero-overhead default.
type NoopRecorder struct{}

func (NoopRecorder) BuildStarted()                       {}
func (NoopRecorder) BuildFinished(string, time.Duration) {}
