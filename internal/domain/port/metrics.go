package port

import "time"

// MetricsRecorder receives business outcomes from the use cases.
type MetricsRecorder interface {
	ObserveMovement(kind string, outcome string)
	ObserveAuthorization(actionCode string, replayed bool, duration time.Duration)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) ObserveMovement(string, string) {}
func (NopMetrics) ObserveAuthorization(string, bool, time.Duration) {}
