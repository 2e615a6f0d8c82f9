// Package metrics provides Prometheus collectors for quack-go components.
package metrics

// Recorder defines a minimal interface for recording metrics. Components
// depend on it instead of concrete collectors so tests can capture values.
type Recorder interface {
	// RecordOperation records an operation with its outcome, for example
	// ("manifest_fetch", "decode_error").
	RecordOperation(operation, status string)

	// RecordDuration records the duration of an operation in seconds.
	RecordDuration(operation string, seconds float64)

	// RecordError records an error occurrence by component and category.
	RecordError(operation, errorType string)
}

// NoOpRecorder discards everything.
type NoOpRecorder struct{}

func (NoOpRecorder) RecordOperation(string, string) {}
func (NoOpRecorder) RecordDuration(string, float64) {}
func (NoOpRecorder) RecordError(string, string)     {}

// OrNoOp returns r, or a NoOpRecorder when r is nil.
func OrNoOp(r Recorder) Recorder {
	if r == nil {
		return NoOpRecorder{}
	}
	return r
}
