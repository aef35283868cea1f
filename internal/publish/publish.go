// Package publish fans decoded telemetry out to external consumers.
package publish

// Sink receives one JSON-encoded telemetry event per call. Publish is
// called concurrently from every device connection and must be safe for
// that. Failures are reported to the caller for logging only, the
// protocol session never retries.
type Sink interface {
	Publish(imei string, payload []byte) error
}
