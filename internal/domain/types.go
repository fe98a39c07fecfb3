// Package domain holds the value types shared across the transcription
// pipeline: requests, outcomes, device snapshots, and the error taxonomy.
package domain

// Request describes one voice clip to transcribe for one owning entity.
// It is immutable; retried executions reuse the same request data.
type Request struct {
	EntityID       string
	AudioPath      string
	ConsentGranted bool
}

// Outcome is a successful engine result: the transcript and the language
// detected over it. Failures travel as errors carrying an ErrorKind.
type Outcome struct {
	Text         string
	LanguageCode string
}

// DeviceSnapshot is a point-in-time view of device capability, supplied by
// the host at call time. The core never polls these values itself.
type DeviceSnapshot struct {
	TotalMemoryBytes uint64
	FreeStorageBytes uint64
	UnmeteredNetwork bool
	Charging         bool
	BatteryLow       bool
}

// Readiness reports whether a model download may start under the current
// device snapshot.
type Readiness string

const (
	Ready               Readiness = "ready"
	NoWifi              Readiness = "no_wifi"
	InsufficientStorage Readiness = "insufficient_storage"
	AlreadyPresent      Readiness = "already_present"
)
