package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures for the statistics record.
type ErrorKind string

const (
	KindAudioFileInvalid     ErrorKind = "audio_file_invalid"
	KindModelNotDownloaded   ErrorKind = "model_not_downloaded"
	KindNetworkUnavailable   ErrorKind = "network_unavailable"
	KindDeviceIncompatible   ErrorKind = "device_incompatible"
	KindInitializationFailed ErrorKind = "initialization_failed"
	KindEngineUnavailable    ErrorKind = "engine_unavailable"
	KindUnknown              ErrorKind = "unknown"
)

// PipelineError is a kind-aware error wrapping the underlying cause.
type PipelineError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// E builds a PipelineError. err may be nil.
func E(kind ErrorKind, message string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Message: message, Err: err}
}

func (e *PipelineError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *PipelineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf extracts the most specific ErrorKind from an error chain,
// defaulting to KindUnknown for unclassified errors.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}
