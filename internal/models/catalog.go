// Package models manages the binary model artifacts the inference
// engines need: presence checks, precondition-gated downloads with
// bounded retry, and integrity verification.
package models

// Artifact describes one model binary fetched from a well-known URL.
type Artifact struct {
	ID        string
	FileName  string
	URL       string
	SizeBytes int64
	SizeLabel string
}

// catalog lists the artifacts known to this build. Only whisper-tiny
// ships enabled today; the catalog keyed by engine id leaves room for
// more.
var catalog = []Artifact{
	{
		ID:        "whisper-tiny",
		FileName:  "ggml-tiny.bin",
		URL:       "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-tiny.bin",
		SizeBytes: 77691713,
		SizeLabel: "~75 MB",
	},
}

// Catalog returns a copy of the built-in artifact catalog.
func Catalog() []Artifact {
	out := make([]Artifact, len(catalog))
	copy(out, catalog)
	return out
}
