package engine

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

// detectLanguage identifies the language of a transcript and returns
// its ISO 639-1 code. Empty text and unreliable detections fall back to
// the configured default: a language-detection failure must never fail
// a transcription that otherwise succeeded.
func detectLanguage(text, fallback string) string {
	if strings.TrimSpace(text) == "" {
		return fallback
	}

	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return fallback
	}

	code := info.Lang.Iso6391()
	if code == "" {
		return fallback
	}
	return code
}
