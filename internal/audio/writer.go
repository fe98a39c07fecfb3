package audio

import (
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV encodes a PcmBuffer as a 16-bit mono WAV file at path. The
// engines use this to stage a buffer for the whisper.cpp process; the
// staged file is transient and removed by the caller.
func WriteWAV(path string, buf *PcmBuffer) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating WAV file: %w", err)
	}

	enc := wav.NewEncoder(f, SampleRate, 16, 1, 1)

	data := make([]int, len(buf.Samples))
	for i, s := range buf.Samples {
		v := int(s * 32767)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		data[i] = v
	}

	intBuf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}

	if err := enc.Write(intBuf); err != nil {
		f.Close()
		return fmt.Errorf("writing WAV data: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("finalizing WAV file: %w", err)
	}
	return f.Close()
}
