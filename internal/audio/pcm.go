// Package audio decodes recorded voice clips into the fixed-shape PCM
// buffer the inference engines consume: mono float32 samples at 16 kHz,
// amplitude range [-1.0, 1.0].
package audio

// SampleRate is the fixed output sample rate of the codec in Hz.
const SampleRate = 16000

// PcmBuffer is a decoded clip: mono float32 samples at SampleRate.
// It is consumed by a single engine invocation and never persisted.
type PcmBuffer struct {
	Samples []float32
}

// DurationSeconds returns the buffer length in seconds.
func (b *PcmBuffer) DurationSeconds() float64 {
	if b == nil {
		return 0
	}
	return float64(len(b.Samples)) / float64(SampleRate)
}
