package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-audio/wav"

	"github.com/dntrply/MedicationReminder-sub002/internal/domain"
	"github.com/dntrply/MedicationReminder-sub002/internal/execx"
)

// Info describes a clip without decoding it fully.
type Info struct {
	SizeBytes int64
	Seconds   float64
}

// Codec decodes voice clips into PcmBuffers. WAV containers are parsed
// in-process; compressed containers (M4A/AAC and friends) are converted
// to 16 kHz mono WAV by ffmpeg first.
//
// Decoding is deterministic for identical input bytes and keeps no
// shared mutable state.
type Codec struct {
	ffmpegBin  string
	ffprobeBin string
	runner     execx.CommandRunner
	mkdirTemp  func(dir, pattern string) (string, error)
	removeAll  func(path string) error
	stat       func(name string) (os.FileInfo, error)
}

// NewCodec constructs the production codec with OS dependencies.
func NewCodec(ffmpegBin, ffprobeBin string) *Codec {
	return &Codec{
		ffmpegBin:  ffmpegBin,
		ffprobeBin: ffprobeBin,
		runner:     &execx.Runner{},
		mkdirTemp:  os.MkdirTemp,
		removeAll:  os.RemoveAll,
		stat:       os.Stat,
	}
}

// NewCodecForTests constructs a codec with an injectable command runner.
func NewCodecForTests(ffmpegBin, ffprobeBin string, runner execx.CommandRunner) *Codec {
	c := NewCodec(ffmpegBin, ffprobeBin)
	c.runner = runner
	return c
}

// Decode reads the clip at path and returns a mono 16 kHz float32 buffer.
// containerHint overrides extension-based container detection ("wav",
// "m4a", ...). Missing, empty, or unparseable files fail with the
// audio-file-invalid kind.
func (c *Codec) Decode(ctx context.Context, path, containerHint string) (*PcmBuffer, error) {
	info, err := c.stat(path)
	if err != nil {
		return nil, domain.E(domain.KindAudioFileInvalid, fmt.Sprintf("cannot access audio file: %s", path), err)
	}
	if info.Size() == 0 {
		return nil, domain.E(domain.KindAudioFileInvalid, fmt.Sprintf("audio file is empty: %s", path), nil)
	}

	if container(path, containerHint) == "wav" {
		return c.decodeWAV(path)
	}
	return c.decodeCompressed(ctx, path)
}

// Probe returns the clip's byte size and playback duration without a
// full decode. Used at schedule time to capture stats synchronously.
func (c *Codec) Probe(ctx context.Context, path, containerHint string) (Info, error) {
	fi, err := c.stat(path)
	if err != nil {
		return Info{}, domain.E(domain.KindAudioFileInvalid, fmt.Sprintf("cannot access audio file: %s", path), err)
	}

	probe := Info{SizeBytes: fi.Size()}
	if probe.SizeBytes == 0 {
		return Info{}, domain.E(domain.KindAudioFileInvalid, fmt.Sprintf("audio file is empty: %s", path), nil)
	}

	if container(path, containerHint) == "wav" {
		seconds, err := c.wavDuration(path)
		if err != nil {
			return Info{}, err
		}
		probe.Seconds = seconds
		return probe, nil
	}

	res, err := c.runner.Run(ctx, c.ffprobeBin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return Info{}, domain.E(domain.KindAudioFileInvalid, fmt.Sprintf("ffprobe failed for: %s", path), err)
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(res.Stdout), 64)
	if err != nil {
		return Info{}, domain.E(domain.KindAudioFileInvalid, "ffprobe returned no duration", err)
	}
	probe.Seconds = seconds
	return probe, nil
}

// decodeWAV parses a WAV/linear-PCM container in-process.
func (c *Codec) decodeWAV(path string) (*PcmBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, domain.E(domain.KindAudioFileInvalid, fmt.Sprintf("opening audio file: %s", path), err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, domain.E(domain.KindAudioFileInvalid, fmt.Sprintf("not a valid WAV file: %s", path), nil)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, domain.E(domain.KindAudioFileInvalid, fmt.Sprintf("decoding WAV data: %s", path), err)
	}
	if buf.Format == nil || buf.Format.NumChannels < 1 || buf.Format.SampleRate < 1 {
		return nil, domain.E(domain.KindAudioFileInvalid, fmt.Sprintf("WAV file has no usable format: %s", path), nil)
	}

	bitDepth := int(dec.BitDepth)
	if bitDepth == 0 {
		bitDepth = 16
	}

	mono := downmix(buf.Data, buf.Format.NumChannels, bitDepth)
	return &PcmBuffer{Samples: resampleLinear(mono, buf.Format.SampleRate, SampleRate)}, nil
}

// decodeCompressed converts a compressed container to 16 kHz mono WAV
// via ffmpeg, then parses the result in-process.
func (c *Codec) decodeCompressed(ctx context.Context, path string) (*PcmBuffer, error) {
	tempDir, err := c.mkdirTemp("", "medivoice-decode-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp workspace: %w", err)
	}
	defer func() { _ = c.removeAll(tempDir) }()

	outPath := filepath.Join(tempDir, "decoded-16k-mono.wav")
	_, err = c.runner.Run(ctx, c.ffmpegBin,
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", path,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(SampleRate),
		"-c:a", "pcm_s16le",
		outPath,
	)
	if err != nil {
		return nil, domain.E(domain.KindAudioFileInvalid, fmt.Sprintf("cannot parse audio container: %s", path), err)
	}
	if _, err := c.stat(outPath); err != nil {
		return nil, domain.E(domain.KindAudioFileInvalid, "ffmpeg completed but produced no output", err)
	}

	return c.decodeWAV(outPath)
}

// wavDuration computes the playback duration of a WAV file.
func (c *Codec) wavDuration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, domain.E(domain.KindAudioFileInvalid, fmt.Sprintf("opening audio file: %s", path), err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, domain.E(domain.KindAudioFileInvalid, fmt.Sprintf("not a valid WAV file: %s", path), nil)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return 0, domain.E(domain.KindAudioFileInvalid, "reading WAV data", err)
	}
	if buf.Format == nil || buf.Format.NumChannels < 1 || buf.Format.SampleRate < 1 {
		return 0, domain.E(domain.KindAudioFileInvalid, fmt.Sprintf("WAV file has no usable format: %s", path), nil)
	}

	frames := len(buf.Data) / buf.Format.NumChannels
	return float64(frames) / float64(buf.Format.SampleRate), nil
}

// container resolves the clip container from an explicit hint or the
// file extension.
func container(path, hint string) string {
	h := strings.ToLower(strings.TrimSpace(hint))
	if h != "" {
		return strings.TrimPrefix(h, ".")
	}
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// downmix averages interleaved integer channels sample-wise into mono
// float32 normalized to [-1.0, 1.0].
func downmix(data []int, channels, bitDepth int) []float32 {
	scale := float64(int64(1) << uint(bitDepth-1))
	frames := len(data) / channels

	mono := make([]float32, 0, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += float64(data[i*channels+ch])
		}
		v := sum / float64(channels) / scale
		if v > 1.0 {
			v = 1.0
		} else if v < -1.0 {
			v = -1.0
		}
		mono = append(mono, float32(v))
	}
	return mono
}

// resampleLinear converts between sample rates by linear interpolation.
// Short voice clips do not justify a band-limited resampler; the
// quality trade-off is accepted and documented.
func resampleLinear(in []float32, from, to int) []float32 {
	if from == to || len(in) == 0 {
		out := make([]float32, len(in))
		copy(out, in)
		return out
	}

	ratio := float64(from) / float64(to)
	outLen := int(float64(len(in)) / ratio)
	if outLen < 1 {
		outLen = 1
	}

	out := make([]float32, outLen)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = in[idx]*(1-frac) + in[idx+1]*frac
	}
	return out
}
