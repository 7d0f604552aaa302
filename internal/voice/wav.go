package voice

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	appErrors "github.com/noah-isme/voice-attendance-api/pkg/errors"
)

const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE

	// DefaultSampleRate is used when encoding samples that carry no rate.
	DefaultSampleRate = 16000

	// DefaultMaxWAVBytes caps a WAV stream when the caller passes no limit.
	DefaultMaxWAVBytes = 20 << 20

	maxFmtChunkBytes = 64
	streamingSize    = math.MaxUint32
)

// Audio is a decoded mono sample sequence.
type Audio struct {
	Samples    []float64
	SampleRate int
}

// DecodeWAV reads at most limit bytes of a RIFF/WAVE stream. Integer PCM is
// scaled to [-1, 1), IEEE float is taken as is, and multi-channel frames are
// averaged down to mono. A limit <= 0 selects DefaultMaxWAVBytes.
func DecodeWAV(r io.Reader, limit int64) (Audio, error) {
	if limit <= 0 {
		limit = DefaultMaxWAVBytes
	}
	raw, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return Audio{}, invalidWAV("read stream", err)
	}
	if int64(len(raw)) > limit {
		return Audio{}, invalidWAV(fmt.Sprintf("stream exceeds %d bytes", limit), nil)
	}

	// Every chunk must fit in the bytes actually received before the decoder
	// sees the stream.
	format, err := scanChunks(raw)
	if err != nil {
		return Audio{}, err
	}

	dec := wav.NewDecoder(bytes.NewReader(raw))
	if !dec.IsValidFile() {
		return Audio{}, invalidWAV("unreadable header", dec.Err())
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Audio{}, invalidWAV("decode pcm", err)
	}

	channels := buf.Format.NumChannels
	if channels <= 0 {
		return Audio{}, invalidWAV("zero channels", nil)
	}
	scale := sampleScaler(format, buf.SourceBitDepth)
	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += scale(buf.Data[i*channels+ch])
		}
		samples[i] = sum / float64(channels)
	}
	return Audio{Samples: samples, SampleRate: buf.Format.SampleRate}, nil
}

// scanChunks validates the chunk layout of raw and returns the sample format
// code. Declared sizes larger than the remaining bytes are rejected.
func scanChunks(raw []byte) (uint16, error) {
	if len(raw) < 12 || string(raw[0:4]) != "RIFF" || string(raw[8:12]) != "WAVE" {
		return 0, invalidWAV("missing RIFF/WAVE signature", nil)
	}

	var format uint16
	seenFmt := false
	off := 12
	for {
		if off+8 > len(raw) {
			return 0, invalidWAV("data chunk not found", nil)
		}
		id := string(raw[off : off+4])
		size := binary.LittleEndian.Uint32(raw[off+4 : off+8])
		body := off + 8
		remaining := uint64(len(raw) - body)

		switch id {
		case "fmt ":
			if size < 16 || size > maxFmtChunkBytes {
				return 0, invalidWAV(fmt.Sprintf("fmt chunk size %d out of range", size), nil)
			}
			if uint64(size) > remaining {
				return 0, invalidWAV("fmt chunk truncated", nil)
			}
			f, err := parseFormat(raw[body : body+int(size)])
			if err != nil {
				return 0, err
			}
			format, seenFmt = f, true
		case "data":
			if !seenFmt {
				return 0, invalidWAV("data chunk before fmt chunk", nil)
			}
			if size != streamingSize && uint64(size) > remaining {
				return 0, invalidWAV(fmt.Sprintf("data chunk truncated: header claims %d bytes, %d present", size, remaining), nil)
			}
			return format, nil
		default:
			if uint64(size) > remaining {
				return 0, invalidWAV(fmt.Sprintf("chunk %q truncated", id), nil)
			}
		}
		off = body + int(size) + int(size&1)
	}
}

func parseFormat(b []byte) (uint16, error) {
	format := binary.LittleEndian.Uint16(b[0:2])
	channels := binary.LittleEndian.Uint16(b[2:4])
	bits := binary.LittleEndian.Uint16(b[14:16])
	if format == wavFormatExtensible && len(b) >= 26 {
		format = binary.LittleEndian.Uint16(b[24:26])
	}
	if channels == 0 {
		return 0, invalidWAV("zero channels", nil)
	}
	switch {
	case format == wavFormatPCM && (bits == 8 || bits == 16 || bits == 24 || bits == 32):
	case format == wavFormatFloat && bits == 32:
	default:
		return 0, invalidWAV(fmt.Sprintf("unsupported encoding format=%d bits=%d", format, bits), nil)
	}
	return format, nil
}

// sampleScaler maps decoder integers to [-1, 1). 8-bit PCM is unsigned and
// 32-bit float samples arrive as their raw bit pattern.
func sampleScaler(format uint16, bits int) func(int) float64 {
	if format == wavFormatFloat {
		return func(v int) float64 {
			return float64(math.Float32frombits(uint32(int32(v))))
		}
	}
	switch bits {
	case 8:
		return func(v int) float64 { return (float64(v) - 128) / 128 }
	case 16:
		return func(v int) float64 { return float64(v) / 32768 }
	case 24:
		return func(v int) float64 { return float64(v) / 8388608 }
	default:
		return func(v int) float64 { return float64(v) / 2147483648 }
	}
}

// WriteWAV encodes mono samples in [-1, 1] as 16-bit PCM.
func WriteWAV(w io.WriteSeeker, a Audio) error {
	rate := a.SampleRate
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		SourceBitDepth: 16,
		Data:           make([]int, len(a.Samples)),
	}
	for i, s := range a.Samples {
		v := math.Round(s * 32768)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		}
		if v < math.MinInt16 {
			v = math.MinInt16
		}
		buf.Data[i] = int(v)
	}

	enc := wav.NewEncoder(w, rate, 16, 1, wavFormatPCM)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}

func invalidWAV(reason string, err error) error {
	msg := "invalid wav: " + reason
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInvalidAudio.Code, appErrors.ErrInvalidAudio.Status, msg)
	}
	return appErrors.Clone(appErrors.ErrInvalidAudio, msg)
}
