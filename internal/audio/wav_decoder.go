package audio

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-audio/wav"

	"voicefill/internal/domain"
)

var ErrInvalidWAV = errors.New("payload is not a playable WAV stream")

// WAVDecoder decodes the WAV chunks streamed by the synthesis server.
type WAVDecoder struct{}

func (WAVDecoder) Decode(payload []byte) (domain.Clip, error) {
	decoder := wav.NewDecoder(bytes.NewReader(payload))
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return domain.Clip{}, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}
	if buf == nil || buf.Format == nil || decoder.SampleRate == 0 || decoder.NumChans == 0 {
		return domain.Clip{}, ErrInvalidWAV
	}

	depth := int(decoder.BitDepth)
	samples := make([]int16, len(buf.Data))
	for i, value := range buf.Data {
		samples[i] = toInt16(value, depth)
	}

	return domain.Clip{
		Samples:    samples,
		SampleRate: int(decoder.SampleRate),
		Channels:   int(decoder.NumChans),
	}, nil
}

func toInt16(value int, depth int) int16 {
	switch {
	case depth == 8:
		// 8-bit WAV is unsigned.
		return int16((value - 128) << 8)
	case depth > 16:
		return int16(value >> (depth - 16))
	default:
		return int16(value)
	}
}
