package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"voicefill/internal/domain"
)

// PortAudioOutput plays clips on the default output device.
type PortAudioOutput struct {
	framesPerBuffer int

	mu          sync.Mutex
	initialized bool
}

func NewPortAudioOutput(framesPerBuffer int) *PortAudioOutput {
	if framesPerBuffer <= 0 {
		framesPerBuffer = 1024
	}
	return &PortAudioOutput{framesPerBuffer: framesPerBuffer}
}

// Play blocks until the clip has been written to the device or ctx is done.
func (o *PortAudioOutput) Play(ctx context.Context, clip domain.Clip) error {
	if clip.Channels <= 0 || clip.SampleRate <= 0 {
		return errors.New("clip has no playable format")
	}
	if len(clip.Samples) == 0 {
		return nil
	}
	if err := o.init(); err != nil {
		return err
	}

	out := make([]int16, o.framesPerBuffer*clip.Channels)
	stream, err := portaudio.OpenDefaultStream(0, clip.Channels, float64(clip.SampleRate), o.framesPerBuffer, out)
	if err != nil {
		return fmt.Errorf("failed to open output stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("failed to start output stream: %w", err)
	}
	defer stream.Stop()

	for offset := 0; offset < len(clip.Samples); offset += len(out) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := copy(out, clip.Samples[offset:])
		clear(out[n:])
		if err := stream.Write(); err != nil {
			return fmt.Errorf("failed to write audio: %w", err)
		}
	}
	return nil
}

func (o *PortAudioOutput) init() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.initialized {
		return nil
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio init failed: %w", err)
	}
	o.initialized = true
	return nil
}

// Close releases PortAudio if it was initialized.
func (o *PortAudioOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.initialized {
		return nil
	}
	o.initialized = false
	return portaudio.Terminate()
}
