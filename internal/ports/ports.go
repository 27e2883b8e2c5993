package ports

import (
	"context"
	"io"

	"voicefill/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
	Codec       string
	Container   string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
	// Probe opens the device once and releases it.
	Probe(ctx context.Context, cfg AudioConfig) error
}

// Socket is one open websocket connection.
type Socket interface {
	WriteBinary(payload []byte) error
	WriteText(payload []byte) error
	Read() (domain.FrameKind, []byte, error)
	Close() error
}

// Dialer opens websocket connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Socket, error)
}

// RecognitionConnection is the long-lived link to the recognition server.
type RecognitionConnection interface {
	Connect()
	Connected() bool
	SendAudio(chunk []byte) error
	SendStop() error
	Events() <-chan domain.ConnectionEvent
}

// AudioDecoder turns one received audio buffer into playable PCM.
type AudioDecoder interface {
	Decode(payload []byte) (domain.Clip, error)
}

// AudioOutput plays a clip and returns once playback has ended.
type AudioOutput interface {
	Play(ctx context.Context, clip domain.Clip) error
}

// Announcer speaks confirmation text back to the user.
type Announcer interface {
	Announce(text string)
}

// Corrector rewrites text following a free-form instruction.
type Corrector interface {
	Correct(ctx context.Context, input string, action string) (string, error)
}

// PlaybackReporter receives announcer progress.
type PlaybackReporter interface {
	PlaybackStatus(message string)
}

// EventSink emits backend state to the UI.
type EventSink interface {
	PlaybackReporter
	DisplayChanged(html string)
	FieldActivated(field string, active bool)
	FieldValueChanged(field string, value string)
	ConfirmationChanged(prompt string)
	RecordingChanged(field string, recording bool)
	Alert(message string)
}
