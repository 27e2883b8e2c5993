package domain

import "time"

// ConnState models the recognition socket lifecycle.
type ConnState string

const (
	ConnStateDisconnected ConnState = "disconnected"
	ConnStateConnecting   ConnState = "connecting"
	ConnStateConnected    ConnState = "connected"
)

// ConnectionEventKind identifies what happened on the recognition socket.
type ConnectionEventKind string

const (
	ConnectionOpened      ConnectionEventKind = "opened"
	ConnectionClosed      ConnectionEventKind = "closed"
	ConnectionGaveUp      ConnectionEventKind = "gave_up"
	ConnectionSentence    ConnectionEventKind = "sentence"
	ConnectionServerError ConnectionEventKind = "server_error"
)

// ConnectionEvent is emitted by the connection manager in socket order.
type ConnectionEvent struct {
	Kind ConnectionEventKind

	// Sentence events.
	Text string
	RTF  float64

	// Server error events.
	Message string

	// Close events. Delay is zero when no reconnect was scheduled.
	Attempt int
	Delay   time.Duration
	Err     error
}

// Wire message types used by the recognition server.
const (
	MessageTypeFullSentence = "fullSentence"
	MessageTypeError        = "error"
	ControlTypeStop         = "stop"
)

// ServerMessage is any JSON frame sent by the recognition server.
type ServerMessage struct {
	Type    string  `json:"type"`
	Text    string  `json:"text,omitempty"`
	RTF     float64 `json:"rtf,omitempty"`
	Message string  `json:"message,omitempty"`
}

// ControlMessage is a client control frame such as the end-of-utterance marker.
type ControlMessage struct {
	Type string `json:"type"`
}

// SynthesisRequest asks the speech synthesis server to stream audio for text.
type SynthesisRequest struct {
	Text     string  `json:"text"`
	Voice    string  `json:"voice"`
	Speed    float64 `json:"speed"`
	Language string  `json:"language"`
}

// FrameKind distinguishes websocket payload types.
type FrameKind int

const (
	FrameText FrameKind = iota + 1
	FrameBinary
)

// Clip is decoded interleaved 16-bit PCM ready for output.
type Clip struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Snapshot summarizes assistant state for the UI.
type Snapshot struct {
	ActiveField     string            `json:"activeField"`
	Fields          []string          `json:"fields"`
	Values          map[string]string `json:"values"`
	Recording       bool              `json:"recording"`
	MicAvailable    bool              `json:"micAvailable"`
	ServerAvailable bool              `json:"serverAvailable"`
	Sentences       []string          `json:"sentences"`
	Correcting      bool              `json:"correcting"`
	Display         string            `json:"display"`
	Confirmation    string            `json:"confirmation"`
}
