package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"voicefill/internal/domain"
	"voicefill/internal/ports"
)

var errNotOpen = errors.New("socket is not open")

type fakeConn struct {
	mu        sync.Mutex
	connected bool
	audioErr  error
	stopErr   error
	sent      [][]byte
	stops     int
	connects  int
	events    chan domain.ConnectionEvent
}

func newFakeConn(connected bool) *fakeConn {
	return &fakeConn{connected: connected, events: make(chan domain.ConnectionEvent, 16)}
}

func (c *fakeConn) Connect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
}

func (c *fakeConn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeConn) SendAudio(chunk []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.audioErr != nil {
		return c.audioErr
	}
	c.sent = append(c.sent, append([]byte(nil), chunk...))
	return nil
}

func (c *fakeConn) SendStop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopErr != nil {
		return c.stopErr
	}
	c.stops++
	return nil
}

func (c *fakeConn) Events() <-chan domain.ConnectionEvent { return c.events }

func (c *fakeConn) snapshot() (sent []string, stops int, connects int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, chunk := range c.sent {
		sent = append(sent, string(chunk))
	}
	return sent, c.stops, c.connects
}

func (c *fakeConn) disconnect(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.audioErr = err
	c.stopErr = err
}

type fakeCapture struct {
	mu       sync.Mutex
	probeErr error
	startErr error
	sessions []*fakeAudioSession
	starts   int
}

func (c *fakeCapture) Start(_ context.Context, _ ports.AudioConfig) (ports.AudioSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startErr != nil {
		return nil, c.startErr
	}
	if c.starts >= len(c.sessions) {
		return nil, errors.New("no fake session left")
	}
	session := c.sessions[c.starts]
	c.starts++
	return session, nil
}

func (c *fakeCapture) Probe(_ context.Context, _ ports.AudioConfig) error {
	return c.probeErr
}

// fakeAudioSession yields its chunks and then blocks until stopped.
type fakeAudioSession struct {
	mu         sync.Mutex
	chunks     [][]byte
	ignoreStop bool
	closed     bool

	eof     chan struct{}
	eofOnce sync.Once
}

func newFakeAudioSession(chunks ...string) *fakeAudioSession {
	s := &fakeAudioSession{eof: make(chan struct{})}
	for _, chunk := range chunks {
		s.chunks = append(s.chunks, []byte(chunk))
	}
	return s
}

func (s *fakeAudioSession) Read(p []byte) (int, error) {
	s.mu.Lock()
	if len(s.chunks) > 0 {
		n := copy(p, s.chunks[0])
		s.chunks = s.chunks[1:]
		s.mu.Unlock()
		return n, nil
	}
	s.mu.Unlock()

	<-s.eof
	return 0, io.EOF
}

func (s *fakeAudioSession) Stop() error {
	if !s.ignoreStop {
		s.eofOnce.Do(func() { close(s.eof) })
	}
	return nil
}

func (s *fakeAudioSession) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.eofOnce.Do(func() { close(s.eof) })
	return nil
}

func (s *fakeAudioSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeAnnouncer struct {
	mu    sync.Mutex
	texts []string
}

func (a *fakeAnnouncer) Announce(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.texts = append(a.texts, text)
}

func (a *fakeAnnouncer) announced() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.texts...)
}

type correctCall struct {
	input  string
	action string
}

type fakeCorrector struct {
	mu     sync.Mutex
	result string
	err    error
	calls  []correctCall
}

func (c *fakeCorrector) Correct(_ context.Context, input string, action string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, correctCall{input: input, action: action})
	if c.err != nil {
		return "", c.err
	}
	return c.result, nil
}

func (c *fakeCorrector) snapshot() []correctCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]correctCall(nil), c.calls...)
}

type fieldEvent struct {
	field string
	on    bool
}

type fakeSink struct {
	mu            sync.Mutex
	displays      []string
	activations   []fieldEvent
	values        map[string]string
	confirmations []string
	recordings    []fieldEvent
	alerts        []string
	playback      []string
}

func newFakeSink() *fakeSink {
	return &fakeSink{values: map[string]string{}}
}

func (s *fakeSink) DisplayChanged(html string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.displays = append(s.displays, html)
}

func (s *fakeSink) FieldActivated(field string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activations = append(s.activations, fieldEvent{field: field, on: active})
}

func (s *fakeSink) FieldValueChanged(field string, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[field] = value
}

func (s *fakeSink) ConfirmationChanged(prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmations = append(s.confirmations, prompt)
}

func (s *fakeSink) RecordingChanged(field string, recording bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordings = append(s.recordings, fieldEvent{field: field, on: recording})
}

func (s *fakeSink) Alert(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, message)
}

func (s *fakeSink) PlaybackStatus(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playback = append(s.playback, message)
}

func (s *fakeSink) lastDisplay() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.displays) == 0 {
		return ""
	}
	return s.displays[len(s.displays)-1]
}

func (s *fakeSink) lastConfirmation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.confirmations) == 0 {
		return ""
	}
	return s.confirmations[len(s.confirmations)-1]
}

func (s *fakeSink) value(field string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[field]
}

func (s *fakeSink) alertList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.alerts...)
}

type fakeRecorderEvents struct {
	mu         sync.Mutex
	statuses   []string
	shows      []string
	alerts     []string
	recordings []bool
}

func (e *fakeRecorderEvents) status(message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.statuses = append(e.statuses, message)
}

func (e *fakeRecorderEvents) show(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shows = append(e.shows, text)
}

func (e *fakeRecorderEvents) alert(message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.alerts = append(e.alerts, message)
}

func (e *fakeRecorderEvents) recordingChanged(recording bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recordings = append(e.recordings, recording)
}

func (e *fakeRecorderEvents) statusList() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.statuses...)
}

func quietLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
