package recognition

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"voicefill/internal/domain"
	"voicefill/internal/ports"
	"voicefill/internal/transport"
)

var ErrNotConnected = errors.New("recognition socket is not open")

// Config controls the recognition socket and its reconnect policy.
// MaxAttempts defaults to 5; a negative value disables automatic retries.
type Config struct {
	URL              string
	MaxAttempts      int
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	WatchdogInterval time.Duration
	DialTimeout      time.Duration
}

// Snapshot is a point-in-time view of the connection.
type Snapshot struct {
	State            domain.ConnState
	Attempts         int
	ReconnectPending bool
}

// Manager owns the single recognition socket. Events are delivered in socket order on Events().
type Manager struct {
	dialer ports.Dialer
	clock  clock.Clock
	log    logrus.FieldLogger
	cfg    Config

	events   chan domain.ConnectionEvent
	done     chan struct{}
	doneOnce sync.Once

	mu           sync.Mutex
	state        domain.ConnState
	socket       ports.Socket
	generation   uint64
	attempts     int
	reconnect    *clock.Timer
	reconnectSeq uint64
	shutdown     bool
}

func NewManager(dialer ports.Dialer, clk clock.Clock, logger logrus.FieldLogger, cfg Config) *Manager {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	switch {
	case cfg.MaxAttempts == 0:
		cfg.MaxAttempts = 5
	case cfg.MaxAttempts < 0:
		cfg.MaxAttempts = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 16 * time.Second
	}
	if cfg.WatchdogInterval <= 0 {
		cfg.WatchdogInterval = 5 * time.Second
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	return &Manager{
		dialer: dialer,
		clock:  clk,
		log:    logger.WithField("component", "recognition"),
		cfg:    cfg,
		events: make(chan domain.ConnectionEvent, 64),
		done:   make(chan struct{}),
		state:  domain.ConnStateDisconnected,
	}
}

// Run connects and then keeps a watchdog that reconnects whenever the
// socket is down and no retry is scheduled. It returns when ctx ends.
func (m *Manager) Run(ctx context.Context) {
	ticker := m.clock.Ticker(m.cfg.WatchdogInterval)
	defer ticker.Stop()

	m.Connect()

	for {
		select {
		case <-ctx.Done():
			m.Close()
			return
		case <-m.done:
			return
		case <-ticker.C:
			m.mu.Lock()
			idle := !m.shutdown && m.state == domain.ConnStateDisconnected && m.reconnect == nil
			m.mu.Unlock()
			if idle {
				m.log.Debug("server check: not connected, attempting to connect")
				m.Connect()
			}
		}
	}
}

// Connect tears down any existing socket and pending retry, then dials again.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return
	}
	m.stopReconnectLocked()
	previous := m.socket
	m.socket = nil
	m.generation++
	generation := m.generation
	m.state = domain.ConnStateConnecting
	m.mu.Unlock()

	if previous != nil {
		if err := previous.Close(); err != nil {
			m.log.WithError(err).Debug("error closing previous socket")
		}
	}

	go m.dial(generation)
}

func (m *Manager) dial(generation uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.DialTimeout)
	socket, err := m.dialer.Dial(ctx, m.cfg.URL)
	cancel()
	if err != nil {
		m.log.WithError(err).Warn("recognition server unreachable")
		m.handleClose(generation, err)
		return
	}

	m.mu.Lock()
	if m.shutdown || generation != m.generation {
		m.mu.Unlock()
		_ = socket.Close()
		return
	}
	m.socket = socket
	m.state = domain.ConnStateConnected
	m.attempts = 0
	m.mu.Unlock()

	m.log.Info("recognition socket connected")
	m.emit(domain.ConnectionEvent{Kind: domain.ConnectionOpened})
	m.readLoop(generation, socket)
}

func (m *Manager) readLoop(generation uint64, socket ports.Socket) {
	for {
		kind, payload, err := socket.Read()
		if err != nil {
			m.handleClose(generation, err)
			return
		}
		if !m.current(generation) {
			return
		}
		if kind != domain.FrameText {
			m.log.WithField("bytes", len(payload)).Debug("ignoring binary frame from recognition server")
			continue
		}

		var message domain.ServerMessage
		if err := json.Unmarshal(payload, &message); err != nil {
			m.log.WithError(err).WithField("payload", string(payload)).Warn("malformed server message")
			continue
		}

		switch message.Type {
		case domain.MessageTypeFullSentence:
			m.log.WithField("rtf", message.RTF).Infof("received transcription: %q", message.Text)
			m.emit(domain.ConnectionEvent{Kind: domain.ConnectionSentence, Text: message.Text, RTF: message.RTF})
		case domain.MessageTypeError:
			m.log.WithField("message", message.Message).Error("recognition server error")
			m.emit(domain.ConnectionEvent{Kind: domain.ConnectionServerError, Message: message.Message})
		default:
			m.log.WithField("type", message.Type).Debug("ignoring unknown server message")
		}
	}
}

func (m *Manager) handleClose(generation uint64, cause error) {
	m.mu.Lock()
	if m.shutdown || generation != m.generation {
		m.mu.Unlock()
		return
	}
	socket := m.socket
	m.socket = nil
	m.state = domain.ConnStateDisconnected

	event := domain.ConnectionEvent{Kind: domain.ConnectionClosed, Err: cause}
	gaveUp := false
	if m.attempts < m.cfg.MaxAttempts {
		delay := reconnectDelay(m.cfg.BaseDelay, m.cfg.MaxDelay, m.attempts)
		m.attempts++
		m.scheduleReconnectLocked(delay)
		event.Attempt = m.attempts
		event.Delay = delay
	} else {
		gaveUp = true
	}
	m.mu.Unlock()

	if socket != nil {
		_ = socket.Close()
	}

	log := m.log
	if cause != nil && !transport.IsCleanClose(cause) {
		log = log.WithError(cause)
	}
	if gaveUp {
		log.Warn("max reconnect attempts reached, stopping reconnection")
	} else {
		log.WithFields(logrus.Fields{
			"attempt": event.Attempt,
			"max":     m.cfg.MaxAttempts,
			"delay":   event.Delay,
		}).Info("connection closed, scheduling reconnect")
	}

	m.emit(event)
	if gaveUp {
		m.emit(domain.ConnectionEvent{Kind: domain.ConnectionGaveUp, Attempt: m.cfg.MaxAttempts})
	}
}

func (m *Manager) scheduleReconnectLocked(delay time.Duration) {
	m.stopReconnectLocked()
	m.reconnectSeq++
	seq := m.reconnectSeq
	m.reconnect = m.clock.AfterFunc(delay, func() { m.fireReconnect(seq) })
}

func (m *Manager) fireReconnect(seq uint64) {
	m.mu.Lock()
	if m.reconnect == nil || seq != m.reconnectSeq || m.shutdown {
		m.mu.Unlock()
		return
	}
	m.reconnect = nil
	m.mu.Unlock()

	m.Connect()
}

func (m *Manager) stopReconnectLocked() {
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
}

func (m *Manager) current(generation uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.shutdown && generation == m.generation
}

// Connected reports whether the socket is open.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == domain.ConnStateConnected && m.socket != nil
}

// SendAudio forwards one captured chunk. Nothing is queued when the socket is down.
func (m *Manager) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	socket, err := m.openSocket()
	if err != nil {
		return err
	}
	if err := socket.WriteBinary(chunk); err != nil {
		return fmt.Errorf("failed to send audio chunk: %w", err)
	}
	return nil
}

// SendStop sends the end-of-utterance marker.
func (m *Manager) SendStop() error {
	socket, err := m.openSocket()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(domain.ControlMessage{Type: domain.ControlTypeStop})
	if err != nil {
		return fmt.Errorf("failed to encode stop marker: %w", err)
	}
	if err := socket.WriteText(payload); err != nil {
		return fmt.Errorf("failed to send stop marker: %w", err)
	}
	return nil
}

func (m *Manager) openSocket() (ports.Socket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != domain.ConnStateConnected || m.socket == nil {
		return nil, ErrNotConnected
	}
	return m.socket, nil
}

func (m *Manager) Events() <-chan domain.ConnectionEvent {
	return m.events
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{State: m.state, Attempts: m.attempts, ReconnectPending: m.reconnect != nil}
}

// Close stops retries and releases the socket. The manager cannot be reused.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return
	}
	m.shutdown = true
	m.stopReconnectLocked()
	socket := m.socket
	m.socket = nil
	m.state = domain.ConnStateDisconnected
	m.mu.Unlock()

	m.doneOnce.Do(func() { close(m.done) })
	if socket != nil {
		_ = socket.Close()
	}
}

func (m *Manager) emit(event domain.ConnectionEvent) {
	select {
	case m.events <- event:
	case <-m.done:
	}
}

// reconnectDelay is min(base·2^attempt, maxDelay).
func reconnectDelay(base time.Duration, maxDelay time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}
