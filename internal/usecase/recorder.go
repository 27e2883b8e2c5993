package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"voicefill/internal/ports"
)

var (
	ErrMicrophoneUnavailable = errors.New("microphone is not available")
	ErrServerUnavailable     = errors.New("recognition server is not available")
	ErrAlreadyRecording      = errors.New("already recording")
	ErrNotRecording          = errors.New("not recording")
)

const (
	alertMicrophone = "Microphone access is not available. Please check your device permissions."
	alertServer     = "Server connection is not available. Please ensure the ASR server is running."

	statusMicrophoneReady  = "Microphone access granted. Ready to start recording."
	statusMicrophoneFailed = "Failed to access microphone. Please check your settings."
	statusStartFailed      = "Failed to start recording"
	statusSendFailed       = "Cannot send audio: Server not connected. Attempting to reconnect..."
	statusStopFailed       = "Cannot send stop signal: Server not connected. Attempting to reconnect..."
	statusNoAudio          = "No audio recorded"
	displayProcessing      = "Processing audio..."
)

// recorderEvents is how the recorder reports to the view.
type recorderEvents interface {
	status(message string)
	show(text string)
	alert(message string)
	recordingChanged(recording bool)
}

// RecorderConfig controls capture and stop behavior.
type RecorderConfig struct {
	Audio       ports.AudioConfig
	ChunkSize   int
	StopTimeout time.Duration
}

// Recorder owns one utterance at a time: it streams captured audio to the
// recognition link as it arrives and ends the utterance with a stop marker.
type Recorder struct {
	capture ports.AudioCapture
	link    ports.RecognitionConnection
	events  recorderEvents
	log     logrus.FieldLogger
	cfg     RecorderConfig

	mu           sync.Mutex
	micAvailable bool
	current      *recording
}

type recording struct {
	id     string
	cancel context.CancelFunc
	audio  ports.AudioSession
	done   chan struct{}

	chunksMu sync.Mutex
	chunks   [][]byte
}

func (r *recording) keep(chunk []byte) int {
	r.chunksMu.Lock()
	defer r.chunksMu.Unlock()
	r.chunks = append(r.chunks, append([]byte(nil), chunk...))
	return len(r.chunks)
}

func (r *recording) drain() int {
	r.chunksMu.Lock()
	defer r.chunksMu.Unlock()
	n := len(r.chunks)
	r.chunks = nil
	return n
}

func newRecorder(
	capture ports.AudioCapture,
	link ports.RecognitionConnection,
	events recorderEvents,
	logger logrus.FieldLogger,
	cfg RecorderConfig,
) *Recorder {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 2 * time.Second
	}
	return &Recorder{
		capture: capture,
		link:    link,
		events:  events,
		log:     logger.WithField("component", "recorder"),
		cfg:     cfg,
	}
}

// Probe checks microphone access and records the result.
func (r *Recorder) Probe(ctx context.Context) bool {
	err := r.capture.Probe(ctx, r.cfg.Audio)

	r.mu.Lock()
	r.micAvailable = err == nil
	r.mu.Unlock()

	if err != nil {
		r.log.WithError(err).Error("microphone probe failed")
		r.events.status(statusMicrophoneFailed)
		return false
	}
	r.log.Info("microphone access granted")
	r.events.status(statusMicrophoneReady)
	return true
}

func (r *Recorder) MicAvailable() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.micAvailable
}

func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != nil
}

// Start opens a capture session and begins forwarding audio.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if !r.micAvailable {
		r.mu.Unlock()
		r.events.alert(alertMicrophone)
		return ErrMicrophoneUnavailable
	}
	if !r.link.Connected() {
		r.mu.Unlock()
		r.events.alert(alertServer)
		return ErrServerUnavailable
	}
	if r.current != nil {
		r.mu.Unlock()
		r.log.Debug("already recording, ignoring start request")
		return ErrAlreadyRecording
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	audio, err := r.capture.Start(sessionCtx, r.cfg.Audio)
	if err != nil {
		cancel()
		r.mu.Unlock()
		r.log.WithError(err).Error("failed to start capture")
		r.events.status(statusStartFailed)
		return fmt.Errorf("start capture: %w", err)
	}

	active := &recording{
		id:     uuid.NewString(),
		cancel: cancel,
		audio:  audio,
		done:   make(chan struct{}),
	}
	r.current = active
	r.mu.Unlock()

	r.log.WithField("utterance", active.id).Info("recording started")
	r.events.recordingChanged(true)

	log := r.log.WithField("utterance", active.id)
	go pumpAudioChunks(audio, func(chunk []byte) { r.forward(active, log, chunk) }, r.cfg.ChunkSize, log, active.done)
	return nil
}

// forward sends one chunk right away. A chunk that cannot be sent is dropped.
func (r *Recorder) forward(active *recording, log logrus.FieldLogger, chunk []byte) {
	count := active.keep(chunk)
	if err := r.link.SendAudio(chunk); err != nil {
		log.WithError(err).Warn("cannot send audio chunk")
		r.events.status(statusSendFailed)
		r.link.Connect()
		return
	}
	log.WithFields(logrus.Fields{"bytes": len(chunk), "chunk": count}).Debug("sent audio chunk")
}

// Stop ends the utterance. Buffered chunks are cleared whatever the outcome.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	active := r.current
	r.current = nil
	r.mu.Unlock()

	if active == nil {
		r.log.Debug("not recording, ignoring stop request")
		return ErrNotRecording
	}
	log := r.log.WithField("utterance", active.id)
	r.events.recordingChanged(false)

	if err := active.audio.Stop(); err != nil {
		log.WithError(err).Warn("failed to stop audio capture cleanly")
	}
	if !waitForPump(active.audio, active.done, r.cfg.StopTimeout) {
		log.Warn("audio capture did not drain in time")
	}
	_ = active.audio.Close()
	active.cancel()

	chunks := active.drain()
	log.WithField("chunks", chunks).Info("recording stopped")
	if chunks == 0 {
		r.events.status(statusNoAudio)
		return nil
	}

	if err := r.link.SendStop(); err != nil {
		log.WithError(err).Warn("cannot send stop signal")
		r.events.status(statusStopFailed)
		r.link.Connect()
		return nil
	}
	r.events.show(displayProcessing)
	return nil
}
