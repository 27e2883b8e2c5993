package announce

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"voicefill/internal/domain"
	"voicefill/internal/ports"
	"voicefill/internal/transport"
)

const statusPlaybackComplete = "Playback complete"

// Config controls the speech synthesis request.
type Config struct {
	URL         string
	Voice       string
	Speed       float64
	Language    string
	DialTimeout time.Duration
}

// Announcer streams synthesized speech for a text and plays the received
// buffers strictly in arrival order, one at a time.
type Announcer struct {
	dialer   ports.Dialer
	decoder  ports.AudioDecoder
	output   ports.AudioOutput
	reporter ports.PlaybackReporter
	log      logrus.FieldLogger
	cfg      Config

	mu         sync.Mutex
	queue      deque.Deque[[]byte]
	playing    bool
	generation uint64
	socket     ports.Socket
	ctx        context.Context
	cancel     context.CancelFunc

	// Held while a clip is on the output device.
	playMu sync.Mutex
}

func New(
	dialer ports.Dialer,
	decoder ports.AudioDecoder,
	output ports.AudioOutput,
	reporter ports.PlaybackReporter,
	logger logrus.FieldLogger,
	cfg Config,
) *Announcer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.Voice == "" {
		cfg.Voice = "af_nicole"
	}
	if cfg.Speed <= 0 {
		cfg.Speed = 1.0
	}
	if cfg.Language == "" {
		cfg.Language = "en-us"
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	return &Announcer{
		dialer:   dialer,
		decoder:  decoder,
		output:   output,
		reporter: reporter,
		log:      logger.WithField("component", "announcer"),
		cfg:      cfg,
	}
}

// Announce drops whatever is queued or playing and starts a new synthesis stream.
func (a *Announcer) Announce(text string) {
	ctx, cancel := context.WithCancel(context.Background())

	a.mu.Lock()
	a.generation++
	generation := a.generation
	a.queue.Clear()
	a.playing = false
	previousSocket := a.socket
	previousCancel := a.cancel
	a.socket = nil
	a.ctx = ctx
	a.cancel = cancel
	a.mu.Unlock()

	if previousCancel != nil {
		previousCancel()
	}
	if previousSocket != nil {
		_ = previousSocket.Close()
	}

	log := a.log.WithField("announcement", uuid.NewString())
	log.Infof("announcing message: %q", text)
	go a.stream(ctx, generation, text, log)
}

func (a *Announcer) stream(ctx context.Context, generation uint64, text string, log logrus.FieldLogger) {
	dialCtx, cancel := context.WithTimeout(ctx, a.cfg.DialTimeout)
	socket, err := a.dialer.Dial(dialCtx, a.cfg.URL)
	cancel()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.WithError(err).Warn("speech synthesis server unreachable")
		}
		return
	}

	a.mu.Lock()
	if generation != a.generation {
		a.mu.Unlock()
		_ = socket.Close()
		return
	}
	a.socket = socket
	a.mu.Unlock()

	request, err := json.Marshal(domain.SynthesisRequest{
		Text:     text,
		Voice:    a.cfg.Voice,
		Speed:    a.cfg.Speed,
		Language: a.cfg.Language,
	})
	if err != nil {
		log.WithError(err).Error("failed to encode synthesis request")
		_ = socket.Close()
		return
	}
	log.Debug("connected, requesting audio stream")
	if err := socket.WriteText(request); err != nil {
		log.WithError(err).Warn("failed to send synthesis request")
		_ = socket.Close()
		return
	}

	for {
		kind, payload, err := socket.Read()
		if err != nil {
			if transport.IsCleanClose(err) {
				log.Debug("synthesis stream closed cleanly")
			} else if ctx.Err() == nil {
				log.WithError(err).Info("synthesis connection lost")
			}
			return
		}
		if kind == domain.FrameBinary {
			log.Debugf("received audio chunk (%.1f KB)", float64(len(payload))/1024)
			a.enqueue(generation, payload)
			continue
		}
		log.Infof("server message: %s", string(payload))
	}
}

func (a *Announcer) enqueue(generation uint64, payload []byte) {
	a.mu.Lock()
	if generation != a.generation {
		a.mu.Unlock()
		return
	}
	a.queue.PushBack(payload)
	start := !a.playing
	if start {
		a.playing = true
	}
	ctx := a.ctx
	a.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	if start {
		go a.drain(ctx, generation)
	}
}

func (a *Announcer) drain(ctx context.Context, generation uint64) {
	for {
		a.mu.Lock()
		if generation != a.generation {
			a.mu.Unlock()
			return
		}
		if a.queue.Len() == 0 {
			a.playing = false
			a.mu.Unlock()
			a.report(statusPlaybackComplete)
			return
		}
		payload := a.queue.PopFront()
		remaining := a.queue.Len()
		a.mu.Unlock()

		clip, err := a.decoder.Decode(payload)
		if err != nil {
			a.log.WithError(err).Warn("error decoding audio, skipping chunk")
			continue
		}

		a.report(fmt.Sprintf("Playing audio (%d chunks remaining in queue)", remaining))
		a.playMu.Lock()
		err = a.output.Play(ctx, clip)
		a.playMu.Unlock()
		if err != nil && ctx.Err() == nil {
			a.log.WithError(err).Warn("audio playback failed")
		}
	}
}

// Playing reports whether a drain loop is active.
func (a *Announcer) Playing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.playing
}

// Queued returns how many buffers await playback.
func (a *Announcer) Queued() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.queue.Len()
}

// Close stops the current announcement.
func (a *Announcer) Close() {
	a.mu.Lock()
	a.generation++
	a.queue.Clear()
	a.playing = false
	socket := a.socket
	cancel := a.cancel
	a.socket = nil
	a.cancel = nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if socket != nil {
		_ = socket.Close()
	}
}

func (a *Announcer) report(message string) {
	if a.reporter != nil {
		a.reporter.PlaybackStatus(message)
	}
}
