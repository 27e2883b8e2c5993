package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"voicefill/internal/display"
	"voicefill/internal/domain"
	"voicefill/internal/ports"
)

var ErrEmptyCorrection = errors.New("correction instruction is empty")

const (
	statusServerConnected    = "Server connected"
	statusServerDisconnected = "Server disconnected"
	statusGaveUp             = "Failed to reconnect to server after maximum attempts."
	displayListening         = "Listening..."
)

// Config controls the assistant.
type Config struct {
	Fields   []string
	Recorder RecorderConfig
}

// Assistant fills a form by voice. It consumes recognition events in order,
// owns the transcript and the active field, and pushes every view change to
// the event sink.
type Assistant struct {
	conn      ports.RecognitionConnection
	recorder  *Recorder
	announcer ports.Announcer
	corrector ports.Corrector
	sink      ports.EventSink
	log       logrus.FieldLogger

	mu              sync.Mutex
	ctx             context.Context
	fields          *FieldCycler
	values          map[string]string
	transcript      Transcript
	view            string
	confirmation    string
	serverAvailable bool
	correcting      bool
}

func NewAssistant(
	conn ports.RecognitionConnection,
	capture ports.AudioCapture,
	announcer ports.Announcer,
	corrector ports.Corrector,
	sink ports.EventSink,
	logger logrus.FieldLogger,
	cfg Config,
) (*Assistant, error) {
	fields, err := NewFieldCycler(cfg.Fields)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	a := &Assistant{
		conn:      conn,
		announcer: announcer,
		corrector: corrector,
		sink:      sink,
		log:       logger.WithField("component", "assistant"),
		ctx:       context.Background(),
		fields:    fields,
		values:    make(map[string]string, len(cfg.Fields)),
	}
	a.recorder = newRecorder(capture, conn, a, logger, cfg.Recorder)
	return a, nil
}

// Init highlights the first field and checks microphone access.
func (a *Assistant) Init(ctx context.Context) {
	a.mu.Lock()
	a.ctx = ctx
	field := a.fields.Active()
	a.mu.Unlock()

	a.sink.FieldActivated(field, true)
	a.recorder.Probe(ctx)
}

// Run handles recognition events until ctx ends or the event stream closes.
func (a *Assistant) Run(ctx context.Context) {
	events := a.conn.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			a.handle(ctx, event)
		}
	}
}

func (a *Assistant) handle(ctx context.Context, event domain.ConnectionEvent) {
	switch event.Kind {
	case domain.ConnectionOpened:
		a.setServerAvailable(true)
		a.status(statusServerConnected)
	case domain.ConnectionClosed:
		a.setServerAvailable(false)
		a.status(statusServerDisconnected)
		if a.recorder.Recording() {
			_ = a.recorder.Stop()
		}
	case domain.ConnectionGaveUp:
		a.status(statusGaveUp)
	case domain.ConnectionSentence:
		a.handleSentence(ctx, event.Text, event.RTF)
	case domain.ConnectionServerError:
		a.status("Error: " + event.Message)
	default:
		a.log.WithField("kind", event.Kind).Debug("ignoring connection event")
	}
}

func (a *Assistant) handleSentence(ctx context.Context, text string, rtf float64) {
	a.mu.Lock()
	if a.correcting {
		a.mu.Unlock()
		a.log.Infof("treating %q as a correction instruction", text)
		go func() {
			if _, err := a.CorrectField(ctx, text); err != nil {
				a.log.WithError(err).Warn("spoken correction failed")
			}
		}()
		return
	}

	field := a.fields.Active()
	a.transcript.Append(text)
	a.values[field] = text
	a.confirmation = fmt.Sprintf("Was this correctly recognized? (RTF: %.2f)", rtf)
	prompt := a.confirmation
	a.mu.Unlock()

	a.log.WithField("field", field).Infof("received transcription: %q", text)
	a.sink.FieldValueChanged(field, text)
	a.show("")
	a.sink.ConfirmationChanged(prompt)
	a.announcer.Announce(text)
}

// StartRecording begins an utterance for the active field.
func (a *Assistant) StartRecording() error {
	a.mu.Lock()
	ctx := a.ctx
	a.mu.Unlock()
	return a.recorder.Start(ctx)
}

// StopRecording ends the current utterance.
func (a *Assistant) StopRecording() error {
	return a.recorder.Stop()
}

// ConfirmField accepts the active field's value and moves to the next field.
func (a *Assistant) ConfirmField() string {
	a.mu.Lock()
	previous, next := a.fields.Advance()
	a.transcript.Reset()
	a.confirmation = ""
	a.correcting = false
	a.mu.Unlock()

	a.log.WithFields(logrus.Fields{"from": previous, "to": next}).Info("moving to next field")
	a.sink.FieldActivated(previous, false)
	a.sink.FieldActivated(next, true)
	if a.recorder.Recording() {
		a.sink.RecordingChanged(previous, false)
		a.sink.RecordingChanged(next, true)
	}
	a.show(fmt.Sprintf("Now recording for %s...", next))
	a.sink.ConfirmationChanged("")
	return next
}

// AskCorrection arms a correction: the next recognized sentence is taken as
// the instruction for fixing the active field.
func (a *Assistant) AskCorrection() {
	a.mu.Lock()
	a.correcting = true
	field := a.fields.Active()
	a.confirmation = fmt.Sprintf("How should %s be corrected?", field)
	prompt := a.confirmation
	a.mu.Unlock()

	a.log.WithField("field", field).Info("asking for correction")
	a.sink.ConfirmationChanged(prompt)
}

// CorrectField rewrites the active field's value following action. On
// failure the value is kept and returned along with the error.
func (a *Assistant) CorrectField(ctx context.Context, action string) (string, error) {
	a.mu.Lock()
	a.correcting = false
	field := a.fields.Active()
	input := a.values[field]
	a.mu.Unlock()

	if strings.TrimSpace(action) == "" {
		return input, ErrEmptyCorrection
	}

	corrected, err := a.corrector.Correct(ctx, input, action)
	if err != nil {
		a.log.WithError(err).WithField("field", field).Error("correction failed")
		a.status("Correction failed: " + err.Error())
		return input, err
	}

	a.mu.Lock()
	a.values[field] = corrected
	a.confirmation = "Was this correctly recognized?"
	prompt := a.confirmation
	a.mu.Unlock()

	a.sink.FieldValueChanged(field, corrected)
	a.sink.ConfirmationChanged(prompt)
	a.announcer.Announce(corrected)
	return corrected, nil
}

// Snapshot returns the current assistant state.
func (a *Assistant) Snapshot() domain.Snapshot {
	mic := a.recorder.MicAvailable()
	recording := a.recorder.Recording()

	a.mu.Lock()
	defer a.mu.Unlock()
	values := make(map[string]string, len(a.values))
	for field, value := range a.values {
		values[field] = value
	}
	return domain.Snapshot{
		ActiveField:     a.fields.Active(),
		Fields:          a.fields.Fields(),
		Values:          values,
		Recording:       recording,
		MicAvailable:    mic,
		ServerAvailable: a.serverAvailable,
		Sentences:       a.transcript.Sentences(),
		Correcting:      a.correcting,
		Display:         a.view,
		Confirmation:    a.confirmation,
	}
}

func (a *Assistant) setServerAvailable(available bool) {
	a.mu.Lock()
	a.serverAvailable = available
	a.mu.Unlock()
}

// status shows message unless an availability prompt takes precedence.
func (a *Assistant) status(message string) {
	a.log.WithField("message", message).Debug("status update")

	a.mu.Lock()
	server := a.serverAvailable
	a.mu.Unlock()

	if line, ok := display.StatusLine(a.recorder.MicAvailable(), server, message); ok {
		a.show(line)
	}
}

// show renders the transcript followed by text.
func (a *Assistant) show(text string) {
	a.mu.Lock()
	a.transcript.SetPartial(text)
	html := display.RenderHTML(a.transcript.Sentences(), a.transcript.Partial())
	a.view = html
	a.mu.Unlock()

	a.sink.DisplayChanged(html)
}

func (a *Assistant) alert(message string) {
	a.log.Warn(message)
	a.sink.Alert(message)
}

func (a *Assistant) recordingChanged(recording bool) {
	a.mu.Lock()
	field := a.fields.Active()
	if recording {
		a.transcript.Reset()
	}
	a.mu.Unlock()

	a.sink.RecordingChanged(field, recording)
	if recording {
		a.show(displayListening)
	}
}
