package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"voicefill/internal/announce"
	"voicefill/internal/audio"
	"voicefill/internal/bootstrap"
	"voicefill/internal/config"
	"voicefill/internal/domain"
	"voicefill/internal/recognition"
	"voicefill/internal/usecase"
)

const (
	eventDisplay      = "voicefill:display"
	eventField        = "voicefill:field"
	eventValue        = "voicefill:value"
	eventConfirmation = "voicefill:confirmation"
	eventRecording    = "voicefill:recording"
	eventAlert        = "voicefill:alert"
	eventPlayback     = "voicefill:playback"
)

var errNotInitialized = errors.New("application is not initialized")

// Status is what the UI polls on load.
type Status struct {
	domain.Snapshot
	Connection        string `json:"connection"`
	ReconnectAttempts int    `json:"reconnectAttempts"`
	Error             string `json:"error,omitempty"`
}

// App is the Wails application root.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	assistant  *usecase.Assistant
	connection *recognition.Manager
	announcer  *announce.Announcer
	output     *audio.PortAudioOutput
	cfg        config.Config
	log        logrus.FieldLogger
	bootErr    error
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.Alert(fmt.Sprintf("Startup failed: %v", err))
		return
	}

	a.cfg = services.Config
	a.log = services.Logger.WithField("component", "app")
	a.assistant = services.Assistant
	a.connection = services.Connection
	a.announcer = services.Announcer
	a.output = services.Output

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	go a.connection.Run(runCtx)
	go a.assistant.Run(runCtx)
	go a.assistant.Init(runCtx)
	a.log.WithField("recognition", a.cfg.Recognition.URL).Info("voicefill started")
}

func (a *App) shutdown(_ context.Context) {
	if a.assistant == nil {
		return
	}
	if err := a.assistant.StopRecording(); err != nil && !errors.Is(err, usecase.ErrNotRecording) {
		a.log.WithError(err).Warn("failed to stop recording on shutdown")
	}
	a.cancel()
	a.announcer.Close()
	a.connection.Close()
	if err := a.output.Close(); err != nil {
		a.log.WithError(err).Warn("failed to release audio output")
	}
}

// StartRecording starts an utterance for the active field.
func (a *App) StartRecording() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	err := a.assistant.StartRecording()
	if errors.Is(err, usecase.ErrAlreadyRecording) {
		return nil
	}
	return err
}

// StopRecording ends the current utterance.
func (a *App) StopRecording() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	err := a.assistant.StopRecording()
	if errors.Is(err, usecase.ErrNotRecording) {
		return nil
	}
	return err
}

// LookGood confirms the active field and returns the next one.
func (a *App) LookGood() (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	return a.assistant.ConfirmField(), nil
}

// AskCorrection makes the next spoken sentence a correction for the active field.
func (a *App) AskCorrection() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.assistant.AskCorrection()
	return nil
}

// CorrectField applies a typed correction instruction to the active field.
func (a *App) CorrectField(action string) (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	return a.assistant.CorrectField(a.ctx, action)
}

// GetStatus returns the current backend status.
func (a *App) GetStatus() Status {
	if a.assistant == nil {
		status := Status{Connection: string(domain.ConnStateDisconnected)}
		if a.bootErr != nil {
			status.Error = a.bootErr.Error()
		}
		return status
	}

	conn := a.connection.Snapshot()
	return Status{
		Snapshot:          a.assistant.Snapshot(),
		Connection:        string(conn.State),
		ReconnectAttempts: conn.Attempts,
	}
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"recognitionUrl":   a.cfg.Recognition.URL,
		"synthesisUrl":     a.cfg.Synthesis.URL,
		"voice":            a.cfg.Synthesis.Voice,
		"correctionModel":  a.cfg.Correction.Model,
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
		"fields":           strings.Join(a.cfg.Form.Fields, ","),
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.assistant == nil {
		return errNotInitialized
	}
	return nil
}

// DisplayChanged emits the rendered transcript view.
func (a *App) DisplayChanged(html string) {
	a.emit(eventDisplay, map[string]string{"html": html})
}

// FieldActivated emits active field highlighting.
func (a *App) FieldActivated(field string, active bool) {
	a.emit(eventField, map[string]any{"field": field, "active": active})
}

// FieldValueChanged emits a new value for a form field.
func (a *App) FieldValueChanged(field string, value string) {
	a.emit(eventValue, map[string]string{"field": field, "value": value})
}

// ConfirmationChanged emits the confirmation prompt; empty clears it.
func (a *App) ConfirmationChanged(prompt string) {
	a.emit(eventConfirmation, map[string]string{"text": prompt})
}

// RecordingChanged emits the recording indicator for a field.
func (a *App) RecordingChanged(field string, recording bool) {
	a.emit(eventRecording, map[string]any{"field": field, "recording": recording})
}

// Alert asks the UI to show a blocking warning.
func (a *App) Alert(message string) {
	a.emit(eventAlert, map[string]string{"message": message})
}

// PlaybackStatus emits announcer progress.
func (a *App) PlaybackStatus(message string) {
	a.emit(eventPlayback, map[string]string{"message": message})
}

func (a *App) emit(name string, payload any) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, name, payload)
}
