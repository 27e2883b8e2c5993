package bootstrap

import (
	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"voicefill/internal/announce"
	"voicefill/internal/audio"
	"voicefill/internal/config"
	"voicefill/internal/correction"
	"voicefill/internal/logging"
	"voicefill/internal/ports"
	"voicefill/internal/recognition"
	"voicefill/internal/transport"
	"voicefill/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Assistant  *usecase.Assistant
	Connection *recognition.Manager
	Announcer  *announce.Announcer
	Output     *audio.PortAudioOutput
	Config     config.Config
	Logger     *logrus.Logger
}

// Build wires all backend dependencies for the current runtime.
func Build(eventSink ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	logger := logging.New(cfg.Log)

	connection := recognition.NewManager(
		transport.NewDialer(cfg.Recognition.DialTimeout),
		clock.New(),
		logger,
		recognition.Config{
			URL:              cfg.Recognition.URL,
			MaxAttempts:      cfg.Recognition.MaxAttempts,
			BaseDelay:        cfg.Recognition.BaseDelay,
			MaxDelay:         cfg.Recognition.MaxDelay,
			WatchdogInterval: cfg.Recognition.WatchdogInterval,
			DialTimeout:      cfg.Recognition.DialTimeout,
		},
	)

	output := audio.NewPortAudioOutput(cfg.Synthesis.FramesPerBuffer)
	announcer := announce.New(
		transport.NewDialer(cfg.Recognition.DialTimeout),
		audio.WAVDecoder{},
		output,
		eventSink,
		logger,
		announce.Config{
			URL:         cfg.Synthesis.URL,
			Voice:       cfg.Synthesis.Voice,
			Speed:       cfg.Synthesis.Speed,
			Language:    cfg.Synthesis.Language,
			DialTimeout: cfg.Recognition.DialTimeout,
		},
	)

	corrector := correction.New(correction.Config{
		URL:      cfg.Correction.URL,
		Model:    cfg.Correction.Model,
		Timeout:  cfg.Correction.Timeout,
		RetryMax: cfg.Correction.RetryMax,
	}, logger)

	assistant, err := usecase.NewAssistant(
		connection,
		audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand),
		announcer,
		corrector,
		eventSink,
		logger,
		usecase.Config{
			Fields: cfg.Form.Fields,
			Recorder: usecase.RecorderConfig{
				Audio: ports.AudioConfig{
					SampleRate:  cfg.Audio.SampleRate,
					Channels:    cfg.Audio.Channels,
					InputFormat: cfg.Audio.InputFormat,
					InputDevice: cfg.Audio.InputDevice,
					Codec:       cfg.Audio.Codec,
					Container:   cfg.Audio.Container,
				},
				ChunkSize:   cfg.Audio.ChunkSize,
				StopTimeout: cfg.Audio.StopTimeout,
			},
		},
	)
	if err != nil {
		connection.Close()
		announcer.Close()
		return Services{}, err
	}

	return Services{
		Assistant:  assistant,
		Connection: connection,
		Announcer:  announcer,
		Output:     output,
		Config:     cfg,
		Logger:     logger,
	}, nil
}
