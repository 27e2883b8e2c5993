package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"voicefill/internal/ports"
)

// FFMPEGCapture records the microphone with ffmpeg and streams the encoded
// container on stdout. The default webm/opus output matches what browser
// recorders hand to the recognition server.
type FFMPEGCapture struct {
	command string
}

func NewFFMPEGCapture(command string) *FFMPEGCapture {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFMPEGCapture{command: command}
}

func (c *FFMPEGCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	cmd := exec.CommandContext(ctx, c.command, captureArgs(cfg)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	// A plain pipe instead of StdoutPipe: Wait must not close the read end
	// while the last clusters are still being drained after Stop.
	stdout, writer, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	cmd.Stdout = writer
	if err := cmd.Start(); err != nil {
		_ = stdout.Close()
		_ = writer.Close()
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	_ = writer.Close()

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	// A missing device or denied permission makes ffmpeg exit right away.
	select {
	case err := <-waitErr:
		_ = stdout.Close()
		detail := bytes.TrimSpace(stderr.Bytes())
		if err != nil {
			return nil, fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, detail)
		}
		return nil, errors.New("ffmpeg exited before capture started")
	case <-time.After(250 * time.Millisecond):
	}

	return &ffmpegSession{
		stdout:  stdout,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
	}, nil
}

// Probe opens the microphone once and releases it, reporting whether capture works.
func (c *FFMPEGCapture) Probe(ctx context.Context, cfg ports.AudioConfig) error {
	session, err := c.Start(ctx, cfg)
	if err != nil {
		return err
	}
	return session.Close()
}

func captureArgs(cfg ports.AudioConfig) []string {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 48000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	if cfg.Container == "" {
		cfg.Container = "webm"
	}
	if cfg.Codec == "" {
		cfg.Codec = "libopus"
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-c:a", cfg.Codec,
	}
	if cfg.Container == "webm" {
		// Emit clusters as soon as they are ready instead of buffering.
		args = append(args, "-flush_packets", "1", "-cluster_time_limit", "100")
	}
	return append(args, "-f", cfg.Container, "-")
}

type ffmpegSession struct {
	stdout *os.File
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	stopOnce sync.Once
	stopErr  error
}

func (s *ffmpegSession) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

// Close stops capture and releases stdout. Call it after reads reached EOF.
func (s *ffmpegSession) Close() error {
	stopErr := s.Stop()
	if err := s.stdout.Close(); err != nil && !errors.Is(err, os.ErrClosed) && stopErr == nil {
		return err
	}
	return stopErr
}

// Stop asks ffmpeg to finish the container so trailing data is flushed, then
// kills it if it does not exit in time.
func (s *ffmpegSession) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(1200 * time.Millisecond):
			if s.process != nil {
				_ = s.process.Kill()
			}
			if err, ok := <-s.waitErr; ok {
				s.stopErr = normalizeStopErr(err)
			}
		}

		if s.stopErr != nil && s.stderr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, bytes.TrimSpace(s.stderr.Bytes()))
		}
	})

	return s.stopErr
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
