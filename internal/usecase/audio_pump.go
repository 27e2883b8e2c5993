package usecase

import (
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"voicefill/internal/ports"
)

// pumpAudioChunks reads the capture until EOF and hands each non-empty chunk
// to forward in capture order. forward must not retain the slice.
func pumpAudioChunks(
	audio ports.AudioSession,
	forward func(chunk []byte),
	chunkSize int,
	log logrus.FieldLogger,
	done chan struct{},
) {
	defer close(done)

	if chunkSize < 256 {
		chunkSize = 4096
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := audio.Read(buf)
		if n > 0 {
			forward(buf[:n])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.WithError(err).Warn("audio capture error")
			}
			return
		}
	}
}

// waitForPump waits for the capture to drain. On timeout the session is
// closed so the pending read fails, and the pump gets one more timeout to
// exit. A pump stuck in a send is left behind.
func waitForPump(audio ports.AudioSession, done <-chan struct{}, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return true
	case <-timer.C:
	}

	_ = audio.Close()
	timer.Reset(timeout)
	select {
	case <-done:
	case <-timer.C:
	}
	return false
}
