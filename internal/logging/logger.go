package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"voicefill/internal/config"
)

// New builds the process logger from configuration. Unknown levels fall back to info.
func New(cfg config.LogConfig) *logrus.Logger {
	return NewWithOutput(cfg, os.Stderr)
}

func NewWithOutput(cfg config.LogConfig, output io.Writer) *logrus.Logger {
	logger := logrus.New()

	level := logrus.InfoLevel
	if cfg.Level != "" {
		if parsed, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level))); err == nil {
			level = parsed
		}
	}
	logger.SetLevel(level)
	logger.SetOutput(output)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})

	return logger
}
