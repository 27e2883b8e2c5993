package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration for the assistant.
type Config struct {
	Recognition RecognitionConfig
	Synthesis   SynthesisConfig
	Correction  CorrectionConfig
	Audio       AudioConfig
	Form        FormConfig
	Log         LogConfig
}

type RecognitionConfig struct {
	URL              string
	MaxAttempts      int
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	WatchdogInterval time.Duration
	DialTimeout      time.Duration
}

type SynthesisConfig struct {
	URL             string
	Voice           string
	Speed           float64
	Language        string
	FramesPerBuffer int
}

type CorrectionConfig struct {
	URL      string
	Model    string
	Timeout  time.Duration
	RetryMax int
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	Codec           string
	Container       string
	SampleRate      int
	Channels        int
	ChunkSize       int
	StopTimeout     time.Duration
}

type FormConfig struct {
	Fields []string
}

type LogConfig struct {
	Level string
}

// Load resolves configuration from an optional .env file, environment variables and defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Recognition: RecognitionConfig{
			URL:              envOrDefault("VOICEFILL_RECOGNITION_URL", "ws://localhost:8001"),
			MaxAttempts:      envOrDefaultInt("VOICEFILL_RECONNECT_ATTEMPTS", 5),
			BaseDelay:        envOrDefaultMillis("VOICEFILL_RECONNECT_BASE_MS", 1000),
			MaxDelay:         envOrDefaultMillis("VOICEFILL_RECONNECT_MAX_MS", 16000),
			WatchdogInterval: envOrDefaultMillis("VOICEFILL_SERVER_CHECK_MS", 5000),
			DialTimeout:      envOrDefaultMillis("VOICEFILL_DIAL_TIMEOUT_MS", 5000),
		},
		Synthesis: SynthesisConfig{
			URL:             envOrDefault("VOICEFILL_SYNTHESIS_URL", "ws://localhost:8000/ws/stream"),
			Voice:           envOrDefault("VOICEFILL_VOICE", "af_nicole"),
			Speed:           envOrDefaultFloat("VOICEFILL_VOICE_SPEED", 1.0),
			Language:        envOrDefault("VOICEFILL_VOICE_LANGUAGE", "en-us"),
			FramesPerBuffer: envOrDefaultInt("VOICEFILL_PLAYBACK_FRAMES", 1024),
		},
		Correction: CorrectionConfig{
			URL:      envOrDefault("VOICEFILL_CORRECTION_URL", "http://localhost:11434/api/generate"),
			Model:    envOrDefault("VOICEFILL_CORRECTION_MODEL", "gemma3:1b"),
			Timeout:  envOrDefaultMillis("VOICEFILL_CORRECTION_TIMEOUT_MS", 30000),
			RetryMax: envOrDefaultInt("VOICEFILL_CORRECTION_RETRIES", 1),
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("VOICEFILL_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     envOrDefault("VOICEFILL_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice:     envOrDefault("VOICEFILL_AUDIO_INPUT_DEVICE", "default"),
			Codec:           envOrDefault("VOICEFILL_AUDIO_CODEC", "libopus"),
			Container:       envOrDefault("VOICEFILL_AUDIO_CONTAINER", "webm"),
			SampleRate:      envOrDefaultInt("VOICEFILL_SAMPLE_RATE", 48000),
			Channels:        envOrDefaultInt("VOICEFILL_CHANNELS", 1),
			ChunkSize:       envOrDefaultInt("VOICEFILL_AUDIO_CHUNK_SIZE", 4096),
			StopTimeout:     envOrDefaultMillis("VOICEFILL_STOP_TIMEOUT_MS", 2000),
		},
		Form: FormConfig{
			Fields: envOrDefaultList("VOICEFILL_FORM_FIELDS", []string{"name", "address", "email", "phone"}),
		},
		Log: LogConfig{
			Level: envOrDefault("VOICEFILL_LOG_LEVEL", "info"),
		},
	}

	if cfg.Recognition.MaxAttempts < 0 {
		cfg.Recognition.MaxAttempts = 5
	}
	if cfg.Recognition.BaseDelay <= 0 {
		cfg.Recognition.BaseDelay = time.Second
	}
	if cfg.Recognition.MaxDelay < cfg.Recognition.BaseDelay {
		cfg.Recognition.MaxDelay = cfg.Recognition.BaseDelay
	}
	if cfg.Recognition.WatchdogInterval <= 0 {
		cfg.Recognition.WatchdogInterval = 5 * time.Second
	}
	if cfg.Synthesis.Speed <= 0 {
		cfg.Synthesis.Speed = 1.0
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 48000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Audio.ChunkSize < 256 {
		cfg.Audio.ChunkSize = 4096
	}
	if cfg.Correction.RetryMax < 0 {
		cfg.Correction.RetryMax = 0
	}

	if err := requireScheme(cfg.Recognition.URL, "ws", "wss"); err != nil {
		return Config{}, fmt.Errorf("invalid recognition url: %w", err)
	}
	if err := requireScheme(cfg.Synthesis.URL, "ws", "wss"); err != nil {
		return Config{}, fmt.Errorf("invalid synthesis url: %w", err)
	}
	if err := requireScheme(cfg.Correction.URL, "http", "https"); err != nil {
		return Config{}, fmt.Errorf("invalid correction url: %w", err)
	}

	return cfg, nil
}

func requireScheme(raw string, schemes ...string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, scheme := range schemes {
		if strings.EqualFold(parsed.Scheme, scheme) && parsed.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%q must use one of %s", raw, strings.Join(schemes, ", "))
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultMillis(key string, fallback int) time.Duration {
	return time.Duration(envOrDefaultInt(key, fallback)) * time.Millisecond
}

func envOrDefaultList(key string, fallback []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
