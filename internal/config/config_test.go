package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"VOICEFILL_RECOGNITION_URL",
		"VOICEFILL_SYNTHESIS_URL",
		"VOICEFILL_CORRECTION_URL",
		"VOICEFILL_FORM_FIELDS",
		"VOICEFILL_RECONNECT_ATTEMPTS",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Recognition.URL != "ws://localhost:8001" {
		t.Fatalf("unexpected recognition url: %q", cfg.Recognition.URL)
	}
	if cfg.Recognition.MaxAttempts != 5 {
		t.Fatalf("unexpected max attempts: %d", cfg.Recognition.MaxAttempts)
	}
	if cfg.Recognition.BaseDelay != time.Second || cfg.Recognition.MaxDelay != 16*time.Second {
		t.Fatalf("unexpected backoff bounds: %s..%s", cfg.Recognition.BaseDelay, cfg.Recognition.MaxDelay)
	}
	if cfg.Recognition.WatchdogInterval != 5*time.Second {
		t.Fatalf("unexpected watchdog interval: %s", cfg.Recognition.WatchdogInterval)
	}
	if cfg.Synthesis.URL != "ws://localhost:8000/ws/stream" {
		t.Fatalf("unexpected synthesis url: %q", cfg.Synthesis.URL)
	}
	if cfg.Synthesis.Voice != "af_nicole" || cfg.Synthesis.Speed != 1.0 || cfg.Synthesis.Language != "en-us" {
		t.Fatalf("unexpected synthesis voice settings: %+v", cfg.Synthesis)
	}
	if cfg.Correction.Model != "gemma3:1b" {
		t.Fatalf("unexpected correction model: %q", cfg.Correction.Model)
	}
	want := []string{"name", "address", "email", "phone"}
	if !reflect.DeepEqual(cfg.Form.Fields, want) {
		t.Fatalf("unexpected fields: %v", cfg.Form.Fields)
	}
}

func TestLoadRespectsOverridesAndFallbacks(t *testing.T) {
	t.Setenv("VOICEFILL_RECOGNITION_URL", "wss://asr.example.com/socket")
	t.Setenv("VOICEFILL_FORM_FIELDS", " city, ,zip ")
	t.Setenv("VOICEFILL_RECONNECT_BASE_MS", "250")
	t.Setenv("VOICEFILL_RECONNECT_MAX_MS", "100")
	t.Setenv("VOICEFILL_AUDIO_CHUNK_SIZE", "12")
	t.Setenv("VOICEFILL_VOICE_SPEED", "not-a-number")
	t.Setenv("VOICEFILL_CHANNELS", "-3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Recognition.URL != "wss://asr.example.com/socket" {
		t.Fatalf("unexpected recognition url: %q", cfg.Recognition.URL)
	}
	if !reflect.DeepEqual(cfg.Form.Fields, []string{"city", "zip"}) {
		t.Fatalf("unexpected fields: %v", cfg.Form.Fields)
	}
	if cfg.Recognition.BaseDelay != 250*time.Millisecond {
		t.Fatalf("unexpected base delay: %s", cfg.Recognition.BaseDelay)
	}
	if cfg.Recognition.MaxDelay != cfg.Recognition.BaseDelay {
		t.Fatalf("expected max delay clamped to base delay, got %s", cfg.Recognition.MaxDelay)
	}
	if cfg.Audio.ChunkSize != 4096 {
		t.Fatalf("expected chunk size fallback, got %d", cfg.Audio.ChunkSize)
	}
	if cfg.Synthesis.Speed != 1.0 {
		t.Fatalf("expected speed fallback, got %v", cfg.Synthesis.Speed)
	}
	if cfg.Audio.Channels != 1 {
		t.Fatalf("expected channel fallback, got %d", cfg.Audio.Channels)
	}
}

func TestLoadRejectsWrongSchemes(t *testing.T) {
	cases := map[string]string{
		"VOICEFILL_RECOGNITION_URL": "http://localhost:8001",
		"VOICEFILL_SYNTHESIS_URL":   "localhost:8000",
		"VOICEFILL_CORRECTION_URL":  "ws://localhost:11434",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected %s=%s to be rejected", key, value)
			}
		})
	}
}

func TestEnvOrDefaultList(t *testing.T) {
	t.Setenv("VOICEFILL_TEST_LIST", " , ")
	got := envOrDefaultList("VOICEFILL_TEST_LIST", []string{"a"})
	if !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("expected fallback for blank list, got %v", got)
	}
}
