package bootstrap

import "testing"

func TestBuildSuccess(t *testing.T) {
	t.Setenv("VOICEFILL_LOG_LEVEL", "error")

	services, err := Build(noopEventSink{})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer services.Connection.Close()
	defer services.Announcer.Close()

	if services.Assistant == nil || services.Connection == nil || services.Announcer == nil || services.Output == nil {
		t.Fatalf("expected a fully wired graph: %+v", services)
	}
	if services.Assistant.Snapshot().ActiveField != "name" {
		t.Fatalf("expected the first default field to be active")
	}
	if services.Connection.Connected() {
		t.Fatalf("connection must not dial before Run")
	}
}

func TestBuildFailsOnInvalidRecognitionURL(t *testing.T) {
	t.Setenv("VOICEFILL_RECOGNITION_URL", "http://localhost:8001")

	if _, err := Build(noopEventSink{}); err == nil {
		t.Fatalf("expected build error due to invalid recognition url")
	}
}

func TestBuildFailsOnDuplicateFormFields(t *testing.T) {
	t.Setenv("VOICEFILL_FORM_FIELDS", "name,email,name")

	if _, err := Build(noopEventSink{}); err == nil {
		t.Fatalf("expected build error due to duplicate form fields")
	}
}

type noopEventSink struct{}

func (noopEventSink) PlaybackStatus(_ string)              {}
func (noopEventSink) DisplayChanged(_ string)              {}
func (noopEventSink) FieldActivated(_ string, _ bool)      {}
func (noopEventSink) FieldValueChanged(_ string, _ string) {}
func (noopEventSink) ConfirmationChanged(_ string)         {}
func (noopEventSink) RecordingChanged(_ string, _ bool)    {}
func (noopEventSink) Alert(_ string)                       {}
