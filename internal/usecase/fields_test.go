package usecase

import (
	"errors"
	"testing"
)

func TestFieldCyclerReturnsToStartAfterNAdvances(t *testing.T) {
	t.Parallel()

	fields := []string{"name", "address", "email", "phone"}
	cycler, err := NewFieldCycler(fields)
	if err != nil {
		t.Fatalf("new cycler: %v", err)
	}

	start := cycler.Active()
	for i := 0; i < len(fields); i++ {
		previous, next := cycler.Advance()
		if previous != fields[i] {
			t.Fatalf("step %d: expected previous %q, got %q", i, fields[i], previous)
		}
		if next != fields[(i+1)%len(fields)] {
			t.Fatalf("step %d: unexpected next %q", i, next)
		}
	}
	if cycler.Active() != start {
		t.Fatalf("expected to return to %q, got %q", start, cycler.Active())
	}
}

func TestFieldCyclerSingleField(t *testing.T) {
	t.Parallel()

	cycler, err := NewFieldCycler([]string{"name"})
	if err != nil {
		t.Fatalf("new cycler: %v", err)
	}
	if previous, next := cycler.Advance(); previous != "name" || next != "name" {
		t.Fatalf("unexpected advance: %q -> %q", previous, next)
	}
}

func TestNewFieldCyclerValidates(t *testing.T) {
	t.Parallel()

	if _, err := NewFieldCycler(nil); !errors.Is(err, ErrNoFields) {
		t.Fatalf("expected ErrNoFields, got %v", err)
	}
	if _, err := NewFieldCycler([]string{"name", " "}); err == nil {
		t.Fatalf("expected blank field error")
	}
	if _, err := NewFieldCycler([]string{"name", "name"}); err == nil {
		t.Fatalf("expected duplicate field error")
	}
}

func TestFieldCyclerFieldsIsACopy(t *testing.T) {
	t.Parallel()

	cycler, _ := NewFieldCycler([]string{"name", "email"})
	fields := cycler.Fields()
	fields[0] = "changed"
	if cycler.Active() != "name" {
		t.Fatalf("cycler was mutated through Fields")
	}
}

func TestTranscriptKeepsSentencesAndPartial(t *testing.T) {
	t.Parallel()

	var transcript Transcript
	transcript.Append("Jane")
	transcript.SetPartial("Listening...")
	transcript.Append("Doe")

	sentences := transcript.Sentences()
	if len(sentences) != 2 || sentences[0] != "Jane" || sentences[1] != "Doe" {
		t.Fatalf("unexpected sentences: %v", sentences)
	}
	if transcript.Partial() != "Listening..." {
		t.Fatalf("unexpected partial: %q", transcript.Partial())
	}

	transcript.Reset()
	if len(transcript.Sentences()) != 0 || transcript.Partial() != "" {
		t.Fatalf("expected empty transcript after reset")
	}
}
