// Package display derives the transcript view shown above the form.
package display

import (
	"html"
	"strings"
)

const (
	MicrophonePrompt = "🎤 Please allow microphone access 🎤"
	ServerPrompt     = "🖥️ Please start the recognition server 🖥️"
)

// StatusLine picks the single line to show. Availability prompts win over
// message; ok is false when nothing should replace the current view.
func StatusLine(micAvailable bool, serverAvailable bool, message string) (line string, ok bool) {
	switch {
	case !micAvailable:
		return MicrophonePrompt, true
	case !serverAvailable:
		return ServerPrompt, true
	case message != "":
		return message, true
	default:
		return "", false
	}
}

// RenderHTML renders confirmed sentences in alternating colors followed by
// the partial text.
func RenderHTML(sentences []string, partial string) string {
	var b strings.Builder
	for i, sentence := range sentences {
		class := "yellow"
		if i%2 == 1 {
			class = "cyan"
		}
		b.WriteString(`<span class="`)
		b.WriteString(class)
		b.WriteString(`">`)
		b.WriteString(html.EscapeString(sentence))
		b.WriteString(" </span>")
	}
	b.WriteString(html.EscapeString(partial))
	return b.String()
}
