package usecase

// Transcript holds the confirmed sentences of the current utterance and the
// in-progress text shown after them. Confirmed entries are never edited.
type Transcript struct {
	sentences []string
	partial   string
}

func (t *Transcript) Append(sentence string) {
	t.sentences = append(t.sentences, sentence)
}

func (t *Transcript) SetPartial(text string) {
	t.partial = text
}

func (t *Transcript) Reset() {
	t.sentences = nil
	t.partial = ""
}

func (t *Transcript) Sentences() []string {
	out := make([]string, len(t.sentences))
	copy(out, t.sentences)
	return out
}

func (t *Transcript) Partial() string {
	return t.partial
}
