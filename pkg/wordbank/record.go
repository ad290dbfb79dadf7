package wordbank

// Key identifies one sense of a word: the surface form paired with the
// English translation that disambiguates it. Two records with the same word
// but different translations are independent entries.
type Key struct {
	Word        string
	Translation string
}

// Record is one enriched wordbank entry. Word and Translation form the
// identity key; everything else is filled in by the detail synthesizer and
// the asset materializer.
//
// ImageFile and AudioFile name generated assets but do not guarantee the
// files exist on disk. Renderers must check the filesystem before emitting
// markup that references them.
type Record struct {
	Word         string   `json:"word"`
	Translation  string   `json:"en_translation"`
	LanguageCode string   `json:"language_code,omitempty"`
	Description  string   `json:"description,omitempty"`
	Examples     []string `json:"examples,omitempty"`
	ImagePrompt  string   `json:"image_prompt,omitempty"`
	ImageFile    string   `json:"image_file,omitempty"`
	AudioFile    string   `json:"audio_file,omitempty"`
	// Synthesized marks that the LLM has produced details for this record.
	// It is the completeness signal: a synthesized record is reused as-is and
	// never sent back to the LLM.
	Synthesized bool `json:"synthesized,omitempty"`
}

// Key returns the identity key of the record.
func (r Record) Key() Key {
	return Key{Word: r.Word, Translation: r.Translation}
}
