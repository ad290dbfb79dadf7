// Package genai holds the external generation collaborators: structured LLM
// detail synthesis, image synthesis, and speech synthesis. The pipeline talks
// to these through narrow interfaces so tests can substitute fakes and so a
// provider swap stays local to this package.
package genai

import (
	"context"

	"kotobank/pkg/wordbank"
)

// GenerationRequest carries the minimal input for detail synthesis.
type GenerationRequest struct {
	Word        string
	Translation string
	Context     string
}

// DialogueLine is one turn of a multi-speaker narration.
type DialogueLine struct {
	Speaker string
	Text    string
}

// StructuredGenerator produces enriched word details from minimal input.
// Implementations may fail; callers own the degraded path.
type StructuredGenerator interface {
	GenerateDetails(ctx context.Context, req GenerationRequest) (wordbank.Record, error)
}

// ImageSynthesizer renders a scene description to encoded image bytes (JPEG).
type ImageSynthesizer interface {
	SynthesizeImage(ctx context.Context, prompt string) ([]byte, error)
}

// SpeechSynthesizer renders text to encoded audio bytes.
type SpeechSynthesizer interface {
	SynthesizeSpeech(ctx context.Context, text, voice string) ([]byte, error)
	// SynthesizeDialogue narrates ordered speaker turns using the given
	// speaker-to-voice mapping. Callers must validate the mapping first;
	// an unmapped speaker here is an error.
	SynthesizeDialogue(ctx context.Context, voices map[string]string, lines []DialogueLine) ([]byte, error)
}
