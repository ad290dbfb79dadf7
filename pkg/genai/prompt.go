package genai

import (
	"fmt"
	"strings"
)

// detailsPromptTemplate asks for one specific sense of a word, not all of
// them: the word + translation + context together pin a single meaning.
const detailsPromptTemplate = `You are creating flashcard materials for language learners.

Given the following information about a word:
- Word: %s
- English translation: %s
- Context/Description: %s

Generate complete flashcard details:

1. "description": the meaning of this specific sense, expanded if the given
   context is thin. Explain this particular meaning only.
2. "examples": 2-3 natural example sentences in the word's original language,
   at an intermediate learner level, showing this sense in use.
3. "image_prompt": a concrete, visual scene (2-4 sentences) that would help a
   learner memorize this sense. Describe content only, no style instructions.
   For nouns keep the scene sparse so the subject dominates.
4. "language_code": the ISO 639-1 code of the word's language.

The word + translation + context represent ONE meaning, not every meaning of
the word.

Respond with a single JSON object containing exactly the keys "description",
"examples", "image_prompt" and "language_code". No prose outside the JSON.`

// DetailsPrompt builds the flashcard-generation prompt. This string is also
// the cache key for the response cache, so its content is versioned by the
// cache key prefix.
func DetailsPrompt(req GenerationRequest) string {
	return fmt.Sprintf(detailsPromptTemplate, req.Word, req.Translation, req.Context)
}

const imagePromptPreamble = `Generate a flashcard image used to learn new words in a foreign language.
Use a simple, infographic visual style. Do not include any text or labels
unless the scene description explicitly asks for them.

Scene:
`

// ImagePrompt wraps a record's scene description with the flashcard style
// instructions the image model expects.
func ImagePrompt(scene string) string {
	return imagePromptPreamble + scene
}

// ExtractJSON pulls the JSON object out of a model response that may wrap it
// in markdown fences or surrounding prose.
func ExtractJSON(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if fenced, ok := stripFence(s); ok {
		s = fenced
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("genai: no JSON object in response")
	}
	return s[start : end+1], nil
}

func stripFence(s string) (string, bool) {
	if !strings.HasPrefix(s, "```") {
		return "", false
	}
	body := strings.TrimPrefix(s, "```")
	// Drop an optional language hint on the fence line.
	if idx := strings.Index(body, "\n"); idx != -1 {
		body = body[idx+1:]
	}
	if idx := strings.LastIndex(body, "```"); idx != -1 {
		body = body[:idx]
	}
	return strings.TrimSpace(body), true
}
