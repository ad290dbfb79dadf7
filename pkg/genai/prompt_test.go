package genai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetailsPromptEmbedsInput(t *testing.T) {
	prompt := DetailsPrompt(GenerationRequest{Word: "猫", Translation: "cat", Context: "the household pet"})
	assert.Contains(t, prompt, "猫")
	assert.Contains(t, prompt, "cat")
	assert.Contains(t, prompt, "the household pet")
	assert.Contains(t, prompt, `"image_prompt"`)
}

func TestDetailsPromptIsStableCacheKey(t *testing.T) {
	req := GenerationRequest{Word: "猫", Translation: "cat", Context: "pet"}
	assert.Equal(t, DetailsPrompt(req), DetailsPrompt(req))
	assert.NotEqual(t, DetailsPrompt(req), DetailsPrompt(GenerationRequest{Word: "猫", Translation: "cat", Context: "other"}))
}

func TestExtractJSONBare(t *testing.T) {
	out, err := ExtractJSON(`{"description":"x"}`)
	require.NoError(t, err)
	assert.Equal(t, `{"description":"x"}`, out)
}

func TestExtractJSONFenced(t *testing.T) {
	raw := "```json\n{\"description\":\"x\"}\n```"
	out, err := ExtractJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, `{"description":"x"}`, out)
}

func TestExtractJSONSurroundingProse(t *testing.T) {
	raw := "Here you go:\n{\"description\":\"x\"}\nHope that helps!"
	out, err := ExtractJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, `{"description":"x"}`, out)
}

func TestExtractJSONNoObject(t *testing.T) {
	_, err := ExtractJSON("sorry, I cannot help with that")
	require.Error(t, err)
}
