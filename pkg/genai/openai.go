package genai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"

	"kotobank/pkg/llmcache"
	"kotobank/pkg/wordbank"
)

// ModelSettings selects the OpenAI models used per modality.
type ModelSettings struct {
	APIKey      string
	BaseURL     string
	ChatModel   string
	ImageModel  string
	SpeechModel string
}

// OpenAI implements StructuredGenerator, ImageSynthesizer and
// SpeechSynthesizer against the OpenAI API. Detail responses are cached in
// the prompt-keyed response cache before any parsing, so renderer or schema
// changes never invalidate cached generations.
type OpenAI struct {
	api    openai.Client
	models ModelSettings
	cache  llmcache.Cache
	logger zerolog.Logger
}

// NewOpenAI builds the client. The cache may be llmcache.Disabled{}.
func NewOpenAI(models ModelSettings, cache llmcache.Cache, logger zerolog.Logger) (*OpenAI, error) {
	if models.APIKey == "" {
		return nil, errors.New("genai: openai api key missing")
	}
	if models.ChatModel == "" || models.ImageModel == "" || models.SpeechModel == "" {
		return nil, errors.New("genai: model names are required")
	}
	opts := []option.RequestOption{option.WithAPIKey(models.APIKey)}
	if models.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(models.BaseURL))
	}
	return &OpenAI{
		api:    openai.NewClient(opts...),
		models: models,
		cache:  cache,
		logger: logger,
	}, nil
}

// detailsPayload is the JSON shape the details prompt asks for.
type detailsPayload struct {
	Description  string   `json:"description"`
	Examples     []string `json:"examples"`
	ImagePrompt  string   `json:"image_prompt"`
	LanguageCode string   `json:"language_code"`
}

// GenerateDetails synthesizes enriched fields for one word sense. The
// response cache is consulted first; a miss costs one chat completion, with
// a single re-ask if the model returns something that is not JSON.
func (c *OpenAI) GenerateDetails(ctx context.Context, req GenerationRequest) (wordbank.Record, error) {
	prompt := DetailsPrompt(req)

	if cached, ok := c.cache.Get(ctx, prompt); ok {
		if rec, err := c.decodeDetails(req, cached); err == nil {
			c.logger.Debug().Str("word", req.Word).Msg("llm cache hit")
			return rec, nil
		}
		// Undecodable cached entries fall through to a fresh call.
		c.logger.Warn().Str("word", req.Word).Msg("discarding undecodable cached response")
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		raw, err := c.complete(ctx, prompt)
		if err != nil {
			return wordbank.Record{}, err
		}
		payload, err := ExtractJSON(raw)
		if err != nil {
			lastErr = err
			continue
		}
		rec, err := c.decodeDetails(req, payload)
		if err != nil {
			lastErr = err
			continue
		}
		c.cache.Set(ctx, prompt, payload)
		return rec, nil
	}
	return wordbank.Record{}, fmt.Errorf("genai: details for %q: %w", req.Word, lastErr)
}

func (c *OpenAI) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.models.ChatModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You are a precise assistant for a language-learning site. Always answer with strict JSON."),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("genai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("genai: chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAI) decodeDetails(req GenerationRequest, payload string) (wordbank.Record, error) {
	var details detailsPayload
	if err := json.Unmarshal([]byte(payload), &details); err != nil {
		return wordbank.Record{}, fmt.Errorf("genai: decode details: %w", err)
	}
	// Identity fields always come from the caller, never the model.
	return wordbank.Record{
		Word:         req.Word,
		Translation:  req.Translation,
		LanguageCode: details.LanguageCode,
		Description:  details.Description,
		Examples:     details.Examples,
		ImagePrompt:  details.ImagePrompt,
	}, nil
}

// SynthesizeImage renders a scene description to JPEG bytes.
func (c *OpenAI) SynthesizeImage(ctx context.Context, prompt string) ([]byte, error) {
	resp, err := c.api.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         ImagePrompt(prompt),
		Model:          openai.ImageModel(c.models.ImageModel),
		N:              openai.Int(1),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
		Size:           openai.ImageGenerateParamsSize1024x1024,
	})
	if err != nil {
		return nil, fmt.Errorf("genai: image generation: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("genai: image generation returned no images")
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("genai: decode image payload: %w", err)
	}
	return data, nil
}

// SynthesizeSpeech renders text to AAC-encoded audio.
func (c *OpenAI) SynthesizeSpeech(ctx context.Context, text, voice string) ([]byte, error) {
	resp, err := c.api.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(c.models.SpeechModel),
		Input:          text,
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatAAC,
	})
	if err != nil {
		return nil, fmt.Errorf("genai: speech synthesis: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("genai: read speech payload: %w", err)
	}
	return data, nil
}

// SynthesizeDialogue narrates speaker turns one request per line, each with
// that speaker's voice, and joins the segments. MP3 is used here because MP3
// frame streams concatenate cleanly; the speech API has no multi-voice
// request.
func (c *OpenAI) SynthesizeDialogue(ctx context.Context, voices map[string]string, lines []DialogueLine) ([]byte, error) {
	var joined []byte
	for _, line := range lines {
		voice, ok := voices[line.Speaker]
		if !ok {
			return nil, fmt.Errorf("genai: no voice configured for speaker %q", line.Speaker)
		}
		resp, err := c.api.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
			Model:          openai.SpeechModel(c.models.SpeechModel),
			Input:          line.Text,
			Voice:          openai.AudioSpeechNewParamsVoice(voice),
			ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
		})
		if err != nil {
			return nil, fmt.Errorf("genai: dialogue line for %q: %w", line.Speaker, err)
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("genai: read dialogue payload: %w", err)
		}
		joined = append(joined, data...)
	}
	if len(joined) == 0 {
		return nil, errors.New("genai: dialogue produced no audio")
	}
	return joined, nil
}
