package site

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kotobank/pkg/assets"
	"kotobank/pkg/genai"
	"kotobank/pkg/propagate"
	"kotobank/pkg/render"
	"kotobank/pkg/wordbank"
)

type fakeGenerator struct {
	calls int32
}

func (f *fakeGenerator) GenerateDetails(ctx context.Context, req genai.GenerationRequest) (wordbank.Record, error) {
	atomic.AddInt32(&f.calls, 1)
	return wordbank.Record{
		Word:        req.Word,
		Translation: req.Translation,
		Description: "generated for " + req.Word,
		ImagePrompt: "a scene",
	}, nil
}

type fakeImages struct{}

func (fakeImages) SynthesizeImage(ctx context.Context, prompt string) ([]byte, error) {
	return []byte("jpeg"), nil
}

type fakeSpeech struct {
	calls int32
	err   error
}

func (f *fakeSpeech) SynthesizeSpeech(ctx context.Context, text, voice string) ([]byte, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("audio"), nil
}

func (f *fakeSpeech) SynthesizeDialogue(ctx context.Context, voices map[string]string, lines []genai.DialogueLine) ([]byte, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("dialogue"), nil
}

type harness struct {
	builder *Builder
	gen     *fakeGenerator
	speech  *fakeSpeech
	store   *wordbank.Store
}

func newHarness(t *testing.T, dev bool) *harness {
	t.Helper()
	dir := t.TempDir()
	store := wordbank.NewStore(filepath.Join(dir, "wordbank.jsonl"), zerolog.Nop())
	speech := &fakeSpeech{}
	mat := &assets.Materializer{
		Images:   fakeImages{},
		Speech:   speech,
		ImageDir: filepath.Join(dir, "images"),
		AudioDir: filepath.Join(dir, "audio"),
		Logger:   zerolog.Nop(),
	}
	gen := &fakeGenerator{}
	p := propagate.New(store, gen, mat, zerolog.Nop())
	r := &render.Renderer{
		ImageDir: mat.ImageDir,
		AudioDir: mat.AudioDir,
		ImageURL: "/images",
		AudioURL: "/audio",
		Logger:   zerolog.Nop(),
	}
	return &harness{
		builder: NewBuilder(p, r, mat, nil, "alloy", dev, zerolog.Nop()),
		gen:     gen,
		speech:  speech,
		store:   store,
	}
}

func TestTransformReplacesWordbankSection(t *testing.T) {
	h := newHarness(t, false)

	content := "# Lesson\n\n<wordbank>\n- 猫: cat (the pet)\n</wordbank>\n"
	out := h.builder.Transform(context.Background(), content)

	assert.NotContains(t, out, "<wordbank>")
	assert.Contains(t, out, `class="flashcards"`)
	assert.Contains(t, out, "猫")
	assert.EqualValues(t, 1, h.gen.calls)
}

func TestTransformPhrasebankFeedsTTSPass(t *testing.T) {
	h := newHarness(t, false)

	content := "<phrasebank>\n- お疲れ様です: thanks for your work (greeting)\n</phrasebank>\n"
	out := h.builder.Transform(context.Background(), content)

	assert.NotContains(t, out, "<phrasebank>")
	assert.NotContains(t, out, "<tts>", "phrase tts tags must be consumed by the audio pass")
	assert.Contains(t, out, "お疲れ様です")
	assert.EqualValues(t, 1, h.speech.calls)
}

func TestTransformNarratesFullTTS(t *testing.T) {
	h := newHarness(t, false)

	out := h.builder.Transform(context.Background(), `<tts type="full">こんにちは</tts>`)

	assert.NotContains(t, out, "</tts>")
	assert.Contains(t, out, "<audio")
	assert.Contains(t, out, "こんにちは")
}

func TestTransformDialogueMissingVoiceFallsBackToText(t *testing.T) {
	h := newHarness(t, false)

	content := `<tts type="dialogue" speakers="A:alloy">` + "\nA: おはよう\nB: おはようございます\n</tts>"
	out := h.builder.Transform(context.Background(), content)

	assert.NotContains(t, out, "</tts>")
	assert.NotContains(t, out, "<audio", "invalid dialogue must not narrate")
	assert.Contains(t, out, "おはようございます", "text fallback preserved")
	assert.Zero(t, h.speech.calls)
}

func TestTransformSpeechFailureKeepsText(t *testing.T) {
	h := newHarness(t, false)
	h.speech.err = errors.New("tts down")

	out := h.builder.Transform(context.Background(), `<tts type="full">こんにちは</tts>`)

	assert.NotContains(t, out, "<audio")
	assert.Contains(t, out, "こんにちは")
}

func TestDevModeNeverGenerates(t *testing.T) {
	h := newHarness(t, true)

	require.NoError(t, h.store.Upsert(wordbank.Record{
		Word: "猫", Translation: "cat", Description: "cached", Synthesized: true,
	}))

	content := "<wordbank>\n- 猫: cat (pet)\n- 犬: dog (pet)\n</wordbank>\n<tts>こんにちは</tts>"
	out := h.builder.Transform(context.Background(), content)

	assert.Zero(t, h.gen.calls)
	assert.Zero(t, h.speech.calls)
	assert.NotContains(t, out, "<wordbank>")
	assert.NotContains(t, out, "</tts>")
}

func TestBuildFileConvertsMarkdown(t *testing.T) {
	h := newHarness(t, false)
	dir := t.TempDir()
	src := filepath.Join(dir, "lesson.md")
	dst := filepath.Join(dir, "out", "lesson.html")
	require.NoError(t, os.WriteFile(src, []byte("# 今日の言葉\n\nplain text\n"), 0o644))

	require.NoError(t, h.builder.BuildFile(context.Background(), src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<h1>今日の言葉</h1>")
}

func TestBuildDirMirrorsLayout(t *testing.T) {
	h := newHarness(t, false)
	content := t.TempDir()
	out := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(content, "unit1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(content, "unit1", "a.md"), []byte("# A"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(content, "notes.txt"), []byte("skip me"), 0o644))

	require.NoError(t, h.builder.BuildDir(context.Background(), content, out))

	_, err := os.Stat(filepath.Join(out, "unit1", "a.html"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(out, "notes.html"))
	assert.Error(t, err, "non-markdown files are not built")
}
