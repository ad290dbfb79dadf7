// Package site drives the full article build: custom tag passes over the
// markdown source, then markdown-to-HTML conversion into the output tree.
//
// Collaborator failures never abort a build. The worst outcome for any
// section is its plain-text fallback; the worst outcome for any article is a
// logged skip.
package site

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/yuin/goldmark"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"

	"kotobank/pkg/assets"
	"kotobank/pkg/furigana"
	"kotobank/pkg/genai"
	"kotobank/pkg/propagate"
	"kotobank/pkg/render"
	"kotobank/pkg/tagparse"
	"kotobank/pkg/wordbank"
)

// Builder runs article builds. All collaborators are explicit; nothing here
// reaches for globals.
type Builder struct {
	Propagator *propagate.Propagator
	Renderer   *render.Renderer
	Assets     *assets.Materializer
	// Kana, when set, converts narration text to hiragana before speech
	// synthesis so the voice never guesses kanji readings.
	Kana         *furigana.Analyzer
	DefaultVoice string
	// Dev skips all generation: cached records and existing assets only,
	// minimal records for misses.
	Dev    bool
	Logger zerolog.Logger

	md goldmark.Markdown
}

// NewBuilder wires a builder around the given collaborators.
func NewBuilder(p *propagate.Propagator, r *render.Renderer, mat *assets.Materializer, kana *furigana.Analyzer, defaultVoice string, dev bool, logger zerolog.Logger) *Builder {
	return &Builder{
		Propagator:   p,
		Renderer:     r,
		Assets:       mat,
		Kana:         kana,
		DefaultVoice: defaultVoice,
		Dev:          dev,
		Logger:       logger,
		// Raw HTML from the tag passes must survive conversion.
		md: goldmark.New(goldmark.WithRendererOptions(goldmarkhtml.WithUnsafe())),
	}
}

// BuildDir builds every markdown article under contentDir into outDir,
// mirroring the directory layout. Per-article failures are logged and the
// walk continues.
func (b *Builder) BuildDir(ctx context.Context, contentDir, outDir string) error {
	return filepath.WalkDir(contentDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}
		rel, err := filepath.Rel(contentDir, path)
		if err != nil {
			return err
		}
		target := filepath.Join(outDir, strings.TrimSuffix(rel, ".md")+".html")
		if err := b.BuildFile(ctx, path, target); err != nil {
			b.Logger.Error().Err(err).Str("article", rel).Msg("article build failed, skipping")
		}
		return nil
	})
}

// BuildFile builds one article from src into the HTML file at dst.
func (b *Builder) BuildFile(ctx context.Context, src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("site: read %s: %w", src, err)
	}

	content := b.Transform(ctx, string(data))

	var out bytes.Buffer
	if err := b.md.Convert([]byte(content), &out); err != nil {
		return fmt.Errorf("site: convert %s: %w", src, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, out.Bytes(), 0o644)
}

// Transform runs the tag passes over raw article markdown and returns the
// markdown with every recognized section replaced by its HTML rendering.
// Pass order matters: phrasebank cards inject <tts> tags that the TTS pass
// then narrates.
func (b *Builder) Transform(ctx context.Context, content string) string {
	content = b.wordbankPass(ctx, content)
	content = b.phrasebankPass(ctx, content)
	content = b.ttsPass(ctx, content)
	content = b.practicePass(content)
	return content
}

func (b *Builder) wordbankPass(ctx context.Context, content string) string {
	for _, sec := range tagparse.Sections(content, "wordbank") {
		records := b.resolve(ctx, sec.Entries)
		content = strings.Replace(content, sec.Raw, b.Renderer.FlashcardSection(records), 1)
	}
	return content
}

func (b *Builder) phrasebankPass(ctx context.Context, content string) string {
	for _, sec := range tagparse.Sections(content, "phrasebank") {
		records := b.resolve(ctx, sec.Entries)
		content = strings.Replace(content, sec.Raw, b.Renderer.PhrasebankSection(records), 1)
	}
	return content
}

// resolve turns parsed entries into records, generating in normal builds and
// reading cache-only in dev.
func (b *Builder) resolve(ctx context.Context, entries []tagparse.Entry) []wordbank.Record {
	if !b.Dev {
		return b.Propagator.PropagateMany(ctx, entries)
	}

	records := make([]wordbank.Record, len(entries))
	for i, entry := range entries {
		rec, ok, err := b.Propagator.Store.Get(entry.Word, entry.Translation)
		if err != nil || !ok {
			rec = wordbank.Record{Word: entry.Word, Translation: entry.Translation, Description: entry.Context}
		}
		records[i] = rec
	}
	return records
}

func (b *Builder) ttsPass(ctx context.Context, content string) string {
	for _, sec := range tagparse.TTSSections(content) {
		var replacement string
		switch sec.Kind {
		case tagparse.TTSDialogue:
			replacement = b.renderDialogue(ctx, sec)
		case tagparse.TTSFull:
			replacement = b.Renderer.AudioPlayer(sec.Body, b.narrate(ctx, sec))
		default:
			replacement = b.Renderer.InlineAudio(sec.Body, b.narrate(ctx, sec))
		}
		content = strings.Replace(content, sec.Raw, replacement, 1)
	}
	return content
}

// narrate materializes single-voice audio for a section and returns the
// filename, empty when unavailable.
func (b *Builder) narrate(ctx context.Context, sec tagparse.TTSSection) string {
	speech := sec.Body
	if b.Kana != nil {
		speech = b.Kana.HiraganaSpeech(speech)
	}
	if b.Dev {
		// Existing assets only; the renderer drops names missing on disk.
		return assets.AudioFileName(speech, ".aac")
	}

	voice := sec.Voice
	if voice == "" {
		voice = b.DefaultVoice
	}
	name, ok := b.Assets.EnsureAudio(ctx, speech, voice)
	if !ok {
		return ""
	}
	return name
}

func (b *Builder) renderDialogue(ctx context.Context, sec tagparse.TTSSection) string {
	turns, err := tagparse.DialogueTurns(sec.Body)
	if err != nil {
		b.Logger.Warn().Err(err).Msg("unparseable dialogue, rendering as text")
		return b.Renderer.AudioPlayer(sec.Body, "")
	}

	lines := make([]genai.DialogueLine, len(turns))
	for i, turn := range turns {
		text := turn.Text
		if b.Kana != nil {
			text = b.Kana.HiraganaSpeech(text)
		}
		lines[i] = genai.DialogueLine{Speaker: turn.Speaker, Text: text}
	}

	if b.Dev {
		return b.Renderer.AudioPlayer(sec.Body, assets.DialogueAudioName(lines))
	}

	name, ok, err := b.Assets.EnsureDialogueAudio(ctx, sec.Speakers, lines)
	if err != nil {
		// Misconfigured speakers fail fast before any synthesis call.
		b.Logger.Warn().Err(err).Msg("dialogue section skipped")
		return b.Renderer.AudioPlayer(sec.Body, "")
	}
	if !ok {
		name = ""
	}
	return b.Renderer.AudioPlayer(sec.Body, name)
}

func (b *Builder) practicePass(content string) string {
	for _, sec := range tagparse.PracticeSections(content) {
		content = strings.Replace(content, sec.Raw, b.Renderer.DialoguePractice(sec.Instructions), 1)
	}
	return content
}
