// Package render turns enriched wordbank records and parsed article sections
// into HTML fragments for the static site.
//
// Rendering trusts the filesystem, not the record: a card or audio control is
// emitted only when its asset file actually exists under the configured
// directories. All user-supplied text is HTML-escaped.
package render

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"kotobank/pkg/furigana"
	"kotobank/pkg/wordbank"
)

// Renderer holds the asset locations and helpers shared by all fragment
// renderers. URL fields are the public prefixes written into src attributes;
// Dir fields are where existence is checked.
type Renderer struct {
	ImageDir string
	AudioDir string
	ImageURL string
	AudioURL string
	// Kana, when set, contributes hiragana readings as alternative quiz
	// answers for kanji words.
	Kana   *furigana.Analyzer
	Logger zerolog.Logger
}

// CardID derives a stable id for a word sense, so anchors survive rebuilds.
func CardID(word, translation string) string {
	sum := sha256.Sum256([]byte(word + "\x00" + translation))
	return "card-" + hex.EncodeToString(sum[:])[:12]
}

// quizItem is one entry of the embedded quiz payload.
type quizItem struct {
	ID           string   `json:"id"`
	Image        string   `json:"image"`
	Answer       string   `json:"answer"`
	Alternatives []string `json:"alternatives,omitempty"`
	Translation  string   `json:"translation"`
}

// FlashcardSection renders the card grid plus the quiz JSON payload for one
// wordbank section. Records without an image on disk are dropped: a flashcard
// is its picture.
func (r *Renderer) FlashcardSection(records []wordbank.Record) string {
	var b strings.Builder
	var quiz []quizItem

	b.WriteString(`<div class="flashcards">` + "\n")
	for _, rec := range records {
		if !r.imageExists(rec) {
			r.Logger.Debug().Str("word", rec.Word).Msg("no image on disk, skipping card")
			continue
		}
		r.writeCard(&b, rec)
		quiz = append(quiz, quizItem{
			ID:           CardID(rec.Word, rec.Translation),
			Image:        r.ImageURL + "/" + rec.ImageFile,
			Answer:       rec.Word,
			Alternatives: r.alternatives(rec.Word),
			Translation:  rec.Translation,
		})
	}
	if len(quiz) > 0 {
		payload, err := json.Marshal(quiz)
		if err == nil {
			b.WriteString(`<script type="application/json" class="flashcard-quiz">`)
			b.Write(payload)
			b.WriteString("</script>\n")
		}
	}
	b.WriteString("</div>\n")
	return b.String()
}

func (r *Renderer) writeCard(b *strings.Builder, rec wordbank.Record) {
	word := rec.Word
	if r.Kana != nil {
		word = r.Kana.FormatReading(rec.Word)
	}

	fmt.Fprintf(b, `<div class="flashcard" id=%q>`+"\n", CardID(rec.Word, rec.Translation))
	fmt.Fprintf(b, `<img src=%q alt=%q loading="lazy">`+"\n",
		r.ImageURL+"/"+rec.ImageFile, html.EscapeString(rec.Translation))
	fmt.Fprintf(b, `<div class="flashcard-word">%s</div>`+"\n", html.EscapeString(word))
	fmt.Fprintf(b, `<div class="flashcard-translation">%s</div>`+"\n", html.EscapeString(rec.Translation))
	if rec.Description != "" {
		fmt.Fprintf(b, `<div class="flashcard-description">%s</div>`+"\n", html.EscapeString(rec.Description))
	}
	if len(rec.Examples) > 0 {
		b.WriteString(`<ul class="flashcard-examples">` + "\n")
		for _, ex := range rec.Examples {
			fmt.Fprintf(b, "<li>%s</li>\n", html.EscapeString(ex))
		}
		b.WriteString("</ul>\n")
	}
	r.writeAudioButton(b, rec.AudioFile)
	b.WriteString("</div>\n")
}

// PhrasebankSection renders definition cards for phrases. The phrase itself
// is wrapped in a <tts> tag so the later audio pass picks it up.
func (r *Renderer) PhrasebankSection(records []wordbank.Record) string {
	var b strings.Builder
	b.WriteString(`<div class="phrasebank">` + "\n")
	for _, rec := range records {
		fmt.Fprintf(&b, `<div class="phrase" id=%q>`+"\n", CardID(rec.Word, rec.Translation))
		fmt.Fprintf(&b, `<div class="phrase-text"><tts>%s</tts></div>`+"\n", html.EscapeString(rec.Word))
		fmt.Fprintf(&b, `<div class="phrase-translation">%s</div>`+"\n", html.EscapeString(rec.Translation))
		if rec.Description != "" {
			fmt.Fprintf(&b, `<div class="phrase-description">%s</div>`+"\n", html.EscapeString(rec.Description))
		}
		b.WriteString("</div>\n")
	}
	b.WriteString("</div>\n")
	return b.String()
}

// InlineAudio renders text with a play button beside it, used for inline
// <tts> spans. When the audio file is missing the text renders plain.
func (r *Renderer) InlineAudio(text, audioFile string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<span class="tts-inline">%s`, html.EscapeString(text))
	r.writeAudioButton(&b, audioFile)
	b.WriteString("</span>")
	return b.String()
}

// AudioPlayer renders a full-width audio element for full and dialogue TTS
// sections, with the source text preserved below it.
func (r *Renderer) AudioPlayer(text, audioFile string) string {
	var b strings.Builder
	b.WriteString(`<div class="tts-block">` + "\n")
	if r.audioExists(audioFile) {
		fmt.Fprintf(&b, `<audio controls preload="none" src=%q></audio>`+"\n", r.AudioURL+"/"+audioFile)
	}
	fmt.Fprintf(&b, `<div class="tts-text">%s</div>`+"\n", html.EscapeString(text))
	b.WriteString("</div>\n")
	return b.String()
}

// DialoguePractice renders an interactive practice section. The raw
// instructions travel as an embedded JSON payload for the page script.
func (r *Renderer) DialoguePractice(instructions string) string {
	sum := sha256.Sum256([]byte(instructions))
	id := "practice-" + hex.EncodeToString(sum[:])[:8]

	payload, err := json.Marshal(map[string]string{"instructions": instructions})
	if err != nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<div class="dialogue-practice" id=%q>`+"\n", id)
	b.WriteString(`<button class="practice-start">Start practice</button>` + "\n")
	b.WriteString(`<script type="application/json" class="practice-config">`)
	b.Write(payload)
	b.WriteString("</script>\n</div>\n")
	return b.String()
}

func (r *Renderer) writeAudioButton(b *strings.Builder, audioFile string) {
	if !r.audioExists(audioFile) {
		return
	}
	fmt.Fprintf(b, `<button class="audio-button" data-audio=%q>&#128266;</button>`+"\n",
		r.AudioURL+"/"+audioFile)
}

func (r *Renderer) imageExists(rec wordbank.Record) bool {
	if rec.ImageFile == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(r.ImageDir, rec.ImageFile))
	return err == nil
}

func (r *Renderer) audioExists(audioFile string) bool {
	if audioFile == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(r.AudioDir, audioFile))
	return err == nil
}

// alternatives returns extra accepted quiz answers for a word, currently the
// hiragana reading of kanji words.
func (r *Renderer) alternatives(word string) []string {
	if r.Kana == nil || !furigana.ContainsKanji(word) {
		return nil
	}
	reading := r.Kana.KanaReading(word)
	if reading == "" || reading == word {
		return nil
	}
	return []string{reading}
}
