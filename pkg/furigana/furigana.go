// Package furigana resolves readings for Japanese text using the kagome
// morphological analyzer with the IPA dictionary.
//
// The reading question is answered once, here, at the tokenizer boundary:
// every Token carries an explicit Reading that is empty when the dictionary
// has none, so callers never probe analyzer internals.
package furigana

import (
	"regexp"
	"strings"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
)

// Token is a single analyzed unit of text.
type Token struct {
	Surface string // the text as it appears (e.g. "行っ")
	Reading string // katakana reading (e.g. "イッ"), empty when unknown
}

// Analyzer segments Japanese text into tokens with readings.
type Analyzer struct {
	t *tokenizer.Tokenizer
}

// New creates an analyzer backed by the embedded IPA dictionary.
func New() (*Analyzer, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, err
	}
	return &Analyzer{t: t}, nil
}

// Tokens breaks text into ordered tokens with readings.
func (a *Analyzer) Tokens(text string) []Token {
	var result []Token
	for _, token := range a.t.Tokenize(text) {
		if token.Class == tokenizer.DUMMY {
			continue
		}
		if strings.TrimSpace(token.Surface) == "" {
			continue
		}

		// IPA feature layout: index 7 is the katakana reading, "*" when the
		// dictionary has no entry.
		features := token.Features()
		reading := ""
		if len(features) > 7 && features[7] != "*" {
			reading = features[7]
		}

		result = append(result, Token{Surface: token.Surface, Reading: reading})
	}
	return result
}

// KanaReading returns the full hiragana reading of a word, or the word itself
// for tokens without a dictionary reading.
func (a *Analyzer) KanaReading(word string) string {
	var b strings.Builder
	for _, tok := range a.Tokens(word) {
		if tok.Reading != "" {
			b.WriteString(ToHiragana(tok.Reading))
		} else {
			b.WriteString(tok.Surface)
		}
	}
	return b.String()
}

// FormatReading renders a word as "word (reading)" when the word contains
// kanji and a distinct reading exists; otherwise the word unchanged.
func (a *Analyzer) FormatReading(word string) string {
	if !ContainsKanji(word) {
		return word
	}
	reading := a.KanaReading(word)
	if reading == "" || reading == word {
		return word
	}
	return word + " (" + reading + ")"
}

var japanesePattern = regexp.MustCompile(`[\x{3040}-\x{309F}\x{30A0}-\x{30FF}\x{4E00}-\x{9FFF}\x{3400}-\x{4DBF}\x{3000}-\x{303F}]+`)

// HiraganaSpeech rewrites the Japanese segments of text with kanji replaced
// by their hiragana readings, leaving non-Japanese spans untouched. Speech
// synthesis input goes through this so the voice never misreads a kanji.
func (a *Analyzer) HiraganaSpeech(text string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}

	var out strings.Builder
	last := 0
	for _, loc := range japanesePattern.FindAllStringIndex(text, -1) {
		out.WriteString(text[last:loc[0]])
		out.WriteString(a.segmentToHiragana(text[loc[0]:loc[1]]))
		last = loc[1]
	}
	out.WriteString(text[last:])
	return out.String()
}

// segmentToHiragana converts one Japanese segment, replacing only tokens that
// actually contain kanji. Kana and punctuation pass through unchanged.
func (a *Analyzer) segmentToHiragana(segment string) string {
	var out strings.Builder
	for _, tok := range a.t.Tokenize(segment) {
		if tok.Class == tokenizer.DUMMY {
			continue
		}
		features := tok.Features()
		reading := ""
		if len(features) > 7 && features[7] != "*" {
			reading = features[7]
		}
		if ContainsKanji(tok.Surface) && reading != "" {
			out.WriteString(ToHiragana(reading))
		} else {
			out.WriteString(tok.Surface)
		}
	}
	return out.String()
}

// ToHiragana converts katakana characters to hiragana, leaving everything
// else unchanged.
func ToHiragana(text string) string {
	var b strings.Builder
	for _, r := range text {
		// Katakana block U+30A1..U+30F6 maps onto hiragana at -0x60.
		if r >= 0x30A1 && r <= 0x30F6 {
			b.WriteRune(r - 0x60)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var kanjiPattern = regexp.MustCompile(`[\x{4E00}-\x{9FFF}\x{3400}-\x{4DBF}]`)

// ContainsKanji reports whether text contains any kanji character.
func ContainsKanji(text string) bool {
	return kanjiPattern.MatchString(text)
}
