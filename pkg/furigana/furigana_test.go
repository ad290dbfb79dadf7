package furigana

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	a, err := New()
	require.NoError(t, err)
	return a
}

func TestTokensCarryReadings(t *testing.T) {
	a := newAnalyzer(t)
	tokens := a.Tokens("今日は晴れです")
	require.NotEmpty(t, tokens)

	var surfaces string
	readingSeen := false
	for _, tok := range tokens {
		surfaces += tok.Surface
		if tok.Reading != "" {
			readingSeen = true
		}
	}
	assert.Equal(t, "今日は晴れです", surfaces)
	assert.True(t, readingSeen, "dictionary words should carry readings")
}

func TestToHiragana(t *testing.T) {
	assert.Equal(t, "ねこ", ToHiragana("ネコ"))
	assert.Equal(t, "きょう", ToHiragana("キョウ"))
	// Non-katakana passes through.
	assert.Equal(t, "cat", ToHiragana("cat"))
	assert.Equal(t, "ひらがな", ToHiragana("ひらがな"))
}

func TestContainsKanji(t *testing.T) {
	assert.True(t, ContainsKanji("勉強"))
	assert.True(t, ContainsKanji("o茶"))
	assert.False(t, ContainsKanji("ひらがな"))
	assert.False(t, ContainsKanji("カタカナ"))
	assert.False(t, ContainsKanji("latin"))
}

func TestKanaReading(t *testing.T) {
	a := newAnalyzer(t)
	assert.Equal(t, "ねこ", a.KanaReading("猫"))
	assert.Equal(t, "べんきょう", a.KanaReading("勉強"))
}

func TestFormatReading(t *testing.T) {
	a := newAnalyzer(t)
	assert.Equal(t, "勉強 (べんきょう)", a.FormatReading("勉強"))
	// Kana-only words are returned unchanged.
	assert.Equal(t, "です", a.FormatReading("です"))
}

func TestHiraganaSpeechReplacesKanjiOnly(t *testing.T) {
	a := newAnalyzer(t)

	out := a.HiraganaSpeech("猫が好きです")
	assert.NotContains(t, out, "猫")
	assert.NotContains(t, out, "好")
	assert.Contains(t, out, "が")
	assert.Contains(t, out, "です")

	// Mixed Japanese and latin text: latin spans untouched.
	mixed := a.HiraganaSpeech("I like 猫 a lot")
	assert.Contains(t, mixed, "I like ")
	assert.Contains(t, mixed, " a lot")
	assert.NotContains(t, mixed, "猫")

	// Whitespace-only input is returned as-is.
	assert.Equal(t, "  ", a.HiraganaSpeech("  "))
}
