// Package tagparse extracts tagged content sections from markdown sources.
//
// Articles embed learning material in pseudo-HTML tags: <wordbank> and
// <phrasebank> hold `- word: translation (context)` entry lists, <tts> marks
// text for speech synthesis, and <dialogue_practice> wraps free-form
// conversation instructions. Tag delimiters are case-insensitive and bodies
// may span lines.
package tagparse

import (
	"fmt"
	"regexp"
	"strings"
)

// Entry is one parsed `- word: translation (context)` line.
type Entry struct {
	Word        string
	Translation string
	Context     string
}

// Section is one tagged block together with its parsed entries. Raw is the
// full matched text including the tag delimiters, so callers can substitute
// rendered output back into the source.
type Section struct {
	Raw     string
	Entries []Entry
}

var entryPattern = regexp.MustCompile(`(?m)^\s*-\s*(.+?):\s*(.+?)\s*\((.+?)\)\s*$`)

func sectionPattern(tag string) *regexp.Regexp {
	return regexp.MustCompile(`(?si)<` + regexp.QuoteMeta(tag) + `>(.*?)</` + regexp.QuoteMeta(tag) + `>`)
}

// Sections extracts all sections of the given tag from content, in source
// order. Sections with zero valid entries are dropped; malformed lines inside
// an otherwise valid section are skipped.
func Sections(content, tag string) []Section {
	if content == "" {
		return nil
	}
	var sections []Section
	for _, match := range sectionPattern(tag).FindAllStringSubmatch(content, -1) {
		entries := parseEntries(match[1])
		if len(entries) == 0 {
			continue
		}
		sections = append(sections, Section{Raw: match[0], Entries: entries})
	}
	return sections
}

func parseEntries(body string) []Entry {
	var entries []Entry
	for _, m := range entryPattern.FindAllStringSubmatch(body, -1) {
		entries = append(entries, Entry{
			Word:        strings.TrimSpace(m[1]),
			Translation: strings.TrimSpace(m[2]),
			Context:     strings.TrimSpace(m[3]),
		})
	}
	return entries
}

// TTSKind selects how a <tts> section is narrated and rendered.
type TTSKind string

const (
	TTSInline   TTSKind = "inline"
	TTSFull     TTSKind = "full"
	TTSDialogue TTSKind = "dialogue"
)

// TTSSection is one parsed <tts> block.
//
//	<tts type="dialogue" speakers="Student:Puck,Teacher:Zephyr">...</tts>
type TTSSection struct {
	Raw      string
	Kind     TTSKind
	Voice    string            // single-voice narration override, may be empty
	Speakers map[string]string // speaker name -> voice, dialogue only
	Body     string
}

var ttsPattern = regexp.MustCompile(
	`(?si)<tts(?:\s+type="(inline|full|dialogue)")?(?:\s+voice="([^"]+)")?(?:\s+speakers="([^"]+)")?\s*>(.*?)</tts>`)

// TTSSections extracts all <tts> sections from content. The type attribute
// defaults to inline.
func TTSSections(content string) []TTSSection {
	if content == "" {
		return nil
	}
	var sections []TTSSection
	for _, m := range ttsPattern.FindAllStringSubmatch(content, -1) {
		kind := TTSKind(strings.ToLower(m[1]))
		if kind == "" {
			kind = TTSInline
		}
		sections = append(sections, TTSSection{
			Raw:      m[0],
			Kind:     kind,
			Voice:    m[2],
			Speakers: parseSpeakers(m[3]),
			Body:     strings.TrimSpace(m[4]),
		})
	}
	return sections
}

// parseSpeakers parses a `name:voice,name:voice` attribute value.
func parseSpeakers(attr string) map[string]string {
	if attr == "" {
		return nil
	}
	speakers := make(map[string]string)
	for _, pair := range strings.Split(attr, ",") {
		name, voice, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		voice = strings.TrimSpace(voice)
		if name == "" || voice == "" {
			continue
		}
		speakers[name] = voice
	}
	return speakers
}

// DialogueTurn is one `Speaker: line` turn of a dialogue body.
type DialogueTurn struct {
	Speaker string
	Text    string
}

// DialogueTurns parses a dialogue body into ordered speaker turns. Lines
// without a speaker prefix are skipped.
func DialogueTurns(body string) ([]DialogueTurn, error) {
	var turns []DialogueTurn
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		speaker, text, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		speaker = strings.TrimSpace(speaker)
		text = strings.TrimSpace(text)
		if speaker == "" || text == "" {
			continue
		}
		turns = append(turns, DialogueTurn{Speaker: speaker, Text: text})
	}
	if len(turns) == 0 {
		return nil, fmt.Errorf("tagparse: dialogue body has no speaker turns")
	}
	return turns, nil
}

var practicePattern = regexp.MustCompile(`(?si)<dialogue_practice>(.*?)</dialogue_practice>`)

// PracticeSection is one <dialogue_practice> block with its instruction text.
type PracticeSection struct {
	Raw          string
	Instructions string
}

// PracticeSections extracts all <dialogue_practice> sections. Sections with
// empty instructions are dropped.
func PracticeSections(content string) []PracticeSection {
	if content == "" {
		return nil
	}
	var sections []PracticeSection
	for _, m := range practicePattern.FindAllStringSubmatch(content, -1) {
		instructions := strings.TrimSpace(m[1])
		if instructions == "" {
			continue
		}
		sections = append(sections, PracticeSection{Raw: m[0], Instructions: instructions})
	}
	return sections
}
