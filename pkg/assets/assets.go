// Package assets materializes generated binary assets (flashcard images,
// narration audio) on disk.
//
// The filesystem is the authority here: a record's file-reference fields and
// the on-disk files are two loosely coupled caches, and an existing file
// always wins over regeneration. Collaborator failures degrade to "asset
// absent" instead of aborting a build.
package assets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"kotobank/pkg/genai"
	"kotobank/pkg/wordbank"
)

// Transcoder converts an audio file on disk from src to dst. It wraps a
// blocking subprocess; Materializer runs it on the calling goroutine, which
// the batch fan-out already bounds.
type Transcoder func(ctx context.Context, src, dst string) error

// FFmpegTranscoder shells out to ffmpeg for a WAV-to-AAC conversion.
func FFmpegTranscoder(bin string) Transcoder {
	if bin == "" {
		bin = "ffmpeg"
	}
	return func(ctx context.Context, src, dst string) error {
		cmd := exec.CommandContext(ctx, bin, "-y", "-i", src, "-codec:a", "aac", "-b:a", "128k", dst)
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("assets: ffmpeg: %w: %s", err, strings.TrimSpace(string(out)))
		}
		return nil
	}
}

// Materializer owns image and audio materialization for one build.
type Materializer struct {
	Images   genai.ImageSynthesizer
	Speech   genai.SpeechSynthesizer
	ImageDir string
	AudioDir string
	// Transcoder, when set, post-processes raw synthesized audio (e.g. PCM
	// from a backend that cannot encode) into the target container.
	Transcoder Transcoder
	Logger     zerolog.Logger
}

var unsafeFilename = regexp.MustCompile(`[/\\:*?"<>|]`)

// ImageFileName derives the human-readable image filename for a record from
// its translation, e.g. "move quickly on foot" -> "move_quickly_on_foot.jpg".
func ImageFileName(translation string) string {
	name := strings.ReplaceAll(strings.TrimSpace(translation), " ", "_")
	name = unsafeFilename.ReplaceAllString(name, "_")
	return name + ".jpg"
}

// AudioFileName derives a deterministic audio filename from the driving text.
func AudioFileName(text, ext string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:16] + ext
}

// DialogueAudioName derives the deterministic filename for a multi-speaker
// narration from its turns.
func DialogueAudioName(lines []genai.DialogueLine) string {
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		parts = append(parts, line.Speaker+":"+line.Text)
	}
	return AudioFileName(strings.Join(parts, "\n"), ".mp3")
}

// EnsureImage guarantees the record's flashcard image exists on disk when
// possible. An existing target file is reused no matter what the record
// claims; otherwise the image synthesizer runs once. Failures are logged and
// leave ImageFile unset — callers render without the image.
func (m *Materializer) EnsureImage(ctx context.Context, rec *wordbank.Record) {
	name := ImageFileName(rec.Translation)
	path := filepath.Join(m.ImageDir, name)

	if _, err := os.Stat(path); err == nil {
		rec.ImageFile = name
		return
	}
	if rec.ImagePrompt == "" {
		m.Logger.Debug().Str("word", rec.Word).Msg("no image prompt, skipping image")
		return
	}

	data, err := m.Images.SynthesizeImage(ctx, rec.ImagePrompt)
	if err != nil {
		m.Logger.Warn().Err(err).Str("word", rec.Word).Msg("image synthesis failed, continuing without image")
		return
	}
	if err := writeAsset(path, data); err != nil {
		m.Logger.Warn().Err(err).Str("word", rec.Word).Msg("image write failed, continuing without image")
		return
	}
	rec.ImageFile = name
}

// EnsureAudio guarantees a single-voice narration file for text exists and
// returns its filename. ok is false when the asset could not be produced.
func (m *Materializer) EnsureAudio(ctx context.Context, text, voice string) (string, bool) {
	name := AudioFileName(text, ".aac")
	path := filepath.Join(m.AudioDir, name)

	if _, err := os.Stat(path); err == nil {
		return name, true
	}

	data, err := m.Speech.SynthesizeSpeech(ctx, text, voice)
	if err != nil {
		m.Logger.Warn().Err(err).Str("text", text).Msg("speech synthesis failed, continuing without audio")
		return "", false
	}
	if err := m.writeAudio(ctx, path, data); err != nil {
		m.Logger.Warn().Err(err).Str("text", text).Msg("audio write failed, continuing without audio")
		return "", false
	}
	return name, true
}

// EnsureDialogueAudio guarantees a multi-speaker narration file for the given
// turns. Every speaker appearing in the lines must have a configured voice;
// that is validated before any external call and a violation is returned as
// an error (the caller skips the section). Synthesis failures degrade like
// EnsureAudio.
func (m *Materializer) EnsureDialogueAudio(ctx context.Context, voices map[string]string, lines []genai.DialogueLine) (string, bool, error) {
	if err := validateSpeakers(voices, lines); err != nil {
		return "", false, err
	}

	name := DialogueAudioName(lines)
	path := filepath.Join(m.AudioDir, name)

	if _, err := os.Stat(path); err == nil {
		return name, true, nil
	}

	data, err := m.Speech.SynthesizeDialogue(ctx, voices, lines)
	if err != nil {
		m.Logger.Warn().Err(err).Msg("dialogue synthesis failed, continuing without audio")
		return "", false, nil
	}
	if err := m.writeAudio(ctx, path, data); err != nil {
		m.Logger.Warn().Err(err).Msg("dialogue write failed, continuing without audio")
		return "", false, nil
	}
	return name, true, nil
}

func validateSpeakers(voices map[string]string, lines []genai.DialogueLine) error {
	missing := map[string]bool{}
	for _, line := range lines {
		if _, ok := voices[line.Speaker]; !ok {
			missing[line.Speaker] = true
		}
	}
	if len(missing) == 0 {
		return nil
	}
	names := make([]string, 0, len(missing))
	for name := range missing {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Errorf("assets: no voice configured for speaker(s): %s", strings.Join(names, ", "))
}

// writeAudio writes synthesized audio, routing through the transcoder when
// one is configured.
func (m *Materializer) writeAudio(ctx context.Context, path string, data []byte) error {
	if m.Transcoder == nil {
		return writeAsset(path, data)
	}
	tmp, err := os.CreateTemp("", "kotobank-audio-*.raw")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return m.Transcoder(ctx, tmp.Name(), path)
}

func writeAsset(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
