// Package fingerprint renames static assets to content-addressed filenames
// (name.<hash8>.ext) so far-future cache headers stay safe across deploys.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

const hashLen = 8

// Rename walks dir and renames every regular file to carry its content hash
// before the extension. It returns the old→new basename mapping for callers
// to rewrite references with. Files already carrying their current hash are
// left alone and omitted from the mapping.
func Rename(dir string, logger zerolog.Logger) (map[string]string, error) {
	mapping := make(map[string]string)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		sum, err := hashFile(path)
		if err != nil {
			return fmt.Errorf("fingerprint: hash %s: %w", path, err)
		}

		base := filepath.Base(path)
		fingerprinted := withHash(base, sum)
		if base == fingerprinted {
			return nil
		}

		target := filepath.Join(filepath.Dir(path), fingerprinted)
		if err := os.Rename(path, target); err != nil {
			return fmt.Errorf("fingerprint: rename %s: %w", path, err)
		}
		logger.Debug().Str("from", base).Str("to", fingerprinted).Msg("fingerprinted asset")
		mapping[base] = fingerprinted
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mapping, nil
}

// Rewrite replaces references to the old basenames with their fingerprinted
// forms in every HTML file under dir.
func Rewrite(dir string, mapping map[string]string) error {
	if len(mapping) == 0 {
		return nil
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".html") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		content := string(data)
		updated := content
		for old, renamed := range mapping {
			updated = strings.ReplaceAll(updated, old, renamed)
		}
		if updated == content {
			return nil
		}
		return os.WriteFile(path, []byte(updated), 0o644)
	})
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil))[:hashLen], nil
}

// withHash inserts the hash before the final extension, replacing an older
// hash segment when one is present.
func withHash(base, sum string) string {
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	// Strip a previous fingerprint so re-runs converge.
	if i := strings.LastIndex(stem, "."); i >= 0 {
		if tail := stem[i+1:]; len(tail) == hashLen && isHex(tail) {
			stem = stem[:i]
		}
	}
	return stem + "." + sum + ext
}

func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return true
}
