package wordbank

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Store is a keyed, persisted mapping from (word, translation) to Record.
//
// Persistence is a JSONL file: one record per line, UTF-8, non-ASCII stored
// literally so Japanese entries stay diffable under version control. The
// in-memory index is the working copy during a build; it is rebuilt from the
// file on first access and the whole file is rewritten on every mutation.
//
// The store is safe for concurrent use within one process. Concurrent
// external processes mutating the same file are out of scope.
type Store struct {
	mu     sync.Mutex
	path   string
	logger zerolog.Logger

	loaded bool
	index  map[Key]Record
	order  []Key
}

// NewStore creates a store backed by the JSONL file at path. The file is not
// touched until the first read or write.
func NewStore(path string, logger zerolog.Logger) *Store {
	return &Store{
		path:   path,
		logger: logger,
		index:  make(map[Key]Record),
	}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Get returns the record for the given pair. The boolean is false when the
// pair is absent. An error is returned only when the backing file cannot be
// loaded.
func (s *Store) Get(word, translation string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return Record{}, false, err
	}
	rec, ok := s.index[Key{Word: word, Translation: translation}]
	return rec, ok, nil
}

// Contains reports whether the pair exists in the store.
func (s *Store) Contains(word, translation string) (bool, error) {
	_, ok, err := s.Get(word, translation)
	return ok, err
}

// Upsert inserts or fully replaces the record at its identity key and
// persists the entire store. Repeated calls with the same record are safe and
// never disturb unrelated records.
func (s *Store) Upsert(rec Record) error {
	if strings.TrimSpace(rec.Word) == "" {
		return fmt.Errorf("wordbank: record word must be non-empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return err
	}
	key := rec.Key()
	if _, exists := s.index[key]; !exists {
		s.order = append(s.order, key)
	}
	s.index[key] = rec
	return s.save()
}

// All returns every record in load/insertion order.
func (s *Store) All() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.index[key])
	}
	return out, nil
}

// Len returns the number of stored records.
func (s *Store) Len() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return 0, err
	}
	return len(s.index), nil
}

// ensureLoaded rebuilds the index from the backing file once. A missing file
// initializes an empty store. A malformed line is a hard failure: store files
// are version-controlled data and silent skips would hide real damage.
// Callers must hold s.mu.
func (s *Store) ensureLoaded() error {
	if s.loaded {
		return nil
	}

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.loaded = true
			return nil
		}
		return fmt.Errorf("wordbank: open %s: %w", s.path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return fmt.Errorf("wordbank: %s line %d: %w", s.path, lineNo, err)
		}
		// Lines written before the synthesized flag existed signal
		// completeness through a non-empty image prompt.
		if !rec.Synthesized && rec.ImagePrompt != "" {
			rec.Synthesized = true
		}
		key := rec.Key()
		if _, exists := s.index[key]; !exists {
			s.order = append(s.order, key)
		}
		s.index[key] = rec
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("wordbank: read %s: %w", s.path, err)
	}

	s.loaded = true
	s.logger.Debug().Int("records", len(s.index)).Str("path", s.path).Msg("wordbank loaded")
	return nil
}

// save rewrites the whole backing file. The write goes through a temp file in
// the same directory and a rename, so a crash mid-rewrite cannot leave a
// half-written store behind. Callers must hold s.mu.
func (s *Store) save() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("wordbank: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".wordbank-*.jsonl")
	if err != nil {
		return fmt.Errorf("wordbank: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, key := range s.order {
		if err := enc.Encode(s.index[key]); err != nil {
			tmp.Close()
			return fmt.Errorf("wordbank: encode %q: %w", key.Word, err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("wordbank: flush: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("wordbank: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("wordbank: rename: %w", err)
	}
	return nil
}
