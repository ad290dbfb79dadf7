// Package propagate runs the full enrichment pipeline for wordbank entries:
// detail synthesis, image materialization, then a durable upsert.
//
// The propagator guarantees at most one expensive generation per identity
// key per process: a per-process memo short-circuits repeats, a singleflight
// group collapses concurrent duplicates, and the persisted store itself is
// the cross-build cache.
package propagate

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/singleflight"

	"kotobank/pkg/assets"
	"kotobank/pkg/genai"
	"kotobank/pkg/tagparse"
	"kotobank/pkg/wordbank"
)

// DefaultBatchSize bounds concurrent outbound generation calls per batch.
const DefaultBatchSize = 15

// Propagator sequences synthesis, materialization and persistence for word
// entries. Construct one per build and thread it explicitly; it carries all
// per-build state.
type Propagator struct {
	Store     *wordbank.Store
	Generator genai.StructuredGenerator
	Assets    *assets.Materializer
	// BatchSize is the fan-out bound for PropagateMany. Defaults to
	// DefaultBatchSize when zero.
	BatchSize int
	Logger    zerolog.Logger

	mu     sync.Mutex
	memo   map[wordbank.Key]wordbank.Record
	flight singleflight.Group
}

// New creates a propagator over the given collaborators.
func New(store *wordbank.Store, gen genai.StructuredGenerator, mat *assets.Materializer, logger zerolog.Logger) *Propagator {
	return &Propagator{
		Store:     store,
		Generator: gen,
		Assets:    mat,
		BatchSize: DefaultBatchSize,
		Logger:    logger,
		memo:      make(map[wordbank.Key]wordbank.Record),
	}
}

// Propagate turns a (word, translation, context) triple into a persisted,
// asset-complete record.
//
// On synthesis failure a degraded record built from the inputs alone is
// returned together with the error; it is neither persisted nor memoized, so
// a later build retries.
func (p *Propagator) Propagate(ctx context.Context, word, translation, entryContext string) (wordbank.Record, error) {
	key := wordbank.Key{Word: word, Translation: translation}

	p.mu.Lock()
	if rec, ok := p.memo[key]; ok {
		p.mu.Unlock()
		return rec, nil
	}
	p.mu.Unlock()

	// Collapse concurrent duplicates of the same key onto one execution.
	v, err, _ := p.flight.Do(word+"\x00"+translation, func() (interface{}, error) {
		return p.run(ctx, key, entryContext)
	})
	rec, ok := v.(wordbank.Record)
	if !ok {
		rec = fallbackRecord(key, entryContext)
	}
	return rec, err
}

// run executes the pipeline for one key. Only one run per key is in flight
// at a time.
func (p *Propagator) run(ctx context.Context, key wordbank.Key, entryContext string) (wordbank.Record, error) {
	p.mu.Lock()
	if rec, ok := p.memo[key]; ok {
		p.mu.Unlock()
		return rec, nil
	}
	p.mu.Unlock()

	rec, err := p.synthesize(ctx, key, entryContext)
	if err != nil {
		return fallbackRecord(key, entryContext), err
	}

	p.Assets.EnsureImage(ctx, &rec)

	// Persist only after materialization: a crash between synthesis and
	// asset generation must not leave a record marked complete.
	if err := p.Store.Upsert(rec); err != nil {
		p.Logger.Error().Err(err).Str("word", key.Word).Msg("wordbank upsert failed")
		return rec, err
	}

	p.mu.Lock()
	p.memo[key] = rec
	p.mu.Unlock()
	return rec, nil
}

// synthesize returns the existing complete record when the store has one,
// otherwise asks the LLM for details. This check is the dominant
// cost-avoidance path: a synthesized record never goes back to the LLM.
func (p *Propagator) synthesize(ctx context.Context, key wordbank.Key, entryContext string) (wordbank.Record, error) {
	existing, ok, err := p.Store.Get(key.Word, key.Translation)
	if err != nil {
		return wordbank.Record{}, err
	}
	if ok && existing.Synthesized {
		p.Logger.Debug().Str("word", key.Word).Str("translation", key.Translation).Msg("reusing stored record")
		return existing, nil
	}

	p.Logger.Info().Str("word", key.Word).Str("translation", key.Translation).Msg("synthesizing details")
	rec, err := p.Generator.GenerateDetails(ctx, genai.GenerationRequest{
		Word:        key.Word,
		Translation: key.Translation,
		Context:     entryContext,
	})
	if err != nil {
		return wordbank.Record{}, err
	}

	// The model must never rename the identity.
	rec.Word = key.Word
	rec.Translation = key.Translation
	rec.Synthesized = true
	return rec, nil
}

// fallbackRecord is the degraded result for a failed item: the caller's
// input and nothing else.
func fallbackRecord(key wordbank.Key, entryContext string) wordbank.Record {
	return wordbank.Record{
		Word:        key.Word,
		Translation: key.Translation,
		Description: entryContext,
	}
}

// PropagateMany fans Propagate out over entries in fixed-size batches.
// Items within a batch run concurrently; batch N+1 starts only after batch N
// settles, bounding simultaneous outbound API calls. Results come back in
// input order and per-item failures are isolated: a failing item yields its
// degraded record in place while siblings proceed untouched.
func (p *Propagator) PropagateMany(ctx context.Context, entries []tagparse.Entry) []wordbank.Record {
	results := make([]wordbank.Record, len(entries))
	batch := p.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	for start := 0; start < len(entries); start += batch {
		end := start + batch
		if end > len(entries) {
			end = len(entries)
		}

		workers := pool.New().WithMaxGoroutines(end - start)
		for i := start; i < end; i++ {
			i := i
			entry := entries[i]
			workers.Go(func() {
				rec, err := p.Propagate(ctx, entry.Word, entry.Translation, entry.Context)
				if err != nil {
					p.Logger.Warn().Err(err).
						Str("word", entry.Word).
						Str("translation", entry.Translation).
						Msg("propagation degraded")
				}
				results[i] = rec
			})
		}
		workers.Wait()
	}
	return results
}
