// Package sync implements the Sync/Repair component (D): reconciling
// the Record Store against the Vector Index after a crash, a config
// change, or a migration (spec §4.4).
package sync

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"memex/internal/embedder"
	"memex/internal/record"
	"memex/internal/vectorindex"
)

// Report summarizes the outcome of a catch-up or rebuild pass.
type Report struct {
	Scanned        int
	Added          int
	SkippedEmpty   int
	SkippedExisting int
	Errors         int
	Duration       time.Duration
}

// Reconciler drives the Record Store → Vector Index reconciliation.
type Reconciler struct {
	store *record.FileStore
	index vectorindex.VectorStore
	embed embedder.Embedder
}

// New constructs a Reconciler over an existing record store and vector index.
func New(store *record.FileStore, index vectorindex.VectorStore, embed embedder.Embedder) *Reconciler {
	return &Reconciler{store: store, index: index, embed: embed}
}

// CatchUp scans every record in the store and upserts any whose id is
// not already present in the vector index. Idempotent: running it twice
// in a row with no new records gives a second report with Added == 0
// (non-empty records count as skipped_existing, empty ones as
// skipped_empty).
func (r *Reconciler) CatchUp(ctx context.Context) (Report, error) {
	start := time.Now()
	var rep Report

	_, err := r.store.Iter(ctx, func(rec record.CaptureRecord) error {
		rep.Scanned++
		if rec.IsEmpty() {
			rep.SkippedEmpty++
			return nil
		}
		existing, err := r.index.GetByIDs(ctx, []string{rec.ID})
		if err != nil {
			rep.Errors++
			log.Error().Err(err).Str("id", rec.ID).Msg("catch-up: failed to check existing index entry")
			return nil
		}
		if len(existing) > 0 {
			rep.SkippedExisting++
			return nil
		}
		if err := r.upsertOne(ctx, rec); err != nil {
			rep.Errors++
			log.Error().Err(err).Str("id", rec.ID).Msg("catch-up: failed to upsert record")
			return nil
		}
		rep.Added++
		return nil
	})
	rep.Duration = time.Since(start)
	if err != nil {
		return rep, err
	}
	log.Info().
		Int("scanned", rep.Scanned).
		Int("added", rep.Added).
		Int("skipped_empty", rep.SkippedEmpty).
		Int("skipped_existing", rep.SkippedExisting).
		Int("errors", rep.Errors).
		Dur("duration", rep.Duration).
		Msg("catch-up complete")
	return rep, nil
}

// Rebuild deletes the index entry of every record id in the store and
// reinserts every non-empty record. Index entries whose id has no record
// in the store are not deleted. Intended for use after a vector
// index migration or a change of embedding model, where stale vectors
// must not survive the switch.
func (r *Reconciler) Rebuild(ctx context.Context) (Report, error) {
	start := time.Now()
	var rep Report

	var ids []string
	_, err := r.store.Iter(ctx, func(rec record.CaptureRecord) error {
		ids = append(ids, rec.ID)
		return nil
	})
	if err != nil {
		return rep, err
	}
	for _, id := range ids {
		if err := r.index.Delete(ctx, id); err != nil {
			log.Warn().Err(err).Str("id", id).Msg("rebuild: failed to delete stale index entry")
		}
	}

	_, err = r.store.Iter(ctx, func(rec record.CaptureRecord) error {
		rep.Scanned++
		if rec.IsEmpty() {
			rep.SkippedEmpty++
			return nil
		}
		if err := r.upsertOne(ctx, rec); err != nil {
			rep.Errors++
			log.Error().Err(err).Str("id", rec.ID).Msg("rebuild: failed to upsert record")
			return nil
		}
		rep.Added++
		return nil
	})
	rep.Duration = time.Since(start)
	if err != nil {
		return rep, err
	}
	log.Info().
		Int("scanned", rep.Scanned).
		Int("added", rep.Added).
		Int("skipped_empty", rep.SkippedEmpty).
		Int("errors", rep.Errors).
		Dur("duration", rep.Duration).
		Msg("rebuild complete")
	return rep, nil
}

func (r *Reconciler) upsertOne(ctx context.Context, rec record.CaptureRecord) error {
	vectors, err := r.embed.EmbedBatch(ctx, []string{rec.Text})
	if err != nil {
		return err
	}
	md := map[string]any{
		"screen_name":              rec.ScreenName,
		vectorindex.TimestampField: rec.TimestampMicros,
		"text_length":              rec.TextLength,
		"word_count":               rec.WordCount,
		"source":                   rec.Source,
		"data_type":                rec.DataType,
	}
	return r.index.Upsert(ctx, rec.ID, vectors[0], md)
}
