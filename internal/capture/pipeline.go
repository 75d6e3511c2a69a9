package capture

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"memex/internal/embedder"
	"memex/internal/memexerr"
	"memex/internal/metrics"
	"memex/internal/observability"
	"memex/internal/record"
	"memex/internal/vectorindex"
)

// State is a tick's position in the per-tick state machine (spec §4.6).
type State string

const (
	StateIdle             State = "idle"
	StateCapturing        State = "capturing"
	StateOCR              State = "ocr"
	StatePersisting       State = "persisting"
	StateIndexing         State = "indexing"
	StateIndexingDeferred State = "indexing_deferred"
)

// Stats is a snapshot of the pipeline's last-tick outcome, returned by
// Pipeline.Stats.
type Stats struct {
	State            State
	LastTickAt       time.Time
	LastTickDuration time.Duration
	ScreensCaptured  int
	RecordsPersisted int
	RecordsIndexed   int
	RecordsDeferred  int
	TickErrors       int
	TotalTicks       int
}

// Config configures a Pipeline.
type Config struct {
	TickInterval    time.Duration
	RecordDir       string
	Source          string // attribution string written into each CaptureRecord
	ShutdownTimeout time.Duration
}

// Pipeline runs the tick loop: one tick captures every screen, OCRs each
// image, persists a CaptureRecord per screen (empty OCR output included),
// and upserts the non-empty ones into the vector index. A tick is never dropped or preempted by
// the next: onTick runs to completion (or the shutdown timeout) before
// the next ticker fire is serviced, mirroring heike's scheduler.
type Pipeline struct {
	cfg       Config
	store     *record.FileStore
	index     vectorindex.VectorStore
	embed     embedder.Embedder
	capturer  ScreenCapturer
	ocr       OCREngine
	metrics   metrics.Sink
	lock      *flock.Flock

	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	ticker  *time.Ticker
	running bool
	inTick  sync.WaitGroup
	stats   Stats
}

// New constructs a Pipeline. store, embed, capturer, and ocr are
// required; index may be nil (every upsert is then deferred to the
// pending queue); metrics may be nil (treated as a no-op sink).
func New(cfg Config, store *record.FileStore, index vectorindex.VectorStore, embed embedder.Embedder, capturer ScreenCapturer, ocr OCREngine, sink metrics.Sink) *Pipeline {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 60 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if sink == nil {
		sink = metrics.NoopSink{}
	}
	return &Pipeline{
		cfg:      cfg,
		store:    store,
		index:    index,
		embed:    embed,
		capturer: capturer,
		ocr:      ocr,
		metrics:  sink,
		stats:    Stats{State: StateIdle},
	}
}

// Start acquires the single-instance lock over the record directory and
// begins the tick loop. Returns memexerr KindUnavailable if another
// instance already holds the lock.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}

	lock := flock.New(filepath.Join(p.cfg.RecordDir, ".capture.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		p.mu.Unlock()
		return memexerr.Wrap(memexerr.KindIoFailure, "attempt capture lock", err)
	}
	if !locked {
		p.mu.Unlock()
		return memexerr.New(memexerr.KindUnavailable, "another memex-capture instance holds the record directory lock")
	}

	p.lock = lock
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.running = true
	p.ticker = time.NewTicker(p.cfg.TickInterval)
	p.mu.Unlock()

	// Drain any pending upserts left over from a prior run before the
	// first tick, so a crash between Persisting and Indexing is repaired
	// on the next startup rather than waiting for a full sync pass.
	p.drainPending(p.ctx)

	go p.run()
	log.Info().Dur("interval", p.cfg.TickInterval).Str("record_dir", p.cfg.RecordDir).Msg("capture pipeline started")
	return nil
}

// Stop halts the ticker and waits for any in-flight tick to finish, up to
// ShutdownTimeout, then releases the instance lock.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.ticker.Stop()
	p.cancel()
	lock := p.lock
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.inTick.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(p.cfg.ShutdownTimeout):
		log.Warn().Msg("capture pipeline shutdown timeout, stopping without waiting for in-flight tick")
	}

	if lock != nil {
		return lock.Unlock()
	}
	return nil
}

func (p *Pipeline) run() {
	for {
		select {
		case <-p.ticker.C:
			p.onTick(p.ctx)
		case <-p.ctx.Done():
			return
		}
	}
}

// onTick runs one full capture→OCR→persist→index cycle. It never runs
// concurrently with itself: the ticker is serviced synchronously from
// run's single goroutine, so overlapping ticks cannot occur even if a
// tick runs long (the next fire is simply delivered late — spec's
// "never dropped, never preempted" policy).
func (p *Pipeline) onTick(ctx context.Context) {
	p.inTick.Add(1)
	defer p.inTick.Done()

	start := time.Now()
	p.setState(StateCapturing)

	images, err := p.capturer.Capture(ctx)
	if err != nil {
		p.recordTickError(ctx, start, err)
		return
	}

	p.setState(StateOCR)
	texts, err := p.ocrAll(ctx, images)
	if err != nil {
		p.recordTickError(ctx, start, err)
		return
	}

	p.setState(StatePersisting)
	now := time.Now()
	var persisted []record.CaptureRecord
	for i, img := range images {
		text := texts[i]
		r := record.New(now, img.ScreenName, text, p.cfg.Source)
		// Every capture is persisted to the record store, including ones
		// with empty OCR output (text_length == 0) — only indexing is
		// conditioned on non-empty text.
		if err := p.store.Put(r); err != nil {
			observability.LoggerWithTrace(ctx).Error().Err(err).Str("screen", img.ScreenName).Msg("failed to persist capture record")
			p.metrics.IncCounter("capture_persist_errors_total", nil)
			continue
		}
		persisted = append(persisted, r)
	}

	p.setState(StateIndexing)
	var toIndex []record.CaptureRecord
	for _, r := range persisted {
		if !r.IsEmpty() {
			toIndex = append(toIndex, r)
		}
	}
	indexed, deferred := p.indexBatch(ctx, toIndex)

	p.mu.Lock()
	p.stats.State = StateIdle
	p.stats.LastTickAt = start
	p.stats.LastTickDuration = time.Since(start)
	p.stats.ScreensCaptured = len(images)
	p.stats.RecordsPersisted = len(persisted)
	p.stats.RecordsIndexed = indexed
	p.stats.RecordsDeferred = deferred
	p.stats.TotalTicks++
	p.mu.Unlock()

	p.metrics.ObserveHistogram("capture_tick_duration_seconds", time.Since(start).Seconds(), nil)
	for range persisted {
		p.metrics.IncCounter("capture_records_persisted_total", nil)
	}
}

// ocrAll runs OCR over every captured image concurrently; one screen's
// OCR failure does not abort the others (its text is recorded as empty:
// the screen is still persisted, but not indexed).
func (p *Pipeline) ocrAll(ctx context.Context, images []ScreenImage) ([]string, error) {
	texts := make([]string, len(images))
	g, gctx := errgroup.WithContext(ctx)
	for i, img := range images {
		i, img := i, img
		g.Go(func() error {
			text, err := p.ocr.Extract(gctx, img)
			if err != nil {
				observability.LoggerWithTrace(gctx).Warn().Err(err).Str("screen", img.ScreenName).Msg("ocr failed for screen")
				return nil
			}
			texts[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return texts, nil
}

// indexBatch embeds and upserts persisted records into the vector
// index. A failure for an individual record enqueues its id onto the
// pending-upsert queue instead of failing the tick (spec §4.3
// IndexingDeferred branch): indexing is best-effort per tick, repaired
// later by sync.
func (p *Pipeline) indexBatch(ctx context.Context, recs []record.CaptureRecord) (indexed, deferred int) {
	if len(recs) == 0 {
		return 0, 0
	}
	if p.index == nil {
		p.setState(StateIndexingDeferred)
		for _, r := range recs {
			p.enqueueDeferred(ctx, r.ID)
		}
		return 0, len(recs)
	}
	texts := make([]string, len(recs))
	for i, r := range recs {
		texts[i] = r.Text
	}
	vectors, err := p.embed.EmbedBatch(ctx, texts)
	if err != nil {
		p.setState(StateIndexingDeferred)
		for _, r := range recs {
			p.enqueueDeferred(ctx, r.ID)
		}
		observability.LoggerWithTrace(ctx).Error().Err(err).Int("count", len(recs)).Msg("embedding failed, deferring batch")
		return 0, len(recs)
	}
	for i, r := range recs {
		md := map[string]any{
			"screen_name":              r.ScreenName,
			vectorindex.TimestampField: r.TimestampMicros,
			"text_length":              r.TextLength,
			"word_count":               r.WordCount,
			"source":                   r.Source,
			"data_type":                r.DataType,
		}
		if err := p.index.Upsert(ctx, r.ID, vectors[i], md); err != nil {
			p.setState(StateIndexingDeferred)
			p.enqueueDeferred(ctx, r.ID)
			observability.LoggerWithTrace(ctx).Error().Err(err).Str("id", r.ID).Msg("vector upsert failed, deferring")
			deferred++
			continue
		}
		indexed++
	}
	return indexed, deferred
}

func (p *Pipeline) enqueueDeferred(ctx context.Context, id string) {
	if err := p.store.EnqueuePending(id); err != nil {
		observability.LoggerWithTrace(ctx).Error().Err(err).Str("id", id).Msg("failed to enqueue pending upsert")
	}
}

// drainPending retries any ids left in the pending-upsert queue by a
// prior run, re-reading each record and re-upserting it.
func (p *Pipeline) drainPending(ctx context.Context) {
	ids, err := p.store.DrainPending()
	if err != nil {
		observability.LoggerWithTrace(ctx).Error().Err(err).Msg("failed to read pending-upsert queue")
		return
	}
	if len(ids) == 0 {
		return
	}
	observability.LoggerWithTrace(ctx).Info().Int("count", len(ids)).Msg("draining pending upserts from prior run")

	var recs []record.CaptureRecord
	for _, id := range ids {
		pf, ok := record.ParseFilename(idToFilename(id))
		if !ok {
			continue
		}
		name := record.Filename(pf.Timestamp, pf.ScreenName, pf.Suffix, "json")
		r, err := p.store.ReadFile(name)
		if err != nil {
			observability.LoggerWithTrace(ctx).Error().Err(err).Str("id", id).Msg("pending record no longer readable, dropping")
			continue
		}
		recs = append(recs, r)
	}
	indexed, deferred := p.indexBatch(ctx, recs)
	observability.LoggerWithTrace(ctx).Info().Int("indexed", indexed).Int("deferred", deferred).Msg("pending-upsert drain complete")
}

// idToFilename recovers a file name from a record id; ids are always of
// the form "<timestamp_iso>_<screen_name>" with no extension.
func idToFilename(id string) string {
	return fmt.Sprintf("%s.json", id)
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.stats.State = s
	p.mu.Unlock()
}

func (p *Pipeline) recordTickError(ctx context.Context, start time.Time, err error) {
	p.mu.Lock()
	p.stats.State = StateIdle
	p.stats.TickErrors++
	p.stats.LastTickAt = start
	p.stats.LastTickDuration = time.Since(start)
	p.mu.Unlock()
	p.metrics.IncCounter("capture_tick_errors_total", nil)
	observability.LoggerWithTrace(ctx).Error().Err(err).Msg("capture tick failed")
}

// Stats returns a snapshot of the pipeline's most recent tick outcome.
func (p *Pipeline) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}
