package vectorindex

import (
	"context"
	"fmt"
	"strconv"

	"github.com/philippgille/chromem-go"

	"memex/internal/memexerr"
)

// chromemVector is the embedded, file-backed Vector Index
// backend: no external process required (spec §6.4 default: memory, but
// chromem is the spec's recommended durable local alternative).
//
// chromem's collection metadata is string-only, so numeric metadata
// (TimestampField) is stored as a decimal string and range filtering is
// applied as a post-filter over the candidate set chromem returns, since
// chromem's where clause only supports string equality.
type chromemVector struct {
	db         *chromem.DB
	collection string
	dimension  int
}

// NewChromemVector opens (creating if absent) a persistent chromem
// database rooted at dataDir and returns a VectorStore over collection.
func NewChromemVector(dataDir, collection string, dimension int) (VectorStore, error) {
	db, err := chromem.NewPersistentDB(dataDir, false)
	if err != nil {
		return nil, memexerr.Wrap(memexerr.KindIoFailure, "open chromem db", err)
	}
	// nil embedding func: embeddings are always supplied by the caller.
	if _, err := db.GetOrCreateCollection(collection, nil, nil); err != nil {
		return nil, memexerr.Wrap(memexerr.KindIoFailure, "create chromem collection", err)
	}
	return &chromemVector{db: db, collection: collection, dimension: dimension}, nil
}

func (c *chromemVector) col() *chromem.Collection {
	return c.db.GetCollection(c.collection, nil)
}

func (c *chromemVector) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]any) error {
	col := c.col()
	if col == nil {
		return memexerr.New(memexerr.KindUnavailable, "chromem collection not initialized")
	}
	doc := chromem.Document{
		ID:        id,
		Metadata:  encodeMetadata(metadata),
		Embedding: vector,
	}
	// AddDocuments upserts by id in chromem.
	return col.AddDocuments(ctx, []chromem.Document{doc}, 1)
}

func (c *chromemVector) Delete(ctx context.Context, id string) error {
	col := c.col()
	if col == nil {
		return nil
	}
	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return memexerr.Wrap(memexerr.KindIoFailure, "delete chromem document", err)
	}
	return nil
}

func (c *chromemVector) SimilaritySearch(ctx context.Context, vector []float32, k int, filter Filter) ([]VectorResult, error) {
	col := c.col()
	if col == nil {
		return nil, nil
	}
	if k <= 0 {
		k = 10
	}
	// Over-fetch so the timestamp post-filter still has enough candidates.
	nResults := k
	if !filter.IsZero() && (filter.TimestampGTE != nil || filter.TimestampLTE != nil) {
		nResults = k * 4
	}
	if max := col.Count(); nResults > max {
		nResults = max
	}
	if nResults <= 0 {
		return nil, nil
	}
	docs, err := col.QueryEmbedding(ctx, vector, nResults, filter.Eq, nil)
	if err != nil {
		return nil, memexerr.Wrap(memexerr.KindIoFailure, "chromem query", err)
	}
	results := make([]VectorResult, 0, len(docs))
	for _, doc := range docs {
		md := decodeMetadata(doc.Metadata)
		if !matchesTimestampRange(md, filter) {
			continue
		}
		results = append(results, VectorResult{ID: doc.ID, Score: float64(doc.Similarity), Metadata: md})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

func (c *chromemVector) GetByIDs(ctx context.Context, ids []string) ([]VectorResult, error) {
	col := c.col()
	if col == nil {
		return nil, nil
	}
	out := make([]VectorResult, 0, len(ids))
	for _, id := range ids {
		doc, err := col.GetByID(ctx, id)
		if err != nil {
			continue // absent ids are silently omitted
		}
		out = append(out, VectorResult{ID: doc.ID, Metadata: decodeMetadata(doc.Metadata)})
	}
	return out, nil
}

func (c *chromemVector) Count(ctx context.Context) (int, error) {
	col := c.col()
	if col == nil {
		return 0, nil
	}
	return col.Count(), nil
}

func (c *chromemVector) Dimension() int { return c.dimension }

func (c *chromemVector) Close() error { return nil }

func matchesTimestampRange(md map[string]any, f Filter) bool {
	if f.TimestampGTE == nil && f.TimestampLTE == nil {
		return true
	}
	ts, ok := toInt64(md[TimestampField])
	if !ok {
		return false
	}
	if f.TimestampGTE != nil && ts < *f.TimestampGTE {
		return false
	}
	if f.TimestampLTE != nil && ts > *f.TimestampLTE {
		return false
	}
	return true
}

func encodeMetadata(md map[string]any) map[string]string {
	out := make(map[string]string, len(md))
	for k, v := range md {
		switch n := v.(type) {
		case string:
			out[k] = n
		case int64:
			out[k] = strconv.FormatInt(n, 10)
		case int:
			out[k] = strconv.Itoa(n)
		case float64:
			out[k] = strconv.FormatFloat(n, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(n)
		default:
			out[k] = fmt.Sprintf("%v", n)
		}
	}
	return out
}

func decodeMetadata(md map[string]string) map[string]any {
	out := make(map[string]any, len(md))
	for k, v := range md {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			out[k] = n
			continue
		}
		out[k] = v
	}
	return out
}
