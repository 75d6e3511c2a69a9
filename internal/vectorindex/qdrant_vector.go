package vectorindex

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// Qdrant only allows UUIDs and positive integers as point IDs.
// So we generate a deterministic UUID based on the original ID.
// And store the original ID in the payload.
const payloadIDField = "_original_id"

type qdrantVector struct {
	client     *qdrant.Client
	collection string
	dimension  int
	metric     string // cosine|l2|euclidean|ip|dot|manhattan
}

// NewQdrantVector creates a new Qdrant-backed VectorStore.
// Note: The Go client uses Qdrant's gRPC API, which runs on port 6334 by default.
//
// Optionally, an API key can be provided as a query parameter: "http://localhost:6334?api_key=your_api_key"
func NewQdrantVector(dsn string, collection string, dimensions int, metric string) (VectorStore, error) {
	if collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	parsedURL, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse Qdrant DSN: %w", err)
	}
	host := parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsedURL.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("invalid port in Qdrant DSN: %w", err)
	}
	config := &qdrant.Config{
		Host: host,
		Port: portNum,
	}
	if parsedURL.Scheme == "https" {
		config.UseTLS = true
	}

	if apiKey := parsedURL.Query().Get("api_key"); apiKey != "" {
		config.APIKey = apiKey
	}
	client, err := qdrant.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("create Qdrant client: %w", err)
	}
	qv := &qdrantVector{
		client:     client,
		collection: collection,
		dimension:  dimensions,
		metric:     strings.ToLower(strings.TrimSpace(metric)),
	}
	ctx := context.Background()
	if err := qv.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure collection: %w", err)
	}
	return qv, nil
}

func (q *qdrantVector) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		return nil
	}
	var distance qdrant.Distance
	switch q.metric {
	case "l2", "euclidean":
		distance = qdrant.Distance_Euclid
	case "ip", "dot":
		distance = qdrant.Distance_Dot
	case "manhattan":
		distance = qdrant.Distance_Manhattan
	default: // cosine
		distance = qdrant.Distance_Cosine
	}
	vecSize := uint64(q.dimension)
	if q.dimension <= 0 {
		return fmt.Errorf("qdrant requires dimensions > 0")
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     vecSize,
			Distance: distance,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

// pointID maps a record id into a Qdrant-legal point id, tagging the
// payload with the original id when a translation was needed so reads
// can recover it.
func pointID(id string, metadata map[string]any) (*qdrant.PointId, map[string]any) {
	uuidStr := id
	if _, err := uuid.Parse(id); err != nil {
		uuidStr = uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
	}
	if uuidStr != id {
		md := make(map[string]any, len(metadata)+1)
		for k, v := range metadata {
			md[k] = v
		}
		md[payloadIDField] = id
		metadata = md
	}
	return qdrant.NewIDUUID(uuidStr), metadata
}

func (q *qdrantVector) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]any) error {
	pid, payloadMD := pointID(id, metadata)
	payload := qdrant.NewValueMap(payloadMD)
	vec := make([]float32, len(vector))
	copy(vec, vector)
	points := []*qdrant.PointStruct{
		{
			Id:      pid,
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: payload,
		},
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         points,
	})
	return err
}

func (q *qdrantVector) Delete(ctx context.Context, id string) error {
	pid, _ := pointID(id, nil)
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelector(pid),
	})
	return err
}

// buildFilter translates a Filter into Qdrant conditions: string equality
// predicates become Match conditions, the timestamp bounds become a
// single numeric Range condition on TimestampField.
func buildFilter(f Filter) *qdrant.Filter {
	if f.IsZero() {
		return nil
	}
	must := make([]*qdrant.Condition, 0, len(f.Eq)+1)
	for k, v := range f.Eq {
		must = append(must, qdrant.NewMatch(k, v))
	}
	if f.TimestampGTE != nil || f.TimestampLTE != nil {
		r := &qdrant.Range{}
		if f.TimestampGTE != nil {
			gte := float64(*f.TimestampGTE)
			r.Gte = &gte
		}
		if f.TimestampLTE != nil {
			lte := float64(*f.TimestampLTE)
			r.Lte = &lte
		}
		must = append(must, qdrant.NewRange(TimestampField, r))
	}
	return &qdrant.Filter{Must: must}
}

func (q *qdrantVector) SimilaritySearch(ctx context.Context, vector []float32, k int, filter Filter) ([]VectorResult, error) {
	if k <= 0 {
		k = 10
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	limit := uint64(k)
	searchResult, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		Filter:         buildFilter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}
	results := make([]VectorResult, 0, len(searchResult))
	for _, hit := range searchResult {
		id, metadata := decodePoint(hit.Id, hit.Payload)
		results = append(results, VectorResult{ID: id, Score: float64(hit.Score), Metadata: metadata})
	}
	return results, nil
}

func (q *qdrantVector) GetByIDs(ctx context.Context, ids []string) ([]VectorResult, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	pids := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pid, _ := pointID(id, nil)
		pids[i] = pid
	}
	points, err := q.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: q.collection,
		Ids:            pids,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}
	results := make([]VectorResult, 0, len(points))
	for _, p := range points {
		id, metadata := decodePoint(p.Id, p.Payload)
		results = append(results, VectorResult{ID: id, Metadata: metadata})
	}
	return results, nil
}

func (q *qdrantVector) Count(ctx context.Context) (int, error) {
	exact := true
	n, err := q.client.Count(ctx, &qdrant.CountPoints{CollectionName: q.collection, Exact: &exact})
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func decodePoint(rawID *qdrant.PointId, payload map[string]*qdrant.Value) (string, map[string]any) {
	uuidStr := rawID.GetUuid()
	if uuidStr == "" {
		uuidStr = rawID.String()
	}
	metadata := make(map[string]any, len(payload))
	var originalID string
	for k, v := range payload {
		if k == payloadIDField {
			originalID = v.GetStringValue()
			continue
		}
		metadata[k] = decodeValue(v)
	}
	id := originalID
	if id == "" {
		id = uuidStr
	}
	return id, metadata
}

// decodeValue recovers a Go value from a Qdrant payload Value. Falls back
// to the string branch for an unset/zero value since the client does not
// expose which oneof field is populated.
func decodeValue(v *qdrant.Value) any {
	switch {
	case v.GetIntegerValue() != 0:
		return v.GetIntegerValue()
	case v.GetDoubleValue() != 0:
		return v.GetDoubleValue()
	case v.GetBoolValue():
		return v.GetBoolValue()
	default:
		return v.GetStringValue()
	}
}

func (q *qdrantVector) Dimension() int { return q.dimension }

func (q *qdrantVector) Close() error {
	return q.client.Close()
}
