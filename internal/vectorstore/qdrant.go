package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"docuchat/internal/contextutil"
)

// payloadChunkID is the payload field carrying the engine's chunk id.
// Qdrant point ids must be UUIDs or integers, so the engine's
// "{source}_{uuid}" ids are mapped to deterministic UUIDs and the real id
// travels in the payload.
const payloadChunkID = "chunk_id"

// Qdrant implements Index against a Qdrant server. Save and Load are
// no-ops: the server is durable on its own, so the local snapshot
// directory only carries the document store.
type Qdrant struct {
	client     *qdrant.Client
	collection string
	vectorSize int
}

// NewQdrant creates a Qdrant-backed index. urlStr is the server's HTTP URL
// (e.g. "http://localhost:6333"); the gRPC port is derived from it.
func NewQdrant(urlStr, collection string, vectorSize int) (*Qdrant, error) {
	host, port, err := grpcAddr(urlStr)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &Qdrant{client: client, collection: collection, vectorSize: vectorSize}, nil
}

// grpcAddr derives the gRPC host and port from the server's HTTP URL.
// The gRPC port is the HTTP port plus one, 6334 when no port is given.
func grpcAddr(urlStr string) (string, int, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := 6334
	if parsed.Port() != "" {
		if httpPort, err := strconv.Atoi(parsed.Port()); err == nil {
			port = httpPort + 1
		}
	}
	return host, port, nil
}

// pointID derives the deterministic Qdrant point UUID for a chunk id.
func pointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(chunkID)).String()
}

// EnsureCollection creates the collection if missing and validates its
// vector size if present.
func (q *Qdrant) EnsureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if !exists {
		return q.createCollection(ctx)
	}

	info, err := q.client.GetCollectionInfo(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("failed to get collection info: %w", err)
	}
	if config := info.GetConfig(); config != nil {
		if params := config.GetParams().GetVectorsConfig().GetParams(); params != nil {
			if int(params.GetSize()) != q.vectorSize {
				return fmt.Errorf("collection vector size mismatch: expected %d, got %d", q.vectorSize, params.GetSize())
			}
		}
	}
	return nil
}

func (q *Qdrant) createCollection(ctx context.Context) error {
	err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.vectorSize),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// Insert upserts points into the collection.
func (q *Qdrant) Insert(ctx context.Context, points []Point) error {
	logger := contextutil.LoggerFromContext(ctx)
	if len(points) == 0 {
		return nil
	}

	qdrantPoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		if len(p.Vec) != q.vectorSize {
			return fmt.Errorf("%w: got %d, collection has %d", ErrDimensionMismatch, len(p.Vec), q.vectorSize)
		}
		qdrantPoints = append(qdrantPoints, &qdrant.PointStruct{
			Id:      qdrant.NewID(pointID(p.ID)),
			Vectors: qdrant.NewVectors(p.Vec...),
			Payload: qdrant.NewValueMap(map[string]any{payloadChunkID: p.ID}),
		})
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         qdrantPoints,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to upsert points", "collection", q.collection, "count", len(points), "error", err)
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

// Search returns the k nearest points by the collection's cosine metric.
func (q *Qdrant) Search(ctx context.Context, query []float32, k int) ([]Match, error) {
	logger := contextutil.LoggerFromContext(ctx)
	if k <= 0 {
		return nil, nil
	}
	if len(query) != q.vectorSize {
		return nil, fmt.Errorf("%w: query has %d, collection has %d", ErrDimensionMismatch, len(query), q.vectorSize)
	}

	limit := uint64(k)
	scored, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to search points", "collection", q.collection, "k", k, "error", err)
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	matches := make([]Match, 0, len(scored))
	for _, result := range scored {
		chunkID := ""
		if result.Payload != nil {
			if v, ok := result.Payload[payloadChunkID]; ok {
				chunkID = v.GetStringValue()
			}
		}
		if chunkID == "" {
			logger.WarnContext(ctx, "point missing chunk_id payload", "point", result.GetId().GetUuid())
			continue
		}
		matches = append(matches, Match{ID: chunkID, Score: result.GetScore()})
	}
	return matches, nil
}

// Delete removes points by chunk id.
func (q *Qdrant) Delete(ctx context.Context, ids []string) error {
	logger := contextutil.LoggerFromContext(ctx)
	if len(ids) == 0 {
		return nil
	}

	qdrantIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		qdrantIDs = append(qdrantIDs, qdrant.NewID(pointID(id)))
	}

	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelector(qdrantIDs...),
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to delete points", "collection", q.collection, "count", len(ids), "error", err)
		return fmt.Errorf("failed to delete points: %w", err)
	}
	return nil
}

// Clear drops and recreates the collection.
func (q *Qdrant) Clear(ctx context.Context) error {
	if err := q.client.DeleteCollection(ctx, q.collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return q.createCollection(ctx)
}

// Save is a no-op: the Qdrant server owns durability.
func (q *Qdrant) Save(string) error { return nil }

// Load is a no-op: the collection is already live on the server.
func (q *Qdrant) Load(string) error { return nil }
