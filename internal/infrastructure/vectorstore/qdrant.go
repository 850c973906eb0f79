package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/knowwhyhq/knowwhy/internal/domain/entities"
	"github.com/knowwhyhq/knowwhy/pkg/config"
)

const requestTimeout = 30 * time.Second

// Embedder produces a vector for a text. Satisfied by the LLM client.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ScoredDecision is one semantic search hit
type ScoredDecision struct {
	DecisionID uuid.UUID
	Score      float32
	Title      string
	Source     string
}

// QdrantIndex maintains the semantic index of decisions in Qdrant over gRPC.
// The index is optional infrastructure: callers hold a nil *QdrantIndex when
// Qdrant is unavailable and fall back to keyword search.
type QdrantIndex struct {
	client     *qdrant.Client
	embedder   Embedder
	collection string
	vectorSize uint64
	logger     *zap.Logger
}

// NewQdrantIndex connects to Qdrant, verifies health and ensures the
// decisions collection exists.
func NewQdrantIndex(cfg *config.VectorConfig, embedder Embedder, logger *zap.Logger) (*QdrantIndex, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	qdrantConfig := &qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
		APIKey: cfg.APIKey,
	}
	if !cfg.UseTLS {
		qdrantConfig.GrpcOptions = append(qdrantConfig.GrpcOptions,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
	}

	client, err := qdrant.NewClient(qdrantConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	idx := &QdrantIndex{
		client:     client,
		embedder:   embedder,
		collection: cfg.Collection,
		vectorSize: cfg.VectorSize,
		logger:     logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("qdrant health check failed: %w", err)
	}

	if err := idx.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("qdrant connection established",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("collection", cfg.Collection),
	)

	return idx, nil
}

func (q *QdrantIndex) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		return nil
	}

	if err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     q.vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	}); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// UpsertDecision embeds the decision text and stores it with the payload the
// search filter needs.
func (q *QdrantIndex) UpsertDecision(ctx context.Context, decision *entities.Decision) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	vector, err := q.embedder.Embed(ctx, decision.SearchText())
	if err != nil {
		return fmt.Errorf("failed to embed decision: %w", err)
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(decision.ID.String()),
		Vectors: qdrant.NewVectors(vector...),
		Payload: qdrant.NewValueMap(map[string]any{
			"user_id": decision.UserID.String(),
			"title":   decision.Title,
			"source":  string(decision.Source),
		}),
	}

	if _, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         []*qdrant.PointStruct{point},
	}); err != nil {
		return fmt.Errorf("failed to upsert point: %w", err)
	}
	return nil
}

// Search embeds the query and returns the user's closest decisions
func (q *QdrantIndex) Search(ctx context.Context, userID uuid.UUID, query string, limit uint64) ([]ScoredDecision, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	vector, err := q.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	if limit == 0 || limit > 50 {
		limit = 10
	}

	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(limit),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("user_id", userID.String()),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}

	hits := make([]ScoredDecision, 0, len(results))
	for _, result := range results {
		id, err := uuid.Parse(result.GetId().GetUuid())
		if err != nil {
			q.logger.Warn("skipping point with non-uuid id", zap.String("id", result.GetId().String()))
			continue
		}
		hit := ScoredDecision{
			DecisionID: id,
			Score:      result.GetScore(),
		}
		if payload := result.GetPayload(); payload != nil {
			if v, ok := payload["title"]; ok {
				hit.Title = v.GetStringValue()
			}
			if v, ok := payload["source"]; ok {
				hit.Source = v.GetStringValue()
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// DeleteDecision removes a decision from the index
func (q *QdrantIndex) DeleteDecision(ctx context.Context, decisionID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	if _, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{
					Ids: []*qdrant.PointId{qdrant.NewIDUUID(decisionID.String())},
				},
			},
		},
	}); err != nil {
		return fmt.Errorf("failed to delete point: %w", err)
	}
	return nil
}

// Close closes the client connection
func (q *QdrantIndex) Close() error {
	if q.client != nil {
		return q.client.Close()
	}
	return nil
}
