package repository

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/m-mizutani/docent/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/qdrant/go-client/qdrant"
)

const qdrantTextKey = "text"

// Qdrant is a Repository backed by Qdrant. Each knowledge store is one collection.
type Qdrant struct {
	client *qdrant.Client
}

// NewQdrant connects to a Qdrant gRPC endpoint such as "http://localhost:6334"
func NewQdrant(rawURL, apiKey string) (*Qdrant, error) {
	if rawURL == "" {
		return nil, goerr.New("qdrant url is required")
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		rawURL = "http://" + rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse qdrant url", goerr.V("url", rawURL))
	}

	port := 6334
	if u.Port() != "" {
		p, err := strconv.Atoi(u.Port())
		if err != nil {
			return nil, goerr.Wrap(err, "invalid qdrant port", goerr.V("url", rawURL))
		}
		port = p
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   u.Hostname(),
		Port:   port,
		APIKey: apiKey,
		UseTLS: u.Scheme == "https",
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create qdrant client", goerr.V("url", rawURL))
	}

	return &Qdrant{client: client}, nil
}

func (q *Qdrant) CreateStore(ctx context.Context, id model.StoreID, cfg model.EmbeddingConfig) error {
	if cfg.Dimension <= 0 {
		return goerr.New("embedding dimension must be positive", goerr.V("dimension", cfg.Dimension))
	}

	exists, err := q.StoreExists(ctx, id)
	if err != nil {
		return err
	}
	if exists {
		return goerr.Wrap(ErrStoreExists, "failed to create store", goerr.V("store_id", id))
	}

	if err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: id.String(),
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(cfg.Dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	}); err != nil {
		return goerr.Wrap(err, "failed to create qdrant collection",
			goerr.V("store_id", id),
			goerr.V("embedding_model", cfg.Model))
	}
	return nil
}

func (q *Qdrant) StoreExists(ctx context.Context, id model.StoreID) (bool, error) {
	exists, err := q.client.CollectionExists(ctx, id.String())
	if err != nil {
		return false, goerr.Wrap(err, "failed to check qdrant collection", goerr.V("store_id", id))
	}
	return exists, nil
}

func (q *Qdrant) DeleteStore(ctx context.Context, id model.StoreID) error {
	if err := q.client.DeleteCollection(ctx, id.String()); err != nil {
		return goerr.Wrap(err, "failed to delete qdrant collection", goerr.V("store_id", id))
	}
	return nil
}

func (q *Qdrant) PutChunks(ctx context.Context, id model.StoreID, chunks []*model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for _, c := range chunks {
		payload := map[string]any{
			qdrantTextKey: c.Text,
			"chunk_index": int64(c.Index),
		}
		for k, v := range c.Metadata {
			payload[k] = v
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(c.ID),
			Vectors: qdrant.NewVectors(c.Vector...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	wait := true
	if _, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: id.String(),
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return goerr.Wrap(err, "failed to upsert qdrant points",
			goerr.V("store_id", id),
			goerr.V("count", len(points)))
	}
	return nil
}

func (q *Qdrant) Search(ctx context.Context, id model.StoreID, vector []float32, limit int) ([]*model.ScoredChunk, error) {
	limitUint64 := uint64(limit)
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: id.String(),
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limitUint64,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query qdrant", goerr.V("store_id", id))
	}

	results := make([]*model.ScoredChunk, 0, len(points))
	for _, point := range points {
		result := &model.ScoredChunk{
			Chunk: model.Chunk{
				ID:       point.GetId().GetUuid(),
				Metadata: make(map[string]string),
			},
			Score: point.Score,
		}

		for k, v := range point.Payload {
			switch k {
			case qdrantTextKey:
				result.Text = v.GetStringValue()
			case "chunk_index":
				result.Index = int(v.GetIntegerValue())
			default:
				if s := v.GetStringValue(); s != "" {
					result.Metadata[k] = s
				}
			}
		}
		results = append(results, result)
	}

	return results, nil
}

func (q *Qdrant) Ping(ctx context.Context) error {
	if _, err := q.client.HealthCheck(ctx); err != nil {
		return goerr.Wrap(err, "qdrant health check failed")
	}
	return nil
}

func (q *Qdrant) Close() error {
	return q.client.Close()
}
