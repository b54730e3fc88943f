package analysis

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/qdrant/go-client/qdrant"
)

const DefaultCollection = "analyses"

type Match struct {
	ID    string
	Score float32
}

type SimilarityIndex interface {
	Upsert(ctx context.Context, id string, vector []float32) error
	Similar(ctx context.Context, id string, limit int) ([]Match, error)
}

// QdrantIndex stores one class histogram per analysis. Point ids are the
// analysis UUIDs.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	size       int
}

func NewQdrantIndex(client *qdrant.Client, collection string) *QdrantIndex {
	if collection == "" {
		collection = DefaultCollection
	}
	return &QdrantIndex{
		client:     client,
		collection: collection,
		size:       HistogramSize,
	}
}

func (q *QdrantIndex) EnsureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return errors.Wrapf(err, "check collection %s", q.collection)
	}
	if exists {
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.size),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	return errors.Wrapf(err, "create collection %s", q.collection)
}

func (q *QdrantIndex) Upsert(ctx context.Context, id string, vector []float32) error {
	if len(vector) != q.size {
		return errors.Newf("vector has %d dimensions, want %d", len(vector), q.size)
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewID(id),
				Vectors: qdrant.NewVectors(vector...),
			},
		},
	})
	return err
}

func (q *QdrantIndex) Similar(ctx context.Context, id string, limit int) ([]Match, error) {
	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryID(qdrant.NewID(id)),
		Limit:          qdrant.PtrOf(uint64(limit)),
	})
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		if r.Id == nil {
			continue
		}
		if pid := r.Id.GetUuid(); pid != "" && pid != id {
			matches = append(matches, Match{ID: pid, Score: r.Score})
		}
	}
	return matches, nil
}

func (q *QdrantIndex) Ping(ctx context.Context) error {
	_, err := q.client.ListCollections(ctx)
	return err
}
