// Package semantic owns all vector-store (Qdrant) operations: collection
// management, point upserts for the catalog ingestion path, and k-NN search
// for the query path.
package semantic

import (
	"context"
	"fmt"

	"github.com/ModaAI/moda-mvp/engine/domain"
	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// DefaultCollection is the collection name shared by the API server and
// the batch loader. Both must read and write the same collection or
// ingested products are invisible to queries.
const DefaultCollection = "moda_catalog"

// VectorStore is the sole owner of all Qdrant operations. Search is safe
// for concurrent use; Insert needs no ordering guarantee relative to
// concurrent searches.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
}

// New creates a VectorStore connected to Qdrant at the given gRPC address.
func New(addr string, collection string) (*VectorStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &VectorStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// Close closes the underlying gRPC connection.
func (v *VectorStore) Close() error {
	return v.conn.Close()
}

// EnsureCollection creates the collection if it doesn't exist. The cosine
// metric here is what the calibrator's score law is matched to.
func (v *VectorStore) EnsureCollection(ctx context.Context, dims int) error {
	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == v.collection {
			return nil
		}
	}

	_, err = v.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: v.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", v.collection, err)
	}
	return nil
}

// Insert stores one catalog record keyed by its product id. Re-inserting
// the same id overwrites the existing point (upsert semantics): the point
// id is derived deterministically from the product id, so the operation is
// idempotent rather than failing on duplicates.
func (v *VectorStore) Insert(ctx context.Context, id string, embedding []float32, record domain.ProductRecord) error {
	if len(embedding) != domain.EmbeddingDims {
		return fmt.Errorf("semantic: insert %s: vector has %d dims, want %d", id, len(embedding), domain.EmbeddingDims)
	}

	payload := encodePayload(map[string]any{
		"product_id":  record.ProductID,
		"title":       record.Title,
		"description": record.Description,
		"link":        record.Link,
		"video_url":   record.VideoURL,
	})

	wait := true
	_, err := v.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points: []*pb.PointStruct{{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(id)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: embedding},
				},
			},
			Payload: payload,
		}},
	})
	if err != nil {
		return fmt.Errorf("semantic: insert %s: %w", id, err)
	}
	return nil
}

// Search performs k-NN similarity search and returns hits in the store's
// own order (most similar first). The store may legally return fewer than
// topK hits, including zero. Callers must not re-sort.
func (v *VectorStore) Search(ctx context.Context, embedding []float32, topK int) ([]RawHit, error) {
	resp, err := v.points.Search(ctx, &pb.SearchPoints{
		CollectionName: v.collection,
		Vector:         embedding,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	hits := make([]RawHit, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		hits[i] = RawHit{
			ID:     r.GetId().GetUuid(),
			Score:  float64(r.GetScore()),
			Fields: decodePayload(r.GetPayload()),
		}
	}
	return hits, nil
}

// PointID derives the Qdrant point id for a product id. SHA1-based UUIDs
// are deterministic, which is what makes Insert idempotent per id.
func PointID(productID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(productID)).String()
}
