// Package qdrant provides a VectorBackend on a Qdrant server over gRPC. It
// is the approximate-nearest-neighbor extension point behind the semantic
// store contract, for deployments whose memory volume outgrows the embedded
// full-scan backend.
package qdrant

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/mnemohq/mnemo/memory"
)

// Config holds connection settings for a Qdrant instance.
type Config struct {
	Host       string
	Port       int
	Collection string
	// Dimension is the embedding size the collection is created with.
	Dimension uint64
}

// Backend wraps gRPC connections to Qdrant's collections and points
// services.
type Backend struct {
	conn        *grpc.ClientConn
	collections pb.CollectionsClient
	points      pb.PointsClient
	collection  string
}

// New dials the Qdrant gRPC endpoint and ensures the configured collection
// exists with cosine distance.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Collection == "" {
		cfg.Collection = "memories"
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect %s: %w", addr, err)
	}
	b := &Backend{
		conn:        conn,
		collections: pb.NewCollectionsClient(conn),
		points:      pb.NewPointsClient(conn),
		collection:  cfg.Collection,
	}
	if err := b.ensureCollection(ctx, cfg.Dimension); err != nil {
		conn.Close()
		return nil, err
	}
	return b, nil
}

// ensureCollection creates the collection if it does not already exist.
func (b *Backend) ensureCollection(ctx context.Context, dimension uint64) error {
	_, err := b.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: b.collection})
	if err == nil {
		return nil
	}
	_, err = b.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: b.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     dimension,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", b.collection, err)
	}
	return nil
}

// Insert upserts a memory as a single point, flattening its fields into the
// string payload.
func (b *Backend) Insert(ctx context.Context, mem memory.Memory) error {
	payload := map[string]*pb.Value{
		"content":    stringValue(mem.Content),
		"category":   stringValue(string(mem.Category)),
		"created_at": stringValue(mem.CreatedAt.Format(time.RFC3339Nano)),
		"confidence": stringValue(strconv.FormatFloat(mem.Confidence, 'f', -1, 64)),
	}
	for k, v := range mem.Metadata {
		payload["meta_"+k] = stringValue(v)
	}

	_, err := b.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: b.collection,
		Points: []*pb.PointStruct{
			{
				Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: mem.ID}},
				Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: mem.Embedding}}},
				Payload: payload,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("upsert %s: %w", mem.ID, err)
	}
	return nil
}

// Query performs a nearest-neighbor search. Qdrant's cosine score is the
// similarity directly, so no post-processing is needed.
func (b *Backend) Query(ctx context.Context, embedding []float32, limit int, category memory.Category) ([]memory.Hit, error) {
	req := &pb.SearchPoints{
		CollectionName: b.collection,
		Vector:         embedding,
		Limit:          uint64(limit),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		WithVectors:    &pb.WithVectorsSelector{SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: true}},
	}
	if category != "" {
		req.Filter = &pb.Filter{
			Must: []*pb.Condition{
				{
					ConditionOneOf: &pb.Condition_Field{
						Field: &pb.FieldCondition{
							Key:   "category",
							Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: string(category)}},
						},
					},
				},
			},
		}
	}

	resp, err := b.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", b.collection, err)
	}

	hits := make([]memory.Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		mem := decodePayload(r.Id.GetUuid(), r.Payload)
		mem.Embedding = r.GetVectors().GetVector().GetData()
		hits = append(hits, memory.Hit{Memory: mem, Similarity: float64(r.Score)})
	}
	return hits, nil
}

// Get retrieves a single point by ID.
func (b *Backend) Get(ctx context.Context, id string) (memory.Memory, error) {
	resp, err := b.points.Get(ctx, &pb.GetPoints{
		CollectionName: b.collection,
		Ids:            []*pb.PointId{{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}},
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		WithVectors:    &pb.WithVectorsSelector{SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: true}},
	})
	if err != nil {
		return memory.Memory{}, fmt.Errorf("get %s: %w", id, err)
	}
	if len(resp.Result) == 0 {
		return memory.Memory{}, &memory.NotFoundError{ID: id}
	}
	point := resp.Result[0]
	mem := decodePayload(id, point.Payload)
	mem.Embedding = point.GetVectors().GetVector().GetData()
	return mem, nil
}

// Delete removes a point permanently.
func (b *Backend) Delete(ctx context.Context, id string) error {
	_, err := b.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: b.collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{
					Ids: []*pb.PointId{{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

// Close tears down the underlying gRPC connection.
func (b *Backend) Close() error {
	return b.conn.Close()
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

// decodePayload rebuilds a memory from the flattened string payload.
func decodePayload(id string, payload map[string]*pb.Value) memory.Memory {
	get := func(key string) string {
		if v, ok := payload[key]; ok {
			if sv, ok := v.Kind.(*pb.Value_StringValue); ok {
				return sv.StringValue
			}
		}
		return ""
	}

	createdAt, _ := time.Parse(time.RFC3339Nano, get("created_at"))
	confidence, _ := strconv.ParseFloat(get("confidence"), 64)

	var metadata map[string]string
	for k, v := range payload {
		if !strings.HasPrefix(k, "meta_") {
			continue
		}
		if sv, ok := v.Kind.(*pb.Value_StringValue); ok {
			if metadata == nil {
				metadata = make(map[string]string)
			}
			metadata[strings.TrimPrefix(k, "meta_")] = sv.StringValue
		}
	}

	return memory.Memory{
		ID:         id,
		Content:    get("content"),
		Category:   memory.Category(get("category")),
		CreatedAt:  createdAt,
		Metadata:   metadata,
		Confidence: confidence,
	}
}
