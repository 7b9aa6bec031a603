// Package qdrantstore implements capability.VectorStore against a Qdrant
// collection per namespace, scoping every query to an owner via a payload
// filter on the "owner" field.
package qdrantstore

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/dataloom/analystrt/pkg/capability"
)

// Config configures the connection to a Qdrant instance.
type Config struct {
	Host   string
	Port   int // gRPC port, default 6334
	APIKey string
	UseTLS bool
}

// Store is a capability.VectorStore backed by Qdrant.
type Store struct {
	client *qdrant.Client
}

// New dials a Qdrant instance and returns a ready Store.
func New(cfg Config) (*Store, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connect qdrant at %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &Store{client: client}, nil
}

// Close releases the underlying Qdrant connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// EnsureCollection creates namespace as a collection of the given vector
// dimension if it doesn't already exist.
func (s *Store) EnsureCollection(ctx context.Context, namespace string, dim int) error {
	exists, err := s.client.CollectionExists(ctx, namespace)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", namespace, err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: namespace,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", namespace, err)
	}
	return nil
}

// Upsert stores one embedded chunk under id, tagging its payload with owner
// for later scoped search.
func (s *Store) Upsert(ctx context.Context, owner, namespace, id string, vector []float32, payload map[string]any) error {
	merged := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		merged[k] = v
	}
	merged["owner"] = owner

	qpayload := make(map[string]*qdrant.Value, len(merged))
	for k, v := range merged {
		val, err := qdrant.NewValue(v)
		if err != nil {
			return fmt.Errorf("encode payload field %s: %w", k, err)
		}
		qpayload[k] = val
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: namespace,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewID(id),
			Vectors: qdrant.NewVectors(vector...),
			Payload: qpayload,
		}},
	})
	if err != nil {
		return fmt.Errorf("upsert point %s into %s: %w", id, namespace, err)
	}
	return nil
}

// SimilaritySearch implements capability.VectorStore.
func (s *Store) SimilaritySearch(ctx context.Context, owner, namespace string, vector []float32, k int) ([]capability.VectorMatch, error) {
	req := &qdrant.SearchPoints{
		CollectionName: namespace,
		Vector:         vector,
		Limit:          uint64(k),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{ownerCondition(owner)},
		},
	}

	result, err := s.client.GetPointsClient().Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("similarity search in %s: %w", namespace, err)
	}

	matches := make([]capability.VectorMatch, 0, len(result.Result))
	for _, p := range result.Result {
		matches = append(matches, capability.VectorMatch{
			ID:      pointIDString(p.Id),
			Score:   p.Score,
			Payload: payloadToMap(p.Payload),
		})
	}
	return matches, nil
}

func ownerCondition(owner string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: "owner",
				Match: &qdrant.Match{
					MatchValue: &qdrant.Match_Keyword{Keyword: owner},
				},
			},
		},
	}
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil || id.PointIdOptions == nil {
		return ""
	}
	switch v := id.PointIdOptions.(type) {
	case *qdrant.PointId_Uuid:
		return v.Uuid
	case *qdrant.PointId_Num:
		return fmt.Sprintf("%d", v.Num)
	default:
		return ""
	}
}

func payloadToMap(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for key, value := range payload {
		if value == nil {
			continue
		}
		switch v := value.Kind.(type) {
		case *qdrant.Value_StringValue:
			out[key] = v.StringValue
		case *qdrant.Value_IntegerValue:
			out[key] = v.IntegerValue
		case *qdrant.Value_DoubleValue:
			out[key] = v.DoubleValue
		case *qdrant.Value_BoolValue:
			out[key] = v.BoolValue
		default:
			out[key] = value
		}
	}
	return out
}
