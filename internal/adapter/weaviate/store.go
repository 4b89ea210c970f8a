package weaviate

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"

	"secondbrain/internal/vector"
)

// Store is a vector.Backend over a Weaviate class using cosine distance.
type Store struct {
	client *weaviate.Client
	schema SchemaClient
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client, schema: NewClientAdapter(client)}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	return EnsureSchema(ctx, s.schema)
}

func (s *Store) Insert(ctx context.Context, e vector.Entry) error {
	_, err := s.client.Data().Creator().
		WithClassName(ClassName).
		WithID(e.ID).
		WithProperties(map[string]interface{}{
			"text":        e.Text,
			"sourceUrl":   e.Metadata.SourceURL,
			"title":       e.Metadata.Title,
			"timestamp":   e.Metadata.Timestamp,
			"documentId":  e.Metadata.DocumentID,
			"chunkIndex":  e.Metadata.ChunkIndex,
			"totalChunks": e.Metadata.TotalChunks,
		}).
		WithVector(e.Embedding).
		Do(ctx)
	return err
}

func (s *Store) Nearest(ctx context.Context, embedding []float32, limit int) ([]vector.Hit, error) {
	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(embedding)

	fields := []graphql.Field{
		{Name: "text"},
		{Name: "sourceUrl"},
		{Name: "title"},
		{Name: "timestamp"},
		{Name: "documentId"},
		{Name: "chunkIndex"},
		{Name: "totalChunks"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "distance"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(ClassName).
		WithNearVector(nearVector).
		WithLimit(limit).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	var hits []vector.Hit
	data, ok := res.Data["Get"].(map[string]interface{})
	if !ok {
		return hits, nil
	}
	objects, ok := data[ClassName].([]interface{})
	if !ok {
		return hits, nil
	}

	for _, o := range objects {
		props, ok := o.(map[string]interface{})
		if !ok {
			continue
		}
		hit := vector.Hit{
			Text: stringProp(props, "text"),
			Metadata: vector.Metadata{
				SourceURL:   stringProp(props, "sourceUrl"),
				Title:       stringProp(props, "title"),
				Timestamp:   stringProp(props, "timestamp"),
				DocumentID:  stringProp(props, "documentId"),
				ChunkIndex:  intProp(props, "chunkIndex"),
				TotalChunks: intProp(props, "totalChunks"),
			},
			Distance: 1,
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			hit.ID = stringProp(additional, "id")
			if d, ok := additional["distance"].(float64); ok {
				hit.Distance = float32(d)
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	res, err := s.client.GraphQL().Aggregate().
		WithClassName(ClassName).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %v", res.Errors)
	}

	data, ok := res.Data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	groups, ok := data[ClassName].([]interface{})
	if !ok || len(groups) == 0 {
		return 0, nil
	}
	group, ok := groups[0].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	meta, ok := group["meta"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	return intProp(meta, "count"), nil
}

func stringProp(m map[string]interface{}, key string) string {
	v, _ := m[key].(string)
	return v
}

// intProp reads a JSON number, which the client decodes as float64.
func intProp(m map[string]interface{}, key string) int {
	if v, ok := m[key].(float64); ok {
		return int(v)
	}
	return 0
}
