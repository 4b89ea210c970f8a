package qdrant

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"secondbrain/internal/vector"
)

const payloadText = "text"

// Store is a vector.Backend over a Qdrant collection configured for cosine distance.
// Qdrant reports cosine similarity as the score; Nearest turns it back into a
// distance so the shared similarity conversion applies unchanged.
type Store struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	dimension   int
}

// Dial connects to Qdrant's gRPC port.
func Dial(host string, port int, collection string, dimension int) (*Store, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	s := NewStore(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), collection, dimension)
	s.conn = conn
	return s, nil
}

func NewStore(points pb.PointsClient, collections pb.CollectionsClient, collection string, dimension int) *Store {
	return &Store{
		points:      points,
		collections: collections,
		collection:  collection,
		dimension:   dimension,
	}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == s.collection {
			return nil
		}
	}

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{
			Params: &pb.VectorParams{
				Size:     uint64(s.dimension),
				Distance: pb.Distance_Cosine,
			},
		}},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", s.collection, err)
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, e vector.Entry) error {
	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: []*pb.PointStruct{{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: e.ID}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: e.Embedding}}},
			Payload: toPayload(e.Text, e.Metadata),
		}},
	})
	return err
}

func (s *Store) Nearest(ctx context.Context, embedding []float32, limit int) ([]vector.Hit, error) {
	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         embedding,
		Limit:          uint64(limit),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, err
	}

	hits := make([]vector.Hit, len(resp.GetResult()))
	for i, pt := range resp.GetResult() {
		text, meta := fromPayload(pt.GetPayload())
		hits[i] = vector.Hit{
			ID:       pt.GetId().GetUuid(),
			Text:     text,
			Metadata: meta,
			Distance: 1 - pt.GetScore(),
		}
	}
	return hits, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	exact := true
	resp, err := s.points.Count(ctx, &pb.CountPoints{CollectionName: s.collection, Exact: &exact})
	if err != nil {
		return 0, err
	}
	return int(resp.GetResult().GetCount()), nil
}

func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func toPayload(text string, m vector.Metadata) map[string]*pb.Value {
	str := func(v string) *pb.Value { return &pb.Value{Kind: &pb.Value_StringValue{StringValue: v}} }
	num := func(v int) *pb.Value { return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(v)}} }
	return map[string]*pb.Value{
		payloadText:    str(text),
		"source_url":   str(m.SourceURL),
		"title":        str(m.Title),
		"timestamp":    str(m.Timestamp),
		"document_id":  str(m.DocumentID),
		"chunk_index":  num(m.ChunkIndex),
		"total_chunks": num(m.TotalChunks),
	}
}

func fromPayload(p map[string]*pb.Value) (string, vector.Metadata) {
	return p[payloadText].GetStringValue(), vector.Metadata{
		SourceURL:   p["source_url"].GetStringValue(),
		Title:       p["title"].GetStringValue(),
		Timestamp:   p["timestamp"].GetStringValue(),
		DocumentID:  p["document_id"].GetStringValue(),
		ChunkIndex:  int(p["chunk_index"].GetIntegerValue()),
		TotalChunks: int(p["total_chunks"].GetIntegerValue()),
	}
}
