package index

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/donovan0902/project-hunt/internal/embedder"
)

// QdrantConfig holds connection settings for a Qdrant server (gRPC).
type QdrantConfig struct {
	Host           string `koanf:"host"`
	Port           int    `koanf:"port"`
	UseTLS         bool   `koanf:"use_tls"`
	APIKey         string `koanf:"api_key"`
	MaxMessageSize int    `koanf:"max_message_size"`
}

// payloadKey holds the original key; point ids must be UUIDs or integers.
const payloadKey = "key"

// QdrantVectorIndex stores vectors in Qdrant. Each namespace is a collection
// created on first write with cosine distance.
type QdrantVectorIndex struct {
	client   *qdrant.Client
	embedder embedder.Embedder

	collections sync.Map // namespace -> struct{}, known to exist
}

// NewQdrantVectorIndex connects to Qdrant and checks that it is reachable.
func NewQdrantVectorIndex(ctx context.Context, cfg QdrantConfig, emb embedder.Embedder) (*QdrantVectorIndex, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.MaxMessageSize == 0 {
		cfg.MaxMessageSize = 50 * 1024 * 1024
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
		APIKey: cfg.APIKey,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
				grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.HealthCheck(hctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("qdrant health check: %w", err)
	}

	return &QdrantVectorIndex{client: client, embedder: emb}, nil
}

// pointID maps a key to a Qdrant point id. UUID keys are used as-is, other
// keys get a stable name-based UUID.
func pointID(key string) *qdrant.PointId {
	if id, err := uuid.Parse(key); err == nil {
		return qdrant.NewIDUUID(id.String())
	}
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String())
}

func (x *QdrantVectorIndex) collectionExists(ctx context.Context, namespace string) (bool, error) {
	if _, ok := x.collections.Load(namespace); ok {
		return true, nil
	}
	info, err := x.client.GetCollectionInfo(ctx, namespace)
	if err != nil {
		if st, ok := status.FromError(err); ok && st.Code() == grpccodes.NotFound {
			return false, nil
		}
		return false, fmt.Errorf("check collection %s: %w", namespace, err)
	}
	if info == nil {
		return false, nil
	}
	x.collections.Store(namespace, struct{}{})
	return true, nil
}

func (x *QdrantVectorIndex) ensureCollection(ctx context.Context, namespace string, dimension int) error {
	exists, err := x.collectionExists(ctx, namespace)
	if err != nil || exists {
		return err
	}

	err = x.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: namespace,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		// lost a creation race with another writer
		if st, ok := status.FromError(err); ok && st.Code() == grpccodes.AlreadyExists {
			x.collections.Store(namespace, struct{}{})
			return nil
		}
		return fmt.Errorf("create collection %s: %w", namespace, err)
	}
	x.collections.Store(namespace, struct{}{})
	return nil
}

func (x *QdrantVectorIndex) Add(ctx context.Context, namespace, key, text string) (string, error) {
	if err := validateKey(namespace, key); err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: text is empty", ErrInvalidArgument)
	}

	emb, err := x.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
	if err != nil {
		return "", fmt.Errorf("embed %s: %w", key, err)
	}
	if err := x.ensureCollection(ctx, namespace, len(emb.Vector)); err != nil {
		return "", err
	}

	_, err = x.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: namespace,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id:      pointID(key),
			Vectors: qdrant.NewVectors(emb.Vector...),
			Payload: map[string]*qdrant.Value{
				payloadKey: {Kind: &qdrant.Value_StringValue{StringValue: key}},
				"model":    {Kind: &qdrant.Value_StringValue{StringValue: emb.Model}},
			},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("upsert point %s: %w", key, err)
	}
	return key, nil
}

func (x *QdrantVectorIndex) Search(ctx context.Context, namespace, text string, limit int, minScore float32) ([]VectorHit, error) {
	if limit <= 0 || strings.TrimSpace(text) == "" {
		return []VectorHit{}, nil
	}

	exists, err := x.collectionExists(ctx, namespace)
	if err != nil {
		return nil, err
	}
	if !exists {
		return []VectorHit{}, nil
	}

	emb, err := x.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	points, err := x.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: namespace,
		Query:          qdrant.NewQuery(emb.Vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		ScoreThreshold: qdrant.PtrOf(minScore),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query collection %s: %w", namespace, err)
	}

	hits := make([]VectorHit, 0, len(points))
	for _, p := range points {
		key := p.GetPayload()[payloadKey].GetStringValue()
		if key == "" {
			key = p.GetId().GetUuid()
		}
		hits = append(hits, VectorHit{Key: key, Score: p.GetScore()})
	}
	return hits, nil
}

func (x *QdrantVectorIndex) Delete(ctx context.Context, namespace, key string) error {
	if err := validateKey(namespace, key); err != nil {
		return err
	}

	exists, err := x.collectionExists(ctx, namespace)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	_, err = x.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: namespace,
		Wait:           qdrant.PtrOf(true),
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: []*qdrant.PointId{pointID(key)}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("delete point %s: %w", key, err)
	}
	return nil
}

// Close closes the gRPC connection.
func (x *QdrantVectorIndex) Close() error {
	return x.client.Close()
}
