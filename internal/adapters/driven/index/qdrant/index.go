// Package qdrant provides a vector index adapter backed by a Qdrant collection.
package qdrant

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/custodia-labs/kb-cli/internal/core/domain"
	"github.com/custodia-labs/kb-cli/internal/core/ports/driven"
	"github.com/custodia-labs/kb-cli/internal/logger"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Default configuration values.
const (
	DefaultHost       = "localhost"
	DefaultPort       = 6334
	DefaultCollection = "knowledge-index"
)

// HNSW parameters matching the Azure AI Search profile.
const (
	hnswM         = 4
	hnswConstruct = 400
	hnswSearch    = 500
)

// Payload keys.
const (
	payloadDocumentID   = "document_id"
	payloadChunkID      = "chunk_id"
	payloadText         = "text"
	payloadSource       = "source"
	payloadPath         = "path"
	payloadDocumentType = "document_type"
	payloadStart        = "start_offset"
	payloadEnd          = "end_offset"
	payloadCreated      = "created"
	payloadModified     = "modified"
)

// Config holds configuration for the Qdrant index.
type Config struct {
	// Host is the Qdrant gRPC host (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// APIKey authenticates against Qdrant Cloud. Optional.
	APIKey string

	// UseTLS enables TLS on the gRPC connection.
	UseTLS bool

	// Collection is the collection name (default: knowledge-index).
	Collection string
}

// Index stores chunk records as points in a Qdrant collection.
type Index struct {
	client     *qdrant.Client
	collection string
	dimensions int
}

// NewIndex connects to Qdrant.
func NewIndex(cfg Config) (*Index, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connect to qdrant at %s:%d: %w", domain.ErrIndexService, cfg.Host, cfg.Port, err)
	}

	return &Index{
		client:     client,
		collection: cfg.Collection,
	}, nil
}

// EnsureIndex creates the collection with cosine distance and keyword
// indexes on the filterable payload fields.
func (x *Index) EnsureIndex(ctx context.Context, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("%w: dimensions must be positive", domain.ErrInvalidInput)
	}

	exists, err := x.client.CollectionExists(ctx, x.collection)
	if err != nil {
		return fmt.Errorf("%w: check collection: %w", domain.ErrIndexService, err)
	}

	if exists {
		info, err := x.client.GetCollectionInfo(ctx, x.collection)
		if err != nil {
			return fmt.Errorf("%w: get collection: %w", domain.ErrIndexService, err)
		}
		got := int(info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize())
		if got != 0 && got != dimensions {
			return fmt.Errorf("%w: collection %q has %d dimensions, configured %d",
				domain.ErrIndexService, x.collection, got, dimensions)
		}
		logger.Debug("Collection %q already exists", x.collection)
		x.dimensions = dimensions
		return nil
	}

	err = x.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: x.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
		HnswConfig: &qdrant.HnswConfigDiff{
			M:           qdrant.PtrOf(uint64(hnswM)),
			EfConstruct: qdrant.PtrOf(uint64(hnswConstruct)),
		},
	})
	if err != nil {
		return fmt.Errorf("%w: create collection: %w", domain.ErrIndexService, err)
	}

	for _, field := range []string{payloadDocumentID, payloadSource, payloadDocumentType} {
		_, err := x.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: x.collection,
			FieldName:      field,
			FieldType:      qdrant.PtrOf(qdrant.FieldType_FieldTypeKeyword),
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("%w: index payload field %s: %w", domain.ErrIndexService, field, err)
		}
	}

	logger.Info("Created collection %q (%d dimensions)", x.collection, dimensions)
	x.dimensions = dimensions
	return nil
}

// Upsert writes records as points and waits for the write to apply.
func (x *Index) Upsert(ctx context.Context, records []domain.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(records))
	for i := range records {
		rec := &records[i]
		if x.dimensions != 0 && len(rec.Embedding) != x.dimensions {
			return fmt.Errorf("%w: record %s has %d dimensions, collection has %d",
				domain.ErrIndexService, rec.ID, len(rec.Embedding), x.dimensions)
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(rec.ID),
			Vectors: qdrant.NewVectors(rec.Embedding...),
			Payload: qdrant.NewValueMap(toPayload(rec)),
		}
	}

	_, err := x.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: x.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("%w: upsert %d points: %w", domain.ErrIndexService, len(points), err)
	}
	return nil
}

// Search queries the nearest points. Qdrant applies the score threshold.
func (x *Index) Search(ctx context.Context, vector []float32, opts domain.SearchOptions) ([]domain.RetrievedChunk, error) {
	filter, err := Filter(opts.Filter)
	if err != nil {
		return nil, err
	}

	limit := uint64(5)
	if opts.TopK > 0 {
		limit = uint64(opts.TopK)
	}
	threshold := float32(opts.Threshold)

	points, err := x.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: x.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		ScoreThreshold: &threshold,
		Filter:         filter,
		Params:         &qdrant.SearchParams{HnswEf: qdrant.PtrOf(uint64(hnswSearch))},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: query: %w", domain.ErrIndexService, err)
	}

	hits := make([]domain.RetrievedChunk, 0, len(points))
	for _, p := range points {
		rec := fromPayload(p.GetPayload())
		rec.ID = p.GetId().GetUuid()
		hits = append(hits, domain.RetrievedChunk{Record: rec, Score: float64(p.GetScore())})
	}
	domain.SortByScore(hits)
	return hits, nil
}

// DeleteDocument removes every point of a document.
func (x *Index) DeleteDocument(ctx context.Context, documentID string) error {
	_, err := x.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: x.collection,
		Wait:           qdrant.PtrOf(true),
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(payloadDocumentID, documentID)},
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: delete document %s: %w", domain.ErrIndexService, documentID, err)
	}
	return nil
}

// DeleteRecords removes points by record ID.
func (x *Index) DeleteRecords(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	points := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		points[i] = qdrant.NewIDUUID(id)
	}
	_, err := x.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: x.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(points...),
	})
	if err != nil {
		return fmt.Errorf("%w: delete %d records: %w", domain.ErrIndexService, len(ids), err)
	}
	return nil
}

// Ping checks the server health endpoint.
func (x *Index) Ping(ctx context.Context) error {
	if _, err := x.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("%w: health check: %w", domain.ErrIndexService, err)
	}
	return nil
}

// Close closes the gRPC connection.
func (x *Index) Close() error {
	return x.client.Close()
}

// Filter converts equality filters into a Qdrant filter. Nil means no filter.
func Filter(filter map[string]string) (*qdrant.Filter, error) {
	if len(filter) == 0 {
		return nil, nil
	}
	conditions := make([]*qdrant.Condition, 0, len(filter))
	for field, value := range filter {
		if !domain.IsFilterable(field) {
			return nil, fmt.Errorf("%w: field %q is not filterable", domain.ErrInvalidInput, field)
		}
		conditions = append(conditions, qdrant.NewMatch(field, value))
	}
	return &qdrant.Filter{Must: conditions}, nil
}

func toPayload(rec *domain.IndexRecord) map[string]any {
	payload := map[string]any{
		payloadDocumentID:   rec.DocumentID,
		payloadChunkID:      int64(rec.Sequence),
		payloadText:         rec.Text,
		payloadSource:       rec.Source,
		payloadPath:         rec.Path,
		payloadDocumentType: rec.DocumentType,
		payloadStart:        int64(rec.Start),
		payloadEnd:          int64(rec.End),
	}
	if !rec.Created.IsZero() {
		payload[payloadCreated] = rec.Created.UTC().Format(time.RFC3339)
	}
	if !rec.Modified.IsZero() {
		payload[payloadModified] = rec.Modified.UTC().Format(time.RFC3339)
	}
	return payload
}

func fromPayload(payload map[string]*qdrant.Value) domain.IndexRecord {
	rec := domain.IndexRecord{
		DocumentID:   payload[payloadDocumentID].GetStringValue(),
		Sequence:     int(payload[payloadChunkID].GetIntegerValue()),
		Text:         payload[payloadText].GetStringValue(),
		Source:       payload[payloadSource].GetStringValue(),
		Path:         payload[payloadPath].GetStringValue(),
		DocumentType: payload[payloadDocumentType].GetStringValue(),
		Start:        int(payload[payloadStart].GetIntegerValue()),
		End:          int(payload[payloadEnd].GetIntegerValue()),
	}
	if t, err := time.Parse(time.RFC3339, payload[payloadCreated].GetStringValue()); err == nil {
		rec.Created = t
	}
	if t, err := time.Parse(time.RFC3339, payload[payloadModified].GetStringValue()); err == nil {
		rec.Modified = t
	}
	return rec
}
