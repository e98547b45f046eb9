// Package azuresearch provides a vector index adapter for Azure AI Search
// using its REST API.
package azuresearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/custodia-labs/kb-cli/internal/core/domain"
	"github.com/custodia-labs/kb-cli/internal/core/ports/driven"
	"github.com/custodia-labs/kb-cli/internal/logger"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Default configuration values.
const (
	DefaultAPIVersion = "2023-11-01"
	DefaultIndexName  = "knowledge-index"
	DefaultBatchSize  = 100
	DefaultTimeout    = 60 * time.Second
)

// pageSize is the largest page the service returns for a search.
const pageSize = 1000

// errBodyLimit caps how much of an error response is kept in messages.
const errBodyLimit = 512

// Config holds configuration for the Azure AI Search index.
type Config struct {
	// Endpoint is the search service URL (required).
	Endpoint string

	// APIKey is the admin key (required).
	APIKey string

	// IndexName is the index to use (default: knowledge-index).
	IndexName string

	// APIVersion is the REST API version (default: 2023-11-01).
	APIVersion string

	// BatchSize is the maximum number of actions per indexing request (default: 100).
	BatchSize int

	// Timeout is the request timeout (default: 60s).
	Timeout time.Duration
}

// Index stores chunk records in an Azure AI Search index.
type Index struct {
	client     *http.Client
	endpoint   string
	apiKey     string
	name       string
	apiVersion string
	batchSize  int
	dimensions int
}

// document is the wire form of an index record.
type document struct {
	Action       string     `json:"@search.action,omitempty"`
	Score        float64    `json:"@search.score,omitempty"`
	ID           string     `json:"id"`
	DocumentID   string     `json:"document_id,omitempty"`
	ChunkID      int        `json:"chunk_id"`
	Text         string     `json:"text,omitempty"`
	Source       string     `json:"source,omitempty"`
	Path         string     `json:"path,omitempty"`
	DocumentType string     `json:"document_type,omitempty"`
	StartOffset  int        `json:"start_offset"`
	EndOffset    int        `json:"end_offset"`
	Created      *time.Time `json:"created,omitempty"`
	Modified     *time.Time `json:"modified,omitempty"`
	Embedding    []float32  `json:"embedding,omitempty"`
}

type deleteAction struct {
	Action string `json:"@search.action"`
	ID     string `json:"id"`
}

type indexBatch struct {
	Value any `json:"value"`
}

type indexResult struct {
	Key          string `json:"key"`
	Status       bool   `json:"status"`
	ErrorMessage string `json:"errorMessage"`
	StatusCode   int    `json:"statusCode"`
}

type indexResponse struct {
	Value []indexResult `json:"value"`
}

type vectorQuery struct {
	Kind   string    `json:"kind"`
	Vector []float32 `json:"vector"`
	Fields string    `json:"fields"`
	K      int       `json:"k"`
}

type searchRequest struct {
	Search        string        `json:"search,omitempty"`
	Filter        string        `json:"filter,omitempty"`
	Select        string        `json:"select"`
	Top           int           `json:"top"`
	Skip          int           `json:"skip,omitempty"`
	VectorQueries []vectorQuery `json:"vectorQueries,omitempty"`
}

type searchResponse struct {
	Value []document `json:"value"`
}

// NewIndex creates a new Azure AI Search index adapter.
func NewIndex(cfg Config) (*Index, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: azure search endpoint is required", domain.ErrConfig)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: azure search API key is required", domain.ErrConfig)
	}
	if cfg.IndexName == "" {
		cfg.IndexName = DefaultIndexName
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Index{
		client:     &http.Client{Timeout: cfg.Timeout},
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		name:       cfg.IndexName,
		apiVersion: cfg.APIVersion,
		batchSize:  cfg.BatchSize,
	}, nil
}

// Name returns the index name.
func (x *Index) Name() string {
	return x.name
}

// EnsureIndex creates the index when it does not exist. An existing index
// with a different vector size is an error.
func (x *Index) EnsureIndex(ctx context.Context, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("%w: dimensions must be positive", domain.ErrInvalidInput)
	}

	var existing indexDefinition
	status, err := x.do(ctx, http.MethodGet, x.indexPath(""), nil, &existing)
	switch {
	case err == nil:
		got := existing.vectorDimensions()
		if got != 0 && got != dimensions {
			return fmt.Errorf("%w: index %q has %d dimensions, configured %d",
				domain.ErrIndexService, x.name, got, dimensions)
		}
		logger.Debug("Index %q already exists", x.name)
		x.dimensions = dimensions
		return nil
	case status != http.StatusNotFound:
		return err
	}

	if _, err := x.do(ctx, http.MethodPut, x.indexPath(""), newIndexDefinition(x.name, dimensions), nil); err != nil {
		return err
	}
	logger.Info("Created index %q (%d dimensions)", x.name, dimensions)
	x.dimensions = dimensions
	return nil
}

// Upsert merges or uploads records in batches.
func (x *Index) Upsert(ctx context.Context, records []domain.IndexRecord) error {
	for i := range records {
		if x.dimensions != 0 && len(records[i].Embedding) != x.dimensions {
			return fmt.Errorf("%w: record %s has %d dimensions, index has %d",
				domain.ErrIndexService, records[i].ID, len(records[i].Embedding), x.dimensions)
		}
	}

	for batch := range slices.Chunk(records, x.batchSize) {
		docs := make([]document, len(batch))
		for i := range batch {
			docs[i] = toDocument(&batch[i])
		}
		if err := x.submit(ctx, docs); err != nil {
			return err
		}
		logger.Debug("Indexed %d records into %q", len(docs), x.name)
	}
	return nil
}

// Search runs a vector query and drops hits below the threshold.
func (x *Index) Search(ctx context.Context, vector []float32, opts domain.SearchOptions) ([]domain.RetrievedChunk, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = 5
	}

	filter, err := ODataFilter(opts.Filter)
	if err != nil {
		return nil, err
	}

	req := searchRequest{
		Filter: filter,
		Select: selectFields,
		Top:    topK,
		VectorQueries: []vectorQuery{{
			Kind:   "vector",
			Vector: vector,
			Fields: fieldEmbedding,
			K:      topK,
		}},
	}

	var resp searchResponse
	if _, err := x.do(ctx, http.MethodPost, x.indexPath("/docs/search"), req, &resp); err != nil {
		return nil, err
	}

	hits := make([]domain.RetrievedChunk, 0, len(resp.Value))
	for i := range resp.Value {
		doc := &resp.Value[i]
		if doc.Score < opts.Threshold {
			continue
		}
		hits = append(hits, domain.RetrievedChunk{Record: fromDocument(doc), Score: doc.Score})
	}
	domain.SortByScore(hits)

	logger.Debug("Search returned %d hits, %d above threshold %.2f", len(resp.Value), len(hits), opts.Threshold)
	return hits, nil
}

// DeleteDocument removes every record of a document.
func (x *Index) DeleteDocument(ctx context.Context, documentID string) error {
	filter := fieldDocumentID + " eq " + quote(documentID)

	var ids []string
	for skip := 0; ; skip += pageSize {
		req := searchRequest{
			Search: "*",
			Filter: filter,
			Select: fieldID,
			Top:    pageSize,
			Skip:   skip,
		}
		var resp searchResponse
		if _, err := x.do(ctx, http.MethodPost, x.indexPath("/docs/search"), req, &resp); err != nil {
			return err
		}
		for i := range resp.Value {
			ids = append(ids, resp.Value[i].ID)
		}
		if len(resp.Value) < pageSize {
			break
		}
	}

	if err := x.DeleteRecords(ctx, ids); err != nil {
		return err
	}
	if len(ids) > 0 {
		logger.Debug("Deleted %d records of document %s", len(ids), documentID)
	}
	return nil
}

// DeleteRecords submits delete actions by key. It does not search first,
// so it also removes records that are not yet visible to queries.
func (x *Index) DeleteRecords(ctx context.Context, ids []string) error {
	for batch := range slices.Chunk(ids, x.batchSize) {
		actions := make([]deleteAction, len(batch))
		for i, id := range batch {
			actions[i] = deleteAction{Action: "delete", ID: id}
		}
		if err := x.submit(ctx, actions); err != nil {
			return err
		}
	}
	return nil
}

// Ping validates the service is reachable and the key is accepted.
func (x *Index) Ping(ctx context.Context) error {
	_, err := x.do(ctx, http.MethodGet, "/indexes?$select=name&api-version="+url.QueryEscape(x.apiVersion), nil, nil)
	return err
}

// Close releases resources.
func (x *Index) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}

// submit posts an indexing batch and fails when any action is rejected.
func (x *Index) submit(ctx context.Context, actions any) error {
	var resp indexResponse
	if _, err := x.do(ctx, http.MethodPost, x.indexPath("/docs/index"), indexBatch{Value: actions}, &resp); err != nil {
		return err
	}

	var failed []string
	for _, r := range resp.Value {
		if !r.Status {
			failed = append(failed, fmt.Sprintf("%s (%d: %s)", r.Key, r.StatusCode, r.ErrorMessage))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%w: %d of %d actions rejected: %s",
			domain.ErrIndexService, len(failed), len(resp.Value), strings.Join(failed, "; "))
	}
	return nil
}

func (x *Index) indexPath(suffix string) string {
	return "/indexes/" + url.PathEscape(x.name) + suffix + "?api-version=" + url.QueryEscape(x.apiVersion)
}

// do sends a JSON request and decodes the response into out. It returns the
// HTTP status, or 0 when the request never completed.
func (x *Index) do(ctx context.Context, method, path string, in, out any) (int, error) {
	body := io.Reader(http.NoBody)
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("%w: marshal request: %w", domain.ErrIndexService, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, x.endpoint+path, body)
	if err != nil {
		return 0, fmt.Errorf("%w: create request: %w", domain.ErrIndexService, err)
	}
	req.Header.Set("api-key", x.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := x.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrIndexService, err)
	}
	defer resp.Body.Close()

	// 207 carries per-action results that submit inspects.
	if resp.StatusCode >= http.StatusMultipleChoices {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyLimit))
		return resp.StatusCode, fmt.Errorf("%w: %s %s: status %d: %s",
			domain.ErrIndexService, method, x.name, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return resp.StatusCode, fmt.Errorf("%w: decode response: %w", domain.ErrIndexService, err)
	}
	return resp.StatusCode, nil
}

// ODataFilter renders equality filters as an OData expression. Keys are
// sorted so the output is stable.
func ODataFilter(filter map[string]string) (string, error) {
	if len(filter) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		if !domain.IsFilterable(k) {
			return "", fmt.Errorf("%w: field %q is not filterable", domain.ErrInvalidInput, k)
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)

	clauses := make([]string, len(keys))
	for i, k := range keys {
		clauses[i] = k + " eq " + quote(filter[k])
	}
	return strings.Join(clauses, " and "), nil
}

// quote renders an OData string literal.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func toDocument(rec *domain.IndexRecord) document {
	doc := document{
		Action:       "mergeOrUpload",
		ID:           rec.ID,
		DocumentID:   rec.DocumentID,
		ChunkID:      rec.Sequence,
		Text:         rec.Text,
		Source:       rec.Source,
		Path:         rec.Path,
		DocumentType: rec.DocumentType,
		StartOffset:  rec.Start,
		EndOffset:    rec.End,
		Embedding:    rec.Embedding,
	}
	if !rec.Created.IsZero() {
		created := rec.Created.UTC()
		doc.Created = &created
	}
	if !rec.Modified.IsZero() {
		modified := rec.Modified.UTC()
		doc.Modified = &modified
	}
	return doc
}

func fromDocument(doc *document) domain.IndexRecord {
	rec := domain.IndexRecord{
		ID:           doc.ID,
		DocumentID:   doc.DocumentID,
		Sequence:     doc.ChunkID,
		Text:         doc.Text,
		Source:       doc.Source,
		Path:         doc.Path,
		DocumentType: doc.DocumentType,
		Start:        doc.StartOffset,
		End:          doc.EndOffset,
	}
	if doc.Created != nil {
		rec.Created = *doc.Created
	}
	if doc.Modified != nil {
		rec.Modified = *doc.Modified
	}
	return rec
}
