package azuresearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kb-cli/internal/core/domain"
)

const testIndex = "test-index"

// fakeSearch is a minimal stand-in for the Azure AI Search REST API.
type fakeSearch struct {
	t        *testing.T
	mu       sync.Mutex
	def      *indexDefinition
	docs     map[string]map[string]any
	requests []string
	lastBody map[string]any
	// unsearchable hides every document from search, as right after an
	// upload before the index refreshes.
	unsearchable bool
}

func newFakeSearch(t *testing.T) (*fakeSearch, *httptest.Server) {
	t.Helper()
	f := &fakeSearch{t: t, docs: make(map[string]map[string]any)}
	server := httptest.NewServer(f)
	t.Cleanup(server.Close)
	return f, server
}

func (f *fakeSearch) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	if r.Header.Get("api-key") != "test-key" {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	assert.Equal(f.t, DefaultAPIVersion, r.URL.Query().Get("api-version"))

	var body map[string]any
	if r.Body != nil && r.Method != http.MethodGet {
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.lastBody = body
	}

	base := "/indexes/" + testIndex
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/indexes":
		writeJSON(w, http.StatusOK, map[string]any{"value": []any{}})
	case r.Method == http.MethodGet && r.URL.Path == base:
		if f.def == nil {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"message": "not found"}})
			return
		}
		writeJSON(w, http.StatusOK, f.def)
	case r.Method == http.MethodPut && r.URL.Path == base:
		raw, _ := json.Marshal(body)
		var def indexDefinition
		_ = json.Unmarshal(raw, &def)
		f.def = &def
		writeJSON(w, http.StatusCreated, def)
	case r.Method == http.MethodPost && r.URL.Path == base+"/docs/index":
		f.index(w, body)
	case r.Method == http.MethodPost && r.URL.Path == base+"/docs/search":
		f.search(w, body)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeSearch) index(w http.ResponseWriter, body map[string]any) {
	actions, _ := body["value"].([]any)
	results := make([]map[string]any, 0, len(actions))
	status := http.StatusOK
	for _, a := range actions {
		doc, _ := a.(map[string]any)
		id, _ := doc["id"].(string)
		switch {
		case doc["text"] == "reject":
			status = http.StatusMultiStatus
			results = append(results, map[string]any{"key": id, "status": false, "statusCode": 400, "errorMessage": "rejected"})
			continue
		case doc["@search.action"] == "delete":
			delete(f.docs, id)
		default:
			f.docs[id] = doc
		}
		results = append(results, map[string]any{"key": id, "status": true, "statusCode": 200})
	}
	writeJSON(w, status, map[string]any{"value": results})
}

func (f *fakeSearch) search(w http.ResponseWriter, body map[string]any) {
	filter, _ := body["filter"].(string)
	top := int(body["top"].(float64))
	skip := 0
	if s, ok := body["skip"].(float64); ok {
		skip = int(s)
	}

	var query []float64
	if vqs, ok := body["vectorQueries"].([]any); ok && len(vqs) > 0 {
		for _, v := range vqs[0].(map[string]any)["vector"].([]any) {
			query = append(query, v.(float64))
		}
	}

	hits := make([]map[string]any, 0)
	for _, doc := range f.docs {
		if f.unsearchable {
			break
		}
		if !matchesFilter(doc, filter) {
			continue
		}
		hit := make(map[string]any, len(doc))
		for k, v := range doc {
			if k != "embedding" && k != "@search.action" {
				hit[k] = v
			}
		}
		score := 1.0
		if query != nil {
			score = 0
			for i, v := range doc["embedding"].([]any) {
				score += v.(float64) * query[i]
			}
		}
		hit["@search.score"] = score
		hits = append(hits, hit)
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i]["@search.score"].(float64) > hits[j]["@search.score"].(float64) })

	if skip > len(hits) {
		skip = len(hits)
	}
	hits = hits[skip:]
	if len(hits) > top {
		hits = hits[:top]
	}
	writeJSON(w, http.StatusOK, map[string]any{"value": hits})
}

// matchesFilter understands "field eq 'value'" clauses joined by "and".
func matchesFilter(doc map[string]any, filter string) bool {
	if filter == "" {
		return true
	}
	for _, clause := range strings.Split(filter, " and ") {
		field, literal, ok := strings.Cut(clause, " eq ")
		if !ok {
			return false
		}
		want := strings.ReplaceAll(strings.Trim(literal, "'"), "''", "'")
		if doc[field] != want {
			return false
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestIndex(t *testing.T, url string) *Index {
	t.Helper()
	x, err := NewIndex(Config{Endpoint: url + "/", APIKey: "test-key", IndexName: testIndex, BatchSize: 2})
	require.NoError(t, err)
	return x
}

func records(doc string, n int, vectors ...[]float32) []domain.IndexRecord {
	out := make([]domain.IndexRecord, n)
	for i := range out {
		out[i] = domain.IndexRecord{
			ID:           doc + "-" + string(rune('a'+i)),
			DocumentID:   doc,
			Sequence:     i,
			Text:         "chunk " + string(rune('a'+i)),
			Embedding:    vectors[i%len(vectors)],
			Source:       doc + ".pdf",
			Path:         "/docs/" + doc + ".pdf",
			DocumentType: "pdf",
			Start:        i * 10,
			End:          i*10 + 12,
			Created:      time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		}
	}
	return out
}

func TestNewIndex_Validation(t *testing.T) {
	_, err := NewIndex(Config{APIKey: "k"})
	assert.ErrorIs(t, err, domain.ErrConfig)
	_, err = NewIndex(Config{Endpoint: "https://x.search.windows.net"})
	assert.ErrorIs(t, err, domain.ErrConfig)

	x, err := NewIndex(Config{Endpoint: "https://x.search.windows.net", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultIndexName, x.Name())
	assert.Equal(t, DefaultBatchSize, x.batchSize)
}

func TestEnsureIndex_CreatesSchema(t *testing.T) {
	f, server := newFakeSearch(t)
	x := newTestIndex(t, server.URL)

	require.NoError(t, x.EnsureIndex(context.Background(), 3))
	require.NotNil(t, f.def)
	assert.Equal(t, testIndex, f.def.Name)
	assert.Equal(t, 3, f.def.vectorDimensions())

	require.NotNil(t, f.def.VectorSearch)
	params := f.def.VectorSearch.Algorithms[0].HNSWParameters
	assert.Equal(t, hnswParameters{M: 4, EFConstruction: 400, EFSearch: 500, Metric: "cosine"}, params)

	filterable := map[string]bool{}
	for _, fd := range f.def.Fields {
		filterable[fd.Name] = fd.Filterable
	}
	assert.True(t, filterable[fieldSource])
	assert.True(t, filterable[fieldDocumentType])
	assert.True(t, filterable[fieldDocumentID])

	// Second call finds the index and does not recreate it.
	require.NoError(t, x.EnsureIndex(context.Background(), 3))
	puts := 0
	for _, r := range f.requests {
		if strings.HasPrefix(r, http.MethodPut) {
			puts++
		}
	}
	assert.Equal(t, 1, puts)
}

func TestEnsureIndex_DimensionMismatch(t *testing.T) {
	_, server := newFakeSearch(t)
	x := newTestIndex(t, server.URL)

	require.NoError(t, x.EnsureIndex(context.Background(), 3))
	err := x.EnsureIndex(context.Background(), 1536)
	assert.ErrorIs(t, err, domain.ErrIndexService)
	assert.Contains(t, err.Error(), "dimensions")
}

func TestUpsertAndSearch(t *testing.T) {
	f, server := newFakeSearch(t)
	x := newTestIndex(t, server.URL)
	require.NoError(t, x.EnsureIndex(context.Background(), 2))

	recs := records("doc1", 3, []float32{1, 0}, []float32{0.6, 0.8}, []float32{0, 1})
	require.NoError(t, x.Upsert(context.Background(), recs))
	assert.Len(t, f.docs, 3)

	hits, err := x.Search(context.Background(), []float32{1, 0}, domain.SearchOptions{TopK: 5, Threshold: 0.5})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "doc1-a", hits[0].Record.ID)
	assert.Equal(t, "doc1-b", hits[1].Record.ID)
	assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)

	got := hits[0].Record
	assert.Equal(t, "doc1", got.DocumentID)
	assert.Equal(t, "doc1.pdf", got.Source)
	assert.Equal(t, "/docs/doc1.pdf", got.Path)
	assert.Equal(t, "pdf", got.DocumentType)
	assert.Equal(t, 0, got.Sequence)
	assert.Equal(t, 12, got.End)
	assert.True(t, got.Created.Equal(recs[0].Created))
	assert.Nil(t, got.Embedding)

	vq := f.lastBody["vectorQueries"].([]any)[0].(map[string]any)
	assert.Equal(t, "vector", vq["kind"])
	assert.Equal(t, fieldEmbedding, vq["fields"])
	assert.InDelta(t, 5, vq["k"], 0)
	assert.NotContains(t, f.lastBody["select"], fieldEmbedding)
}

func TestUpsert_RejectsWrongDimensions(t *testing.T) {
	f, server := newFakeSearch(t)
	x := newTestIndex(t, server.URL)
	require.NoError(t, x.EnsureIndex(context.Background(), 3))

	err := x.Upsert(context.Background(), records("doc1", 1, []float32{1, 0}))
	assert.ErrorIs(t, err, domain.ErrIndexService)
	assert.Empty(t, f.docs)
}

func TestUpsert_PartialFailure(t *testing.T) {
	_, server := newFakeSearch(t)
	x := newTestIndex(t, server.URL)

	recs := records("doc1", 2, []float32{1, 0})
	recs[1].Text = "reject"
	err := x.Upsert(context.Background(), recs)
	assert.ErrorIs(t, err, domain.ErrIndexService)
	assert.Contains(t, err.Error(), "doc1-b")
}

func TestSearch_Filter(t *testing.T) {
	f, server := newFakeSearch(t)
	x := newTestIndex(t, server.URL)

	require.NoError(t, x.Upsert(context.Background(), records("doc1", 2, []float32{1, 0})))
	require.NoError(t, x.Upsert(context.Background(), records("doc2", 2, []float32{1, 0})))

	hits, err := x.Search(context.Background(), []float32{1, 0}, domain.SearchOptions{
		TopK:   10,
		Filter: map[string]string{domain.FilterSource: "doc2.pdf"},
	})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.Equal(t, "doc2", h.Record.DocumentID)
	}
	assert.Equal(t, "source eq 'doc2.pdf'", f.lastBody["filter"])

	_, err = x.Search(context.Background(), []float32{1, 0}, domain.SearchOptions{Filter: map[string]string{"path": "x"}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSearch_EmptyIndex(t *testing.T) {
	_, server := newFakeSearch(t)
	x := newTestIndex(t, server.URL)

	hits, err := x.Search(context.Background(), []float32{1, 0}, domain.SearchOptions{TopK: 5, Threshold: 0.7})
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}

func TestDeleteDocument(t *testing.T) {
	f, server := newFakeSearch(t)
	x := newTestIndex(t, server.URL)

	require.NoError(t, x.Upsert(context.Background(), records("doc1", 5, []float32{1, 0})))
	require.NoError(t, x.Upsert(context.Background(), records("doc2", 1, []float32{1, 0})))
	require.Len(t, f.docs, 6)

	require.NoError(t, x.DeleteDocument(context.Background(), "doc1"))
	assert.Len(t, f.docs, 1)
	assert.Contains(t, f.docs, "doc2-a")

	require.NoError(t, x.DeleteDocument(context.Background(), "missing"))
}

func TestDeleteRecords_RemovesUnsearchableRecords(t *testing.T) {
	f, server := newFakeSearch(t)
	x := newTestIndex(t, server.URL)

	require.NoError(t, x.Upsert(context.Background(), records("doc1", 3, []float32{1, 0})))
	f.unsearchable = true

	require.NoError(t, x.DeleteDocument(context.Background(), "doc1"))
	require.Len(t, f.docs, 3, "a filtered sweep cannot see unsearchable records")

	require.NoError(t, x.DeleteRecords(context.Background(), []string{"doc1-a", "doc1-b", "doc1-c", "never-written"}))
	assert.Empty(t, f.docs)
	assert.Equal(t, "delete", f.lastBody["value"].([]any)[0].(map[string]any)["@search.action"])
}

func TestDeleteRecords_Empty(t *testing.T) {
	f, server := newFakeSearch(t)
	x := newTestIndex(t, server.URL)

	require.NoError(t, x.DeleteRecords(context.Background(), nil))
	assert.Empty(t, f.requests)
}

func TestServiceErrors(t *testing.T) {
	_, server := newFakeSearch(t)
	x, err := NewIndex(Config{Endpoint: server.URL, APIKey: "wrong", IndexName: testIndex})
	require.NoError(t, err)

	assert.ErrorIs(t, x.Ping(context.Background()), domain.ErrIndexService)
	_, err = x.Search(context.Background(), []float32{1}, domain.SearchOptions{})
	assert.ErrorIs(t, err, domain.ErrIndexService)
	assert.ErrorIs(t, x.EnsureIndex(context.Background(), 2), domain.ErrIndexService)

	server.Close()
	assert.ErrorIs(t, newTestIndex(t, server.URL).Ping(context.Background()), domain.ErrIndexService)
}

func TestPing(t *testing.T) {
	_, server := newFakeSearch(t)
	assert.NoError(t, newTestIndex(t, server.URL).Ping(context.Background()))
}

func TestODataFilter(t *testing.T) {
	got, err := ODataFilter(nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = ODataFilter(map[string]string{
		domain.FilterSource:       "o'brien.pdf",
		domain.FilterDocumentType: "pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, "document_type eq 'pdf' and source eq 'o''brien.pdf'", got)
}
