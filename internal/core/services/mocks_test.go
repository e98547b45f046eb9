package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	memindex "github.com/custodia-labs/kb-cli/internal/adapters/driven/index/memory"
	"github.com/custodia-labs/kb-cli/internal/core/domain"
	"github.com/custodia-labs/kb-cli/internal/core/ports/driven"
)

// keywordEmbedder maps text onto one axis per keyword it contains.
type keywordEmbedder struct {
	keywords []string
	dims     int
	calls    int
	err      error
}

func newKeywordEmbedder(keywords ...string) *keywordEmbedder {
	return &keywordEmbedder{keywords: keywords, dims: len(keywords)}
}

func (e *keywordEmbedder) vector(text string) []float32 {
	v := make([]float32, e.dims)
	lower := strings.ToLower(text)
	for i, kw := range e.keywords {
		if i < e.dims && strings.Contains(lower, kw) {
			v[i] = 1
		}
	}
	return v
}

func (e *keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.vector(text), nil
}

func (e *keywordEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *keywordEmbedder) Dimensions() int              { return e.dims }
func (e *keywordEmbedder) ModelName() string            { return "keyword" }
func (e *keywordEmbedder) Ping(_ context.Context) error { return nil }
func (e *keywordEmbedder) Close() error                 { return nil }

// countingIndex wraps the in-memory index and can fail a chosen upsert.
type countingIndex struct {
	*memindex.Index
	ensures      int
	upserts      int
	deletes      int
	idDeletes    int
	searches     int
	failUpsertAt int
	// staleSearch makes DeleteDocument find nothing, like an index whose
	// latest writes are not searchable yet.
	staleSearch bool
}

func newCountingIndex() *countingIndex {
	return &countingIndex{Index: memindex.NewIndex()}
}

func (x *countingIndex) EnsureIndex(ctx context.Context, dimensions int) error {
	x.ensures++
	return x.Index.EnsureIndex(ctx, dimensions)
}

func (x *countingIndex) Upsert(ctx context.Context, records []domain.IndexRecord) error {
	x.upserts++
	if x.failUpsertAt > 0 && x.upserts == x.failUpsertAt {
		return fmt.Errorf("%w: rejected", domain.ErrIndexService)
	}
	return x.Index.Upsert(ctx, records)
}

func (x *countingIndex) DeleteDocument(ctx context.Context, documentID string) error {
	x.deletes++
	if x.staleSearch {
		return nil
	}
	return x.Index.DeleteDocument(ctx, documentID)
}

func (x *countingIndex) DeleteRecords(ctx context.Context, ids []string) error {
	x.idDeletes++
	return x.Index.DeleteRecords(ctx, ids)
}

func (x *countingIndex) Search(
	ctx context.Context,
	vector []float32,
	opts domain.SearchOptions,
) ([]domain.RetrievedChunk, error) {
	x.searches++
	return x.Index.Search(ctx, vector, opts)
}

type fakeGenerator struct {
	reply  string
	err    error
	prompt domain.Prompt
	opts   driven.GenerateOptions
	calls  int
}

func (g *fakeGenerator) Generate(_ context.Context, prompt domain.Prompt, opts driven.GenerateOptions) (string, error) {
	g.calls++
	g.prompt = prompt
	g.opts = opts
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func (g *fakeGenerator) ModelName() string            { return "fake" }
func (g *fakeGenerator) Ping(_ context.Context) error { return nil }
func (g *fakeGenerator) Close() error                 { return nil }

type fakeBlobStore struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	deleted []string
	err     error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: make(map[string][]byte)}
}

func (b *fakeBlobStore) Upload(_ context.Context, name string, content io.Reader, _ string) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, content); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs[name] = buf.Bytes()
	return "https://blobs.example/documents/" + name, nil
}

func (b *fakeBlobStore) List(_ context.Context, prefix string) ([]driven.BlobInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []driven.BlobInfo
	for name, data := range b.blobs {
		if strings.HasPrefix(name, prefix) {
			out = append(out, driven.BlobInfo{Name: name, Size: int64(len(data))})
		}
	}
	return out, nil
}

func (b *fakeBlobStore) Delete(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blobs, name)
	b.deleted = append(b.deleted, name)
	return nil
}

func (b *fakeBlobStore) Ping(_ context.Context) error { return nil }

type stubPrompts struct {
	text string
	err  error
}

func (p stubPrompts) Load(_ string) (string, error) { return p.text, p.err }
func (p stubPrompts) Reload()                       {}
