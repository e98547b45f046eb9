package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/custodia-labs/kb-cli/internal/core/domain"
	"github.com/custodia-labs/kb-cli/internal/core/ports/driven"
	"github.com/custodia-labs/kb-cli/internal/core/ports/driving"
	"github.com/custodia-labs/kb-cli/internal/logger"
	"github.com/custodia-labs/kb-cli/internal/observability"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// recordNamespace scopes record IDs derived from document IDs.
var recordNamespace = uuid.MustParse("8b0e5a52-3c1f-5d7e-9a43-6f2b1c0d9e77")

// RecordID returns the deterministic index record ID for a chunk.
func RecordID(documentID string, sequence int) string {
	return uuid.NewSHA1(recordNamespace, fmt.Appendf(nil, "%s/%d", documentID, sequence)).String()
}

// IngestService runs load, chunk, embed, upload and index for local files.
type IngestService struct {
	loader   driven.DocumentLoader
	chunker  driven.Chunker
	embedder driven.EmbeddingService
	index    driven.VectorIndex
	blobs    driven.BlobStore
	blobErr  error
	ledger   driven.IngestLedger
	rag      domain.RAGSettings
	indexMu  sync.Mutex
	indexed  bool
}

// NewIngestService creates a new ingest service.
// The blob store and ledger are optional; when nil, uploads and
// ledger rows are skipped.
func NewIngestService(
	loader driven.DocumentLoader,
	chunker driven.Chunker,
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	blobs driven.BlobStore,
	ledger driven.IngestLedger,
	rag domain.RAGSettings,
) *IngestService {
	if rag.UpsertBatchSize <= 0 {
		rag.UpsertBatchSize = domain.DefaultAppSettings().RAG.UpsertBatchSize
	}
	return &IngestService{
		loader:   loader,
		chunker:  chunker,
		embedder: embedder,
		index:    index,
		blobs:    blobs,
		ledger:   ledger,
		rag:      rag,
	}
}

// WithBlobError records why the blob store could not be created. Ingests
// that would upload fail with it; ingests with SkipUpload are unaffected.
func (s *IngestService) WithBlobError(err error) *IngestService {
	s.blobErr = err
	return s
}

// checkUpload fails when an upload is requested but the blob store is broken.
func (s *IngestService) checkUpload(opts domain.IngestOptions) error {
	if s.blobErr == nil || opts.SkipUpload {
		return nil
	}
	return fmt.Errorf("blob storage unavailable, retry with --skip-upload to index only: %w", s.blobErr)
}

// EnsureIndex creates the vector index if it does not exist.
func (s *IngestService) EnsureIndex(ctx context.Context) error {
	if s.index == nil {
		return errors.New("vector index not configured")
	}

	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	if s.indexed {
		return nil
	}

	dims := s.rag.Dimensions
	if s.embedder != nil && s.embedder.Dimensions() > 0 {
		dims = s.embedder.Dimensions()
	}
	if err := s.index.EnsureIndex(ctx, dims); err != nil {
		return fmt.Errorf("ensure index: %w", err)
	}
	s.indexed = true
	return nil
}

// IngestFile loads, chunks, embeds and indexes a single file.
//
//nolint:gocyclo // Pipeline with necessary sequential stages
func (s *IngestService) IngestFile(
	ctx context.Context,
	path string,
	opts domain.IngestOptions,
) (result *domain.IngestResult, err error) {
	if s.loader == nil || s.chunker == nil {
		return nil, errors.New("document loader not configured")
	}
	if s.embedder == nil {
		return nil, errors.New("embedding service not configured")
	}
	if s.index == nil {
		return nil, errors.New("vector index not configured")
	}
	if err := s.checkUpload(opts); err != nil {
		return nil, err
	}

	ctx, span := observability.StartPipelineSpan(ctx, "ingest", attribute.String("kb.path", path))
	defer observability.End(span, &err)

	logger.Section("Ingest " + filepath.Base(path))

	// 1-2. Stat, format check and extraction
	doc, err := s.load(ctx, path)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("kb.document_id", doc.ID))

	// 3. Chunk
	chunks := s.chunk(ctx, doc)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s contains no text", domain.ErrExtraction, doc.Source)
	}

	// 4. Embed every chunk before anything is written
	vectors, err := s.embed(ctx, chunks)
	if err != nil {
		return nil, err
	}
	records := buildRecords(doc, chunks, vectors)

	if err := s.EnsureIndex(ctx); err != nil {
		return nil, err
	}

	// 5. Upload the original
	var blobName, blobURL string
	if s.blobs != nil && !opts.SkipUpload {
		blobName = BlobName(doc.ID, doc.Source)
		blobURL, err = s.upload(ctx, doc.Path, blobName)
		if err != nil {
			return nil, err
		}
	}

	// 6-7. Replace the document's records
	if err := s.replace(ctx, doc.ID, records); err != nil {
		s.rollback(ctx, doc, records, blobName, err)
		return nil, err
	}

	// 8. Ledger
	entry := domain.LedgerEntry{
		DocumentID: doc.ID,
		Path:       doc.Path,
		Source:     doc.Source,
		Type:       doc.Type,
		Chunks:     len(records),
		BlobName:   blobName,
		BlobURL:    blobURL,
		Status:     domain.IngestStatusIndexed,
		IngestedAt: time.Now().UTC(),
	}
	if s.ledger != nil {
		if err := s.ledger.Save(ctx, entry); err != nil {
			return nil, fmt.Errorf("save ledger entry: %w", err)
		}
	}

	logger.Info("Indexed %s: %d chunks", doc.Source, len(records))

	return &domain.IngestResult{
		DocumentID: doc.ID,
		Path:       doc.Path,
		Source:     doc.Source,
		Chunks:     len(records),
		Characters: utf8.RuneCountInString(doc.Text),
		BlobURL:    blobURL,
	}, nil
}

// IngestDirectory ingests every supported file under dir, continuing
// past per-file failures. Files are processed one at a time in lexical order.
func (s *IngestService) IngestDirectory(
	ctx context.Context,
	dir string,
	opts domain.IngestOptions,
) (*domain.DirectoryResult, error) {
	if s.loader == nil {
		return nil, errors.New("document loader not configured")
	}
	if err := s.checkUpload(opts); err != nil {
		return nil, err
	}

	files, err := s.SupportedFiles(dir)
	if err != nil {
		return nil, err
	}

	logger.Info("Found %d supported files under %s", len(files), dir)

	result := &domain.DirectoryResult{
		Succeeded: []domain.IngestResult{},
		Failed:    []domain.FileFailure{},
	}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		res, err := s.IngestFile(ctx, path, opts)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			logger.Warn("Failed to ingest %s: %v", path, err)
			result.Failed = append(result.Failed, domain.FileFailure{Path: path, Error: err.Error()})
			continue
		}
		result.Succeeded = append(result.Succeeded, *res)
	}

	return result, nil
}

// SupportedFiles walks dir recursively and returns the files the loader
// can read. Hidden files and directories are skipped.
func (s *IngestService) SupportedFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrFileRead, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, dir)
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && s.loader.Supports(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walk %s: %w", domain.ErrFileRead, dir, err)
	}
	return files, nil
}

// BlobName returns the blob name for a document's original file.
func BlobName(documentID, source string) string {
	return documentID + "/" + source
}

func (s *IngestService) load(ctx context.Context, path string) (doc *domain.Document, err error) {
	ctx, span := observability.StartStageSpan(ctx, "load")
	defer observability.End(span, &err)

	doc, err = s.loader.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	logger.Debug("Extracted %d characters from %s", utf8.RuneCountInString(doc.Text), doc.Source)
	return doc, nil
}

func (s *IngestService) chunk(ctx context.Context, doc *domain.Document) []domain.Chunk {
	_, span := observability.StartStageSpan(ctx, "chunk")
	defer span.End()

	chunks := s.chunker.Chunk(doc.Text)
	span.SetAttributes(attribute.Int("kb.chunks", len(chunks)))
	logger.Debug("Split %s into %d chunks", doc.Source, len(chunks))
	return chunks
}

func (s *IngestService) embed(ctx context.Context, chunks []domain.Chunk) (vectors [][]float32, err error) {
	ctx, span := observability.StartStageSpan(ctx, "embed", attribute.Int("kb.inputs", len(chunks)))
	defer observability.End(span, &err)

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err = s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: got %d vectors for %d chunks",
			domain.ErrEmbeddingService, len(vectors), len(chunks))
	}
	if dims := s.rag.Dimensions; dims > 0 {
		for i, v := range vectors {
			if len(v) != dims {
				return nil, fmt.Errorf("%w: chunk %d has %d dimensions, want %d",
					domain.ErrEmbeddingService, i, len(v), dims)
			}
		}
	}

	logger.Debug("Embedded %d chunks", len(vectors))
	return vectors, nil
}

func (s *IngestService) upload(ctx context.Context, path, name string) (url string, err error) {
	ctx, span := observability.StartStageSpan(ctx, "upload", attribute.String("kb.blob", name))
	defer observability.End(span, &err)

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrFileRead, err)
	}
	defer f.Close()

	url, err = s.blobs.Upload(ctx, name, f, "")
	if err != nil {
		return "", err
	}
	logger.Debug("Uploaded original to %s", url)
	return url, nil
}

// replace deletes the document's previous records and upserts the new
// ones in batches.
func (s *IngestService) replace(ctx context.Context, documentID string, records []domain.IndexRecord) (err error) {
	ctx, span := observability.StartStageSpan(ctx, "index", attribute.Int("kb.records", len(records)))
	defer observability.End(span, &err)

	if err := s.index.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete previous records: %w", err)
	}

	batch := 0
	for part := range slices.Chunk(records, s.rag.UpsertBatchSize) {
		batch++
		if err := s.index.Upsert(ctx, part); err != nil {
			return fmt.Errorf("upsert batch %d: %w", batch, err)
		}
		logger.Debug("Upserted batch %d (%d records)", batch, len(part))
	}
	return nil
}

// rollback removes whatever part of the document reached the index and
// blob storage and records the failure. Cleanup errors are logged only.
// Records written by earlier batches are deleted by ID first, since a
// filtered sweep only finds what the index has already made searchable.
func (s *IngestService) rollback(
	ctx context.Context,
	doc *domain.Document,
	records []domain.IndexRecord,
	blobName string,
	cause error,
) {
	ctx = context.WithoutCancel(ctx)

	ids := make([]string, len(records))
	for i := range records {
		ids[i] = records[i].ID
	}
	if err := s.index.DeleteRecords(ctx, ids); err != nil {
		logger.Warn("Failed to remove written records for %s: %v", doc.Source, err)
	}
	if err := s.index.DeleteDocument(ctx, doc.ID); err != nil {
		logger.Warn("Failed to remove partial records for %s: %v", doc.Source, err)
	}
	if blobName != "" {
		if err := s.blobs.Delete(ctx, blobName); err != nil {
			logger.Warn("Failed to remove blob %s: %v", blobName, err)
		}
	}
	if s.ledger == nil {
		return
	}
	entry := domain.LedgerEntry{
		DocumentID: doc.ID,
		Path:       doc.Path,
		Source:     doc.Source,
		Type:       doc.Type,
		Status:     domain.IngestStatusFailed,
		Error:      cause.Error(),
		IngestedAt: time.Now().UTC(),
	}
	if err := s.ledger.Save(ctx, entry); err != nil {
		logger.Warn("Failed to record failure for %s: %v", doc.Source, err)
	}
}

func buildRecords(doc *domain.Document, chunks []domain.Chunk, vectors [][]float32) []domain.IndexRecord {
	records := make([]domain.IndexRecord, len(chunks))
	for i, c := range chunks {
		records[i] = domain.IndexRecord{
			ID:           RecordID(doc.ID, c.Sequence),
			DocumentID:   doc.ID,
			Sequence:     c.Sequence,
			Text:         c.Text,
			Embedding:    vectors[i],
			Source:       doc.Source,
			Path:         doc.Path,
			DocumentType: doc.Type,
			Start:        c.Start,
			End:          c.End,
			Created:      doc.CreatedAt,
			Modified:     doc.ModifiedAt,
		}
	}
	return records
}
