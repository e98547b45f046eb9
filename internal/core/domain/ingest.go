package domain

import "time"

// IngestStatus is the outcome recorded for a document in the ledger.
type IngestStatus string

// Ingest statuses.
const (
	IngestStatusIndexed IngestStatus = "indexed"
	IngestStatusFailed  IngestStatus = "failed"
)

// IngestResult summarises a successful single-document ingest.
type IngestResult struct {
	DocumentID string `json:"document_id"`
	Path       string `json:"path"`
	Source     string `json:"source"`
	Chunks     int    `json:"chunks"`
	Characters int    `json:"characters"`
	BlobURL    string `json:"blob_url,omitempty"`
}

// FileFailure records a file that could not be ingested in directory mode.
type FileFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// DirectoryResult summarises a directory ingest.
type DirectoryResult struct {
	Succeeded []IngestResult `json:"succeeded"`
	Failed    []FileFailure  `json:"failed"`
}

// Total returns the number of files attempted.
func (r DirectoryResult) Total() int {
	return len(r.Succeeded) + len(r.Failed)
}

// LedgerEntry is the local record of an ingested document.
type LedgerEntry struct {
	DocumentID string       `json:"document_id"`
	Path       string       `json:"path"`
	Source     string       `json:"source"`
	Type       string       `json:"document_type"`
	Chunks     int          `json:"chunks"`
	BlobName   string       `json:"blob_name,omitempty"`
	BlobURL    string       `json:"blob_url,omitempty"`
	Status     IngestStatus `json:"status"`
	Error      string       `json:"error,omitempty"`
	IngestedAt time.Time    `json:"ingested_at"`
}

// IngestOptions tunes a single ingest run.
type IngestOptions struct {
	// SkipUpload disables uploading the original file to blob storage.
	SkipUpload bool
}
