package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// Format identifies how a document's text is extracted.
type Format string

// Supported document formats.
const (
	FormatPDF       Format = "pdf"
	FormatWord      Format = "word"
	FormatPlainText Format = "text"
)

// extensionFormats maps lower-case file extensions to formats.
var extensionFormats = map[string]Format{
	".pdf":  FormatPDF,
	".docx": FormatWord,
	".doc":  FormatWord,
	".txt":  FormatPlainText,
	".md":   FormatPlainText,
	".py":   FormatPlainText,
	".json": FormatPlainText,
	".csv":  FormatPlainText,
}

// FormatForPath returns the format declared by a path's extension.
// The second return value is false for unrecognised extensions.
func FormatForPath(path string) (Format, bool) {
	f, ok := extensionFormats[strings.ToLower(filepath.Ext(path))]
	return f, ok
}

// SupportedExtensions returns every extension the loader accepts.
func SupportedExtensions() []string {
	return []string{".pdf", ".docx", ".doc", ".txt", ".md", ".py", ".json", ".csv"}
}

// DocumentType returns the bare extension used as the document_type
// metadata field, e.g. "pdf" for report.PDF.
func DocumentType(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// Document is a local file and its extracted text.
// It is transient and lives only for a single ingest run.
type Document struct {
	// ID is a stable identifier derived from the absolute path.
	ID string

	// Path is the absolute path on disk.
	Path string

	// Source is the file name shown to users and to the model.
	Source string

	// Format is the extraction format.
	Format Format

	// Type is the lower-case extension without the dot.
	Type string

	// Size is the file size in bytes.
	Size int64

	// Text is the extracted raw text.
	Text string

	// CreatedAt is the file creation time where the platform reports it,
	// otherwise the modification time.
	CreatedAt time.Time

	// ModifiedAt is the file modification time.
	ModifiedAt time.Time
}

// Chunk is a contiguous span of a document's text.
// Offsets count runes, not bytes.
type Chunk struct {
	// Sequence is the zero-based position within the document.
	Sequence int

	// Text is the chunk content.
	Text string

	// Start is the offset of the first rune.
	Start int

	// End is the offset one past the last rune.
	End int

	// Overlap is the number of leading runes shared with the previous chunk.
	Overlap int
}

// Len returns the chunk length in runes.
func (c Chunk) Len() int {
	return c.End - c.Start
}

// Reassemble joins chunks back into the text they were cut from
// by dropping each chunk's overlap.
func Reassemble(chunks []Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		runes := []rune(c.Text)
		if c.Overlap > len(runes) {
			continue
		}
		b.WriteString(string(runes[c.Overlap:]))
	}
	return b.String()
}

// IndexRecord is the persisted unit inside the vector index.
type IndexRecord struct {
	// ID is the record key, unique across the index.
	ID string

	// DocumentID links the record to its document.
	DocumentID string

	// Sequence is the chunk sequence within the document.
	Sequence int

	// Text is the chunk text.
	Text string

	// Embedding is the chunk vector.
	Embedding []float32

	// Source is the document file name.
	Source string

	// Path is the document path.
	Path string

	// DocumentType is the lower-case extension.
	DocumentType string

	// Start and End are the chunk's rune offsets.
	Start int
	End   int

	// Created and Modified are the document file times.
	Created  time.Time
	Modified time.Time
}
