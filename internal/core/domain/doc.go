// Package domain defines the core business entities for kb.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: A local file and its extracted text
//   - Chunk: A contiguous span of a document's text
//   - IndexRecord: The persisted unit inside the vector index
//   - RetrievedChunk: A search hit used to build a prompt
//   - Answer: The result of the query pipeline
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
