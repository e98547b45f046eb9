// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the pipelines to function:
//
//   - DocumentLoader: Reads a local file and extracts its text
//   - Chunker: Splits text into overlapping chunks
//   - EmbeddingService: Maps text to vectors (Azure OpenAI)
//   - VectorIndex: Stores and searches chunk records (Azure AI Search, Qdrant)
//   - GenerationService: Answers a prompt (Azure OpenAI)
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - BlobStore: Keeps original files (Azure Blob Storage). Without it uploads are skipped.
//   - IngestLedger: Local record of ingested documents. Without it nothing is listed.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
