package domain

import "errors"

// Domain errors represent business logic failures.
// Adapters wrap them with the underlying cause using
// fmt.Errorf("%w: %w", domain.ErrX, err) so both stay inspectable.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfig indicates missing or malformed configuration.
	ErrConfig = errors.New("configuration error")

	// Loader Errors.

	// ErrUnsupportedFormat indicates the file extension has no loader.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrFileRead indicates the path is missing or unreadable.
	ErrFileRead = errors.New("file read failed")

	// ErrExtraction indicates the parser could not decode the content.
	ErrExtraction = errors.New("text extraction failed")

	// Service Errors.

	// ErrEmbeddingService indicates the embedding model call failed.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrRateLimited indicates the hosted service throttled the request.
	// Retrying is left to the caller.
	ErrRateLimited = errors.New("rate limited")

	// ErrIndexService indicates the vector index rejected or failed a call.
	ErrIndexService = errors.New("index service error")

	// ErrGenerationService indicates the chat model call failed.
	ErrGenerationService = errors.New("generation service error")

	// ErrContentFiltered indicates the hosted model declined to answer.
	ErrContentFiltered = errors.New("content filtered")

	// ErrBlobStorage indicates the blob store call failed.
	ErrBlobStorage = errors.New("blob storage error")
)
