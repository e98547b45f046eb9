package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/kb-cli/internal/core/domain"
	"github.com/custodia-labs/kb-cli/internal/core/ports/driving"
)

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question     string `json:"question" jsonschema:"the natural-language question to answer"`
	TopK         int    `json:"top_k,omitempty" jsonschema:"number of chunks to retrieve (default from settings)"`
	Source       string `json:"source,omitempty" jsonschema:"only use chunks from this source file name"`
	DocumentType string `json:"document_type,omitempty" jsonschema:"only use chunks of this document type, e.g. pdf"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

// RetrieveOutput is the output schema for the retrieve tool.
type RetrieveOutput struct {
	Chunks []ChunkOutput `json:"chunks"`
	Count  int           `json:"count"`
}

// ChunkOutput represents a single retrieved chunk.
type ChunkOutput struct {
	DocumentID string  `json:"document_id"`
	Source     string  `json:"source"`
	Sequence   int     `json:"sequence"`
	Score      float64 `json:"score"`
	Text       string  `json:"text"`
}

// ListDocumentsInput is the input schema for the list_documents tool.
type ListDocumentsInput struct{}

// ListDocumentsOutput is the output schema for the list_documents tool.
type ListDocumentsOutput struct {
	Documents []DocumentOutput `json:"documents"`
	Count     int              `json:"count"`
}

// DocumentOutput represents a single ingested document.
type DocumentOutput struct {
	DocumentID string `json:"document_id"`
	Source     string `json:"source"`
	Path       string `json:"path"`
	Type       string `json:"document_type"`
	Chunks     int    `json:"chunks"`
	Status     string `json:"status"`
	IngestedAt string `json:"ingested_at"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the ingested documents and cite the sources used",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retrieve",
		Description: "Return the document chunks most similar to a question, without generating an answer",
	}, s.handleRetrieve)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List every ingested document",
	}, s.handleListDocuments)
}

// handleAsk handles the ask tool invocation.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	answer, err := s.ports.Query.Ask(ctx, input.Question, queryOptions(input))
	if err != nil {
		return nil, AskOutput{}, err
	}

	sources := answer.Sources
	if sources == nil {
		sources = []string{}
	}

	return nil, AskOutput{
		Answer:  answer.Text,
		Sources: sources,
	}, nil
}

// handleRetrieve handles the retrieve tool invocation.
func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	hits, err := s.ports.Query.Retrieve(ctx, input.Question, queryOptions(input))
	if err != nil {
		return nil, RetrieveOutput{}, err
	}

	output := RetrieveOutput{
		Chunks: make([]ChunkOutput, len(hits)),
		Count:  len(hits),
	}
	for i := range hits {
		output.Chunks[i] = ChunkOutput{
			DocumentID: hits[i].Record.DocumentID,
			Source:     hits[i].Record.Source,
			Sequence:   hits[i].Record.Sequence,
			Score:      hits[i].Score,
			Text:       hits[i].Record.Text,
		}
	}

	return nil, output, nil
}

// handleListDocuments handles the list_documents tool invocation.
func (s *Server) handleListDocuments(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListDocumentsInput,
) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	if s.ports.Document == nil {
		return nil, ListDocumentsOutput{}, errors.New("document service not configured")
	}

	docs, err := s.ports.Document.List(ctx)
	if err != nil {
		return nil, ListDocumentsOutput{}, err
	}
	output := ListDocumentsOutput{
		Documents: make([]DocumentOutput, len(docs)),
		Count:     len(docs),
	}
	for i := range docs {
		output.Documents[i] = DocumentOutput{
			DocumentID: docs[i].DocumentID,
			Source:     docs[i].Source,
			Path:       docs[i].Path,
			Type:       docs[i].Type,
			Chunks:     docs[i].Chunks,
			Status:     string(docs[i].Status),
			IngestedAt: docs[i].IngestedAt.Format(time.RFC3339),
		}
	}

	return nil, output, nil
}

func queryOptions(input AskInput) driving.QueryOptions {
	opts := driving.QueryOptions{TopK: input.TopK}
	if input.Source != "" || input.DocumentType != "" {
		opts.Filter = make(map[string]string, 2)
		if input.Source != "" {
			opts.Filter[domain.FilterSource] = input.Source
		}
		if input.DocumentType != "" {
			opts.Filter[domain.FilterDocumentType] = input.DocumentType
		}
	}
	return opts
}
