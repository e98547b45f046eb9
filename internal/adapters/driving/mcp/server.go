package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Version is the MCP server version.
const Version = "0.1.0"

// Server is the MCP server for kb.
type Server struct {
	ports  *Ports
	server *mcp.Server
}

// NewServer creates a new MCP server with the given ports.
func NewServer(ports *Ports) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	impl := &mcp.Implementation{
		Name:    "kb",
		Title:   "kb knowledge base",
		Version: Version,
	}
	opts := &mcp.ServerOptions{
		Instructions: instructions(ports),
	}

	s := &Server{
		ports:  ports,
		server: mcp.NewServer(impl, opts),
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// instructions is sent to clients on initialize. It describes how the
// tools relate and only mentions the ledger when a document service is wired.
func instructions(ports *Ports) string {
	var b strings.Builder
	b.WriteString("kb answers questions from a private knowledge base of ingested documents.\n")
	b.WriteString("Call ask for a generated answer and the source files it drew on. ")
	b.WriteString("Call retrieve for the raw matching chunks with their similarity scores.\n")
	b.WriteString("Both take top_k and the optional filters source (a file name) and document_type (e.g. pdf).")
	if ports.Document != nil {
		b.WriteString("\nCall list_documents or read " + uriScheme + "documents to see what has been ingested.")
	}
	return b.String()
}

// Run starts the MCP server over stdio.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP starts the MCP server over HTTP on the specified address.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background()) //nolint:errcheck
	}()

	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
