// Package mcpserver exposes read-only audit data over the Model Context
// Protocol so assistants can answer questions about batches without touching
// the web surface. Raw CPFs never leave the process; lookups log the salted
// digest instead.
package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/potaudit/potaudit/internal/auth"
	"github.com/potaudit/potaudit/internal/storage"
)

const (
	serverName    = "Auditoria POT MCP"
	serverVersion = "0.1.0"
)

// Store is the read surface the MCP tools run against.
type Store interface {
	storage.BatchStore
	storage.RecordStore
	storage.FindingStore
	storage.MetricsStore
}

// Server hosts the MCP server over stdio.
type Server struct {
	mcpServer *mcp.Server
}

// New binds the audit tools to the given store.
func New(store Store, pseudonyms *auth.Pseudonymizer) (*Server, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if pseudonyms == nil {
		return nil, errors.New("pseudonymizer is required")
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	mcp.AddTool(mcpServer, ListBatchesTool(), ListBatchesHandler(store))
	mcp.AddTool(mcpServer, BatchMetricsTool(), BatchMetricsHandler(store))
	mcp.AddTool(mcpServer, ListFindingsTool(), ListFindingsHandler(store))
	mcp.AddTool(mcpServer, LookupBeneficiaryTool(), LookupBeneficiaryHandler(store, pseudonyms))

	return &Server{mcpServer: mcpServer}, nil
}

// Serve runs the server on stdio and blocks until the transport closes or the
// context ends. Context cancellation is a clean shutdown, not an error.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil || s.mcpServer == nil {
		return errors.New("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.mcpServer.Run(ctx, &mcp.StdioTransport{})
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}
