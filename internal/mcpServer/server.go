package mcpServer

import (
	"context"
	"net/http"

	"github.com/akolanti/TenantRAG/internal/domain/commonModels"
	"github.com/akolanti/TenantRAG/pkg/logger_i"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const Version = "0.1.0"

// Documents is the part of rag.Service the MCP tools use.
type Documents interface {
	Retrieve(ctx context.Context, tenantId, query string, limit int, documentId string) ([]commonModels.SearchHit, error)
	GetDocument(ctx context.Context, documentId string) (commonModels.Document, bool, error)
}

type Server struct {
	documents Documents
	server    *mcp.Server
	logger    *logger_i.Logger
}

func NewServer(documents Documents) *Server {
	s := &Server{
		documents: documents,
		server:    mcp.NewServer(&mcp.Implementation{Name: "tenantrag", Version: Version}, nil),
		logger:    logger_i.NewLogger("MCP"),
	}
	s.registerTools()
	return s
}

// Handler serves the tools over streamable HTTP.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)
}

// Run serves the tools over stdio until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}
