package mcpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

// Server is the MCP server that proxies tool calls to the provisioning API.
type Server struct {
	router chi.Router
	logger zerolog.Logger
	tools  []server.ServerTool
}

// New creates and configures a new MCP server.
func New(cfg *Config, logger zerolog.Logger) *Server {
	proxy := NewProxyHandler(cfg.APIURL, logger)
	tools := BuildTools(cfg, proxy.Handler)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	mcpSrv := server.NewMCPServer(
		"peacock",
		"1.0.0",
		server.WithInstructions(cfg.Instructions),
	)
	mcpSrv.AddTools(tools...)
	router.Mount("/mcp", server.NewStreamableHTTPServer(mcpSrv, server.WithEndpointPath("/")))

	logger.Info().Int("tools", len(tools)).Str("api_url", cfg.APIURL).Msg("mounted MCP endpoint at /mcp")

	return &Server{
		router: router,
		logger: logger,
		tools:  tools,
	}
}

// Tools returns the registered tools.
func (s *Server) Tools() []server.ServerTool {
	return s.tools
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
