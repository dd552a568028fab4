// Package mcp provides an MCP (Model Context Protocol) server for rabbitsim.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/rabbitsim/internal/config"
	"github.com/nvandessel/rabbitsim/internal/logging"
	"github.com/nvandessel/rabbitsim/internal/ratelimit"
	"github.com/nvandessel/rabbitsim/internal/store"
)

// Server wraps the MCP SDK server with the rabbitsim tools.
type Server struct {
	server       *sdk.Server
	store        *store.Store
	root         string
	dataDir      string
	settings     *config.Config
	logger       *slog.Logger
	auditLogger  *AuditLogger
	toolLimiters ratelimit.ToolLimiters
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "rabbitsim")
	Version string // Server version
	Root    string // Project root; the store lives under <Root>/.rabbitsim

	// Settings supplies the batch defaults; nil uses config.Default().
	Settings *config.Config
	// Logger receives server logs; nil discards them.
	Logger *slog.Logger
}

// NewServer opens the batch store and registers the rabbitsim tools.
func NewServer(cfg *Config) (*Server, error) {
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	dbPath := settings.Store.Path
	if dbPath == "" {
		dbPath = store.DefaultDBPath(cfg.Root)
	}
	st, err := store.Open(context.Background(), dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	dataDir := store.DataDir(cfg.Root)
	s := &Server{
		server:       mcpServer,
		store:        st,
		root:         cfg.Root,
		dataDir:      dataDir,
		settings:     settings,
		logger:       logger,
		auditLogger:  NewAuditLogger(dataDir),
		toolLimiters: ratelimit.NewToolLimiters(),
	}
	s.registerTools()

	return s, nil
}

// Run serves over stdio until the client disconnects, ctx is cancelled or
// the process is interrupted.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, shutdownSignals...)
	defer stop()

	s.logger.Info("mcp server started", "store", s.store.Path())
	err := s.server.Run(ctx, &sdk.StdioTransport{})

	if cerr := s.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close releases the store and the audit log.
func (s *Server) Close() error {
	s.auditLogger.Close()
	return s.store.Close()
}
