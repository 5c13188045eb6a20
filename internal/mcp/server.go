// Package mcp provides an MCP (Model Context Protocol) server for electsim.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/electsim/internal/config"
	"github.com/nvandessel/electsim/internal/logging"
	"github.com/nvandessel/electsim/internal/simulation"
	"github.com/nvandessel/electsim/internal/store"
)

// Server wraps the MCP SDK server and exposes the simulation as tools.
type Server struct {
	server      *sdk.Server
	runner      *simulation.Runner
	store       store.RunStore
	defaults    *config.SimConfig
	auditLogger *AuditLogger
	logger      *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "electsim")
	Version string // Server version

	// Store persists every run. Defaults to an in-memory store.
	Store store.RunStore

	// Defaults supplies scenario parameters the tool arguments leave unset.
	// Defaults to config.Default().
	Defaults *config.SimConfig

	// AuditDir is where audit.jsonl is written. Empty disables auditing.
	AuditDir string

	Logger    *slog.Logger
	Decisions *logging.DecisionLogger
}

// NewServer creates a new MCP server with electsim tools.
func NewServer(cfg *Config) (*Server, error) {
	runStore := cfg.Store
	if runStore == nil {
		runStore = store.NewMemoryRunStore()
	}
	defaults := cfg.Defaults
	if defaults == nil {
		defaults = config.Default()
	}
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("invalid default configuration: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	runner := simulation.NewRunner(runStore)
	runner.SetLogger(logger, cfg.Decisions)

	s := &Server{
		server:   mcpServer,
		runner:   runner,
		store:    runStore,
		defaults: defaults,
		logger:   logger,
	}
	if cfg.AuditDir != "" {
		s.auditLogger = NewAuditLogger(cfg.AuditDir)
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, shutdownSignals...)
	defer stop()

	s.logger.Info("mcp server listening on stdio")
	err := s.server.Run(ctx, &sdk.StdioTransport{})

	if closeErr := s.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// Close closes the store and the audit log.
func (s *Server) Close() error {
	auditErr := s.auditLogger.Close()
	if err := s.store.Close(); err != nil {
		return err
	}
	return auditErr
}
