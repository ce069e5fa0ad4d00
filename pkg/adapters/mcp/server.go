// Package mcp exposes an agent's sessions as Model Context Protocol tools and
// resources, so that another model can converse with it.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/stepwise"
	"github.com/aretw0/stepwise/internal/logging"
	"github.com/aretw0/stepwise/internal/presentation/graph"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/runner"
	"github.com/aretw0/stepwise/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	AgentResourceURI = "stepwise://agent"
	GraphResourceURI = "stepwise://graph"
)

// TurnResponse is the structured result of the turn tool.
type TurnResponse struct {
	SessionID string             `json:"session_id" jsonschema_description:"The session the turn ran in"`
	Result    *domain.TurnResult `json:"result,omitempty" jsonschema_description:"The decision taken and its outcome"`
	StepID    string             `json:"step_id" jsonschema_description:"The step the session is in after the turn"`
	Ended     bool               `json:"ended" jsonschema_description:"Whether the agent ended the conversation"`
	Error     string             `json:"error,omitempty" jsonschema_description:"Set when a session limit was reached"`
}

// Server wraps a session manager and exposes it as an MCP Server.
type Server struct {
	manager   *session.Manager
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(m *session.Manager, opts ...Option) *Server {
	s := &Server{
		manager:   m,
		mcpServer: server.NewMCPServer("stepwise-mcp", strings.TrimSpace(stepwise.Version)),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the MCP SSE transport on port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("mcp server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("shutting down mcp server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	turnTool := mcp.NewTool("turn",
		mcp.WithDescription("Send a message to the agent and run one turn of the session. The session is created on first use."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("The conversation to continue")),
		mcp.WithString("input", mcp.Description("The user message. Leave empty to let the agent continue after a tool call or move.")),
		mcp.WithOutputSchema[TurnResponse](),
	)
	s.mcpServer.AddTool(turnTool, mcp.NewStructuredToolHandler(s.HandleTurn))

	s.mcpServer.AddTool(mcp.NewTool("get_agent",
		mcp.WithDescription("Describe the agent: steps, routes, flows, tools and limits."),
	), s.HandleGetAgent)

	s.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Return the saved snapshot of a session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("The session to read")),
	), s.HandleGetSession)
}

// HandleTurn runs one turn. Session limits are reported in the response
// rather than as a tool failure so that the caller sees the final state.
func (s *Server) HandleTurn(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (TurnResponse, error) {
	id, _ := args["session_id"].(string)
	input, _ := args["input"].(string)
	if id == "" {
		return TurnResponse{}, errors.New("session_id is required")
	}

	if input != "" {
		clean, err := runner.SanitizeInput(input)
		if err != nil {
			s.logger.Warn("mcp turn: input rejected", "session_id", id, "err", err, "size", len(input))
			return TurnResponse{}, fmt.Errorf("input rejected: %w", err)
		}
		input = clean
	}

	res, next, err := s.manager.Turn(ctx, id, input)
	resp := TurnResponse{SessionID: id, Result: res}
	if next != nil {
		resp.StepID = next.CurrentStepID
	}
	if err != nil {
		var limitErr *domain.LimitError
		if !errors.As(err, &limitErr) {
			return TurnResponse{}, fmt.Errorf("turn failed: %w", err)
		}
		resp.Error = err.Error()
		return resp, nil
	}
	resp.Ended = res.Ended()
	return resp, nil
}

func (s *Server) HandleGetAgent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(s.manager.Agent().Inspect())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("inspect failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func (s *Server) HandleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, _ := request.GetArguments()["session_id"].(string)
	if id == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}
	snap, err := s.manager.Load(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(AgentResourceURI, "Agent Definition",
		mcp.WithMIMEType("application/json"),
	), s.ReadAgent)

	s.mcpServer.AddResource(mcp.NewResource(GraphResourceURI, "Agent Graph (Mermaid)",
		mcp.WithMIMEType("text/plain"),
	), s.ReadGraph)
}

func (s *Server) ReadAgent(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	b, err := json.Marshal(s.manager.Agent().Inspect())
	if err != nil {
		return nil, fmt.Errorf("failed to inspect agent: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      AgentResourceURI,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}

func (s *Server) ReadGraph(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      GraphResourceURI,
			MIMEType: "text/plain",
			Text:     graph.GenerateMermaid(s.manager.Agent().Inspect(), nil),
		},
	}, nil
}
