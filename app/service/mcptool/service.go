package mcptool

import (
	"context"
	"drivechat/app/config"
	"drivechat/app/service/actuation"
	"drivechat/app/service/command"
	"drivechat/app/service/history"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/samber/do"
	"github.com/samber/oops"
)

const (
	serverName      = "drivechat"
	serverVersion   = "1.0.0"
	originMCP       = "mcp"
	shutdownTimeout = 5 * time.Second
)

type Dispatcher interface {
	Dispatch(ctx context.Context, origin string, args command.Args) actuation.Result
}

// Service exposes get_direction to MCP clients, calls go straight to the actuation gateway
type Service struct {
	addr    string
	gateway Dispatcher
	server  *server.MCPServer
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)
	return NewService(do.MustInvoke[*actuation.Service](di), cfg.MCP.Addr), nil
}

func NewService(gateway Dispatcher, addr string) *Service {
	s := &Service{
		addr:    addr,
		gateway: gateway,
		server:  server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false)),
	}

	s.server.AddTool(directionTool(command.Direction()), s.handleDirection)

	return s
}

func (s *Service) Server() *server.MCPServer {
	return s.server
}

func directionTool(schema command.Schema) mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(schema.Description),
	}

	for _, p := range schema.Parameters {
		propOpts := []mcp.PropertyOption{
			mcp.Description(p.Description),
		}
		if p.Required {
			propOpts = append(propOpts, mcp.Required())
		}
		if p.Default != "" {
			propOpts = append(propOpts, mcp.DefaultString(p.Default))
		}

		opts = append(opts, mcp.WithString(p.Name, propOpts...))
	}

	return mcp.NewTool(schema.Name, opts...)
}

func (s *Service) handleDirection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := command.Decode(history.FunctionCall{
		Name: command.FunctionName,
		Args: command.StringArgs(req.GetArguments()),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := s.gateway.Dispatch(ctx, originMCP, args)

	data, err := json.Marshal(result)
	if err != nil {
		return nil, oops.In("mcptool").Wrapf(err, "failed to encode result")
	}

	if !result.OK() {
		return mcp.NewToolResultError(string(data)), nil
	}

	return mcp.NewToolResultText(string(data)), nil
}

// Run serves streamable HTTP until ctx is cancelled. An empty address disables the server.
func (s *Service) Run(ctx context.Context) error {
	if s.addr == "" {
		slog.Info("MCP server disabled")
		return nil
	}

	httpServer := server.NewStreamableHTTPServer(s.server)

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown MCP server", slog.Any("error", err))
		}
	}()

	slog.Info("MCP server started", slog.String("addr", s.addr))

	if err := httpServer.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return oops.In("mcptool").With("addr", s.addr).Wrapf(err, "MCP server failed")
	}

	return nil
}
