package mcptool

import (
	"context"
	"drivechat/app/service/actuation"
	"drivechat/app/service/command"
	"testing"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	origins []string
	calls   []command.Args
	result  actuation.Result
}

func (g *fakeGateway) Dispatch(_ context.Context, origin string, args command.Args) actuation.Result {
	g.origins = append(g.origins, origin)
	g.calls = append(g.calls, args)
	return g.result
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = command.FunctionName
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()

	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestHandleDirection(t *testing.T) {
	gateway := &fakeGateway{result: actuation.Result{Status: actuation.StatusOK, Detail: "sent"}}
	svc := NewService(gateway, "")

	res, err := svc.handleDirection(context.Background(), callRequest(map[string]any{
		"right_motors": "1",
		"left_motors":  "-1",
	}))
	require.NoError(t, err)

	assert.False(t, res.IsError)
	assert.JSONEq(t, `{"status":"ok","detail":"sent"}`, resultText(t, res))
	assert.Equal(t, []command.Args{{Right: "1", Left: "-1", Speed: "7"}}, gateway.calls)
	assert.Equal(t, []string{"mcp"}, gateway.origins)
}

func TestHandleDirectionMissingArgs(t *testing.T) {
	gateway := &fakeGateway{}
	svc := NewService(gateway, "")

	res, err := svc.handleDirection(context.Background(), callRequest(map[string]any{"speed": "20"}))
	require.NoError(t, err)

	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "right_motors")
	assert.Empty(t, gateway.calls)
}

func TestHandleDirectionGatewayFailure(t *testing.T) {
	gateway := &fakeGateway{result: actuation.Result{Status: actuation.StatusError, Detail: "connection refused"}}
	svc := NewService(gateway, "")

	res, err := svc.handleDirection(context.Background(), callRequest(map[string]any{
		"right_motors": float64(0),
		"left_motors":  float64(0),
		"speed":        float64(15),
	}))
	require.NoError(t, err)

	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "connection refused")
	assert.Equal(t, []command.Args{{Right: "0", Left: "0", Speed: "15"}}, gateway.calls)
}

func TestInProcessClient(t *testing.T) {
	gateway := &fakeGateway{result: actuation.Result{Status: actuation.StatusOK, Detail: "sent"}}
	svc := NewService(gateway, "")

	ctx := context.Background()

	mcpClient, err := client.NewInProcessClient(svc.Server())
	require.NoError(t, err)
	defer mcpClient.Close()

	require.NoError(t, mcpClient.Start(ctx))

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    "drivechat-test",
		Version: "1.0.0",
	}
	_, err = mcpClient.Initialize(ctx, initRequest)
	require.NoError(t, err)

	tools, err := mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	require.NoError(t, err)
	require.Len(t, tools.Tools, 1)
	assert.Equal(t, command.FunctionName, tools.Tools[0].Name)
	assert.ElementsMatch(t, []string{"right_motors", "left_motors"}, tools.Tools[0].InputSchema.Required)

	res, err := mcpClient.CallTool(ctx, callRequest(map[string]any{
		"right_motors": "1",
		"left_motors":  "1",
		"speed":        "50",
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, []command.Args{{Right: "1", Left: "1", Speed: "50"}}, gateway.calls)
}

func TestRunDisabled(t *testing.T) {
	svc := NewService(&fakeGateway{}, "")
	require.NoError(t, svc.Run(context.Background()))
}
