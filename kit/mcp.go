package kit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterTool exposes endpoint as an MCP tool. The call arguments decode
// into a new Req, which the endpoint receives as *Req; the response is
// returned as JSON text. Each call runs with transport "mcp" and, when newID
// is set, a fresh request id. Endpoint errors become tool errors, not
// protocol errors.
func RegisterTool[Req any](srv *mcp.Server, tool *mcp.Tool, endpoint Endpoint, newID func() string) {
	srv.AddTool(tool, func(ctx context.Context, call *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		req := new(Req)
		if args := call.Params.Arguments; len(args) > 0 {
			if err := json.Unmarshal(args, req); err != nil {
				return toolError(fmt.Errorf("invalid arguments: %w", err)), nil
			}
		}
		ctx = WithTransport(ctx, "mcp")
		if newID != nil {
			ctx = WithRequestID(ctx, newID())
		}

		resp, err := endpoint(ctx, req)
		if err != nil {
			return toolError(err), nil
		}
		data, err := json.Marshal(resp)
		if err != nil {
			return toolError(fmt.Errorf("marshal: %w", err)), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

func toolError(err error) *mcp.CallToolResult {
	var res mcp.CallToolResult
	res.SetError(err)
	return &res
}
