package kit

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type echoReq struct {
	Text string `json:"text"`
}

func TestRegisterTool(t *testing.T) {
	impl := &mcp.Implementation{Name: "kit-test", Version: "0.1.0"}
	srv := mcp.NewServer(impl, nil)

	var gotTransport, gotID string
	RegisterTool[echoReq](srv, &mcp.Tool{
		Name:        "echo",
		InputSchema: map[string]any{"type": "object"},
	}, func(ctx context.Context, req any) (any, error) {
		gotTransport, gotID = GetTransport(ctx), GetRequestID(ctx)
		r := req.(*echoReq)
		if r.Text == "" {
			return nil, errors.New("text is required")
		}
		return map[string]string{"echo": r.Text}, nil
	}, func() string { return "call-1" })

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()
	session, err := mcp.NewClient(impl, nil).Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer session.Close()

	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "echo", Arguments: map[string]any{"text": "hi"}})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError {
		t.Fatalf("tool error: %+v", res.Content)
	}
	if tc, ok := res.Content[0].(*mcp.TextContent); !ok || tc.Text != `{"echo":"hi"}` {
		t.Errorf("content = %#v", res.Content[0])
	}
	if gotTransport != "mcp" || gotID != "call-1" {
		t.Errorf("context transport=%q id=%q", gotTransport, gotID)
	}

	res, err = session.CallTool(ctx, &mcp.CallToolParams{Name: "echo", Arguments: map[string]any{}})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !res.IsError {
		t.Fatal("endpoint error not reported as a tool error")
	}
	if tc, ok := res.Content[0].(*mcp.TextContent); !ok || !strings.Contains(tc.Text, "text is required") {
		t.Errorf("error content = %#v", res.Content[0])
	}

	res, err = session.CallTool(ctx, &mcp.CallToolParams{Name: "echo", Arguments: map[string]any{"text": 3}})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if tc, ok := res.Content[0].(*mcp.TextContent); !res.IsError || !ok || !strings.Contains(tc.Text, "invalid arguments") {
		t.Errorf("bad arguments: isError=%v content=%#v", res.IsError, res.Content)
	}
}
