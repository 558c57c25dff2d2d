package overlay

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/overlay/idgen"
	"github.com/hazyhaar/overlay/kit"
	"github.com/hazyhaar/overlay/rate"
)

// RegisterMCP registers the overlay tools on an MCP server.
func (d *Daemon) RegisterMCP(srv *mcp.Server) {
	d.registerRateTool(srv)
	d.registerSetRateTool(srv)
	d.registerClearRateTool(srv)
	d.registerRefreshRateTool(srv)
	d.registerFXModeTool(srv)
	d.registerSessionsTool(srv)
	d.registerProfileStyleTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// register wires endpoint with call logging and exposes it as tool.
func register[Req any](d *Daemon, srv *mcp.Server, tool *mcp.Tool, endpoint kit.Endpoint) {
	kit.RegisterTool[Req](srv, tool, kit.Chain(kit.Logging(d.logger, tool.Name))(endpoint), idgen.New)
}

// --- overlay_rate ---

func (d *Daemon) registerRateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "overlay_rate",
		Description: "Show the EUR to USD rate in use, where it comes from, the cached value and the display mode.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	register[struct{}](d, srv, tool, func(_ context.Context, _ any) (any, error) {
		return d.book.Snapshot(), nil
	})
}

// --- overlay_set_rate ---

type setRateReq struct {
	Rate float64 `json:"rate"`
}

func (d *Daemon) registerSetRateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "overlay_set_rate",
		Description: "Pin a manual EUR to USD rate. It takes precedence over fetched rates until cleared.",
		InputSchema: inputSchema(map[string]any{
			"rate": map[string]any{"type": "number", "description": "Positive conversion factor, e.g. 1.08"},
		}, []string{"rate"}),
	}
	register[setRateReq](d, srv, tool, func(ctx context.Context, req any) (any, error) {
		r := req.(*setRateReq)
		if err := d.book.SetOverride(ctx, r.Rate); err != nil {
			return nil, err
		}
		return d.book.Snapshot(), nil
	})
}

// --- overlay_clear_rate ---

func (d *Daemon) registerClearRateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "overlay_clear_rate",
		Description: "Remove the manual rate and return to the cached or default rate.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	register[struct{}](d, srv, tool, func(ctx context.Context, _ any) (any, error) {
		d.book.ClearOverride(ctx)
		return d.book.Snapshot(), nil
	})
}

// --- overlay_refresh_rate ---

func (d *Daemon) registerRefreshRateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "overlay_refresh_rate",
		Description: "Fetch the rate now, ignoring the freshness window.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	register[struct{}](d, srv, tool, func(ctx context.Context, _ any) (any, error) {
		if err := d.book.Refresh(ctx); err != nil {
			return nil, err
		}
		return d.book.Snapshot(), nil
	})
}

// --- overlay_fx_mode ---

type fxModeReq struct {
	Mode string `json:"mode"`
}

func (d *Daemon) registerFXModeTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "overlay_fx_mode",
		Description: "Get or set how prices are displayed: both, original or converted. Without a mode, reports the current one.",
		InputSchema: inputSchema(map[string]any{
			"mode": map[string]any{"type": "string", "enum": []string{"both", "original", "converted"}},
		}, nil),
	}
	register[fxModeReq](d, srv, tool, func(_ context.Context, req any) (any, error) {
		r := req.(*fxModeReq)
		if r.Mode != "" {
			m, err := rate.ParseMode(r.Mode)
			if err != nil {
				return nil, err
			}
			d.book.SetMode(m)
		}
		return map[string]any{"mode": d.book.Mode()}, nil
	})
}

// --- overlay_sessions ---

func (d *Daemon) registerSessionsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "overlay_sessions",
		Description: "List the browser tabs overlayd annotates, with per-profile watcher state and counters.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	register[struct{}](d, srv, tool, func(_ context.Context, _ any) (any, error) {
		return map[string]any{"sessions": d.Sessions()}, nil
	})
}

// --- overlay_profile_style ---

type profileStyleReq struct {
	ID      string `json:"id"`
	Enabled *bool  `json:"enabled"`
}

func (d *Daemon) registerProfileStyleTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "overlay_profile_style",
		Description: "Switch the page stylesheet of a console profile on or off in every tab.",
		InputSchema: inputSchema(map[string]any{
			"id":      map[string]any{"type": "string", "description": "Profile id, e.g. unifi-site-group-width"},
			"enabled": map[string]any{"type": "boolean"},
		}, []string{"id", "enabled"}),
	}
	register[profileStyleReq](d, srv, tool, func(_ context.Context, req any) (any, error) {
		r := req.(*profileStyleReq)
		if r.Enabled == nil {
			return nil, fmt.Errorf("enabled is required")
		}
		if err := d.SetProfileStyle(r.ID, *r.Enabled); err != nil {
			return nil, err
		}
		return map[string]any{"id": r.ID, "css_enabled": *r.Enabled}, nil
	})
}
