// Command overlayd keeps vendor consoles open in Chrome annotated: price
// estimates, signal badges, status colors and copy controls.
//
// Usage:
//
//	overlayd -config overlay.yaml                     # run from a YAML config
//	overlayd -remote 127.0.0.1:9222                   # annotate a running Chrome
//	overlayd -url https://console.hetzner.cloud/      # open one console page
//	overlayd -render page.html -page-url https://...  # annotate offline, print HTML
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/overlay/api"
	"github.com/hazyhaar/overlay/overlay"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to overlay.yaml config file")
	remote := flag.String("remote", "", "attach to a running Chrome (ws:// URL or host:port)")
	singleURL := flag.String("url", "", "open a single URL in a launched Chrome")
	render := flag.String("render", "", "annotate an HTML file or URL offline and write it to stdout")
	pageURL := flag.String("page-url", "", "location used to match profiles in -render mode")
	report := flag.Bool("report", false, "with -render, print the per-profile report instead of HTML")
	listen := flag.String("listen", "", "admin API address, overrides api.addr")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("overlayd: config", "error", err)
		os.Exit(1)
	}
	if *remote != "" {
		cfg.Browser.Mode = "remote"
		cfg.Browser.Remote = *remote
	}
	if *singleURL != "" {
		cfg.Pages = append(cfg.Pages, overlay.PageConfig{URL: *singleURL})
	}
	if *listen != "" {
		cfg.API.Addr = *listen
	}

	if *render != "" {
		err = runRender(ctx, logger, cfg, *render, *pageURL, *report, os.Stdout)
	} else {
		err = runDaemon(ctx, logger, cfg)
	}
	if err != nil {
		logger.Error("overlayd: fatal", "error", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*overlay.Config, error) {
	if path == "" {
		return overlay.DefaultConfig(), nil
	}
	cfg, err := overlay.LoadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func runRender(ctx context.Context, logger *slog.Logger, cfg *overlay.Config, src, pageURL string, report bool, out io.Writer) error {
	d, err := overlay.New(cfg, logger)
	if err != nil {
		return err
	}
	defer d.Stop()
	d.Init(ctx)

	if cfg.FX.Endpoint != "" && d.Book().Stale() {
		if err := d.Book().Refresh(ctx); err != nil {
			logger.Warn("overlayd: rate refresh failed, using the stored rate", "error", err)
		}
	}

	client := &http.Client{Timeout: 30 * time.Second}

	doc, err := overlay.LoadDocument(ctx, client, src, pageURL)
	if err != nil {
		return err
	}
	results, err := d.Render(ctx, doc)
	if err != nil {
		return err
	}
	if report {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	return overlay.WritePreview(out, doc)
}

func runDaemon(ctx context.Context, logger *slog.Logger, cfg *overlay.Config) error {
	d, err := overlay.New(cfg, logger)
	if err != nil {
		return err
	}
	if err := d.Start(ctx); err != nil {
		d.Stop()
		return fmt.Errorf("start: %w", err)
	}
	defer d.Stop()

	if cfg.API.Addr == "" {
		<-ctx.Done()
		return nil
	}

	apiCfg := api.Config{
		User:         cfg.API.User,
		PasswordHash: cfg.API.PasswordHash,
		Logger:       logger,
	}
	if cfg.API.MCPEnabled() {
		srv := mcp.NewServer(&mcp.Implementation{Name: "overlayd", Version: version}, nil)
		d.RegisterMCP(srv)
		apiCfg.MCP = mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return srv }, nil)
	}

	httpSrv := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           api.New(d.Book(), d, apiCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("overlayd: admin API listening", "addr", cfg.API.Addr, "auth", cfg.API.User != "", "mcp", apiCfg.MCP != nil)
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("admin API: %w", err)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
