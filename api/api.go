// Package api is the overlayd admin HTTP API: rate state and override,
// display mode, attached sessions and profile stylesheets.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/overlay/consoles"
	"github.com/hazyhaar/overlay/overlay"
	"github.com/hazyhaar/overlay/rate"
	"github.com/hazyhaar/overlay/shield"
)

// Overlay is the part of the daemon the API exposes.
type Overlay interface {
	Sessions() []overlay.SessionInfo
	Profiles() []overlay.ProfileInfo
	SetProfileStyle(id string, enabled bool) error
}

// Config configures the router.
type Config struct {
	// User and PasswordHash (bcrypt) enable Basic auth on everything but
	// /health.
	User         string
	PasswordHash string
	// MCP is mounted at /mcp when set.
	MCP    http.Handler
	Logger *slog.Logger
}

type server struct {
	book *rate.Book
	ov   Overlay
}

// New builds the router.
func New(book *rate.Book, ov Overlay, cfg Config) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &server{book: book, ov: ov}

	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack(cfg.Logger) {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		if cfg.User != "" {
			r.Use(BasicAuth(cfg.User, cfg.PasswordHash))
		}

		r.Route("/api/rate", func(r chi.Router) {
			r.Get("/", s.getRate)
			r.Put("/override", s.putOverride)
			r.Delete("/override", s.deleteOverride)
			r.Post("/refresh", s.refreshRate)
		})
		r.Get("/api/fx/mode", s.getMode)
		r.Put("/api/fx/mode", s.putMode)
		r.Get("/api/sessions", s.getSessions)
		r.Get("/api/profiles", s.getProfiles)
		r.Put("/api/profiles/{id}/style", s.putProfileStyle)

		if cfg.MCP != nil {
			r.Handle("/mcp", cfg.MCP)
			r.Handle("/mcp/*", cfg.MCP)
		}
	})
	return r
}

func (s *server) getRate(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.book.Snapshot())
}

func (s *server) putOverride(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rate float64 `json:"rate"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.book.SetOverride(r.Context(), req.Rate); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, s.book.Snapshot())
}

func (s *server) deleteOverride(w http.ResponseWriter, r *http.Request) {
	s.book.ClearOverride(r.Context())
	writeJSON(w, http.StatusOK, s.book.Snapshot())
}

func (s *server) refreshRate(w http.ResponseWriter, r *http.Request) {
	if err := s.book.Refresh(r.Context()); err != nil {
		shield.GetLogger(r.Context()).Warn("api: rate refresh", "error", err)
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, s.book.Snapshot())
}

func (s *server) getMode(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]rate.Mode{"mode": s.book.Mode()})
}

func (s *server) putMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if !decode(w, r, &req) {
		return
	}
	m, err := rate.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.book.SetMode(m)
	writeJSON(w, http.StatusOK, map[string]rate.Mode{"mode": m})
}

func (s *server) getSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ov.Sessions())
}

func (s *server) getProfiles(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ov.Profiles())
}

func (s *server) putProfileStyle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, errors.New("enabled is required"))
		return
	}
	if err := s.ov.SetProfileStyle(id, *req.Enabled); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, consoles.ErrUnknownProfile) {
			code = http.StatusNotFound
		}
		writeError(w, code, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "css_enabled": *req.Enabled})
}

// --- Helpers ---

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
