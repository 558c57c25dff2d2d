package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/hazyhaar/overlay/consoles"
	"github.com/hazyhaar/overlay/kv"
	"github.com/hazyhaar/overlay/overlay"
	"github.com/hazyhaar/overlay/rate"
)

type fakeOverlay struct {
	styles map[string]bool
}

func (f *fakeOverlay) Sessions() []overlay.SessionInfo {
	return []overlay.SessionInfo{{ID: "ses_1", TargetID: "T1", URL: "https://console.hetzner.cloud/"}}
}

func (f *fakeOverlay) Profiles() []overlay.ProfileInfo {
	return []overlay.ProfileInfo{{ID: "unifi-site-group-width", HasCSS: true, CSSEnabled: f.styles["unifi-site-group-width"]}}
}

func (f *fakeOverlay) SetProfileStyle(id string, enabled bool) error {
	if id != "unifi-site-group-width" {
		return fmt.Errorf("%w: %s", consoles.ErrUnknownProfile, id)
	}
	f.styles[id] = enabled
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, endpoint string, cfg Config) (*httptest.Server, *rate.Book, *fakeOverlay) {
	t.Helper()
	book := rate.NewBook(kv.NewMemory(), rate.Config{Endpoint: endpoint, Logger: quietLogger()})
	ov := &fakeOverlay{styles: map[string]bool{"unifi-site-group-width": true}}
	cfg.Logger = quietLogger()
	srv := httptest.NewServer(New(book, ov, cfg))
	t.Cleanup(srv.Close)
	return srv, book, ov
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t, "", Config{})
	resp, body := do(t, http.MethodGet, srv.URL+"/health", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"ok"`) {
		t.Fatalf("health: %d %s", resp.StatusCode, body)
	}
}

func TestRateOverride(t *testing.T) {
	srv, book, _ := newTestServer(t, "", Config{})

	resp, body := do(t, http.MethodGet, srv.URL+"/api/rate", "")
	var st rate.State
	if err := json.Unmarshal(body, &st); err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("get rate: %d %s", resp.StatusCode, body)
	}
	if st.Source != rate.SourceDefault {
		t.Errorf("source = %q", st.Source)
	}

	resp, body = do(t, http.MethodPut, srv.URL+"/api/rate/override", `{"rate": 1.2}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put override: %d %s", resp.StatusCode, body)
	}
	if book.Rate() != 1.2 {
		t.Errorf("rate = %v", book.Rate())
	}

	resp, _ = do(t, http.MethodPut, srv.URL+"/api/rate/override", `{"rate": 0}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("zero rate: status %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodPut, srv.URL+"/api/rate/override", `not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad body: status %d", resp.StatusCode)
	}
	if book.Rate() != 1.2 {
		t.Errorf("rejected input changed the rate to %v", book.Rate())
	}

	resp, _ = do(t, http.MethodDelete, srv.URL+"/api/rate/override", "")
	if resp.StatusCode != http.StatusOK || book.Snapshot().Override {
		t.Errorf("delete override: status %d, state %+v", resp.StatusCode, book.Snapshot())
	}
}

func TestRateRefresh(t *testing.T) {
	fx := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"rates":{"USD":1.0931}}`)
	}))
	defer fx.Close()

	srv, book, _ := newTestServer(t, fx.URL+"/latest", Config{})
	resp, body := do(t, http.MethodPost, srv.URL+"/api/rate/refresh", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh: %d %s", resp.StatusCode, body)
	}
	if book.Rate() != 1.0931 {
		t.Errorf("rate = %v", book.Rate())
	}

	srv, book, _ = newTestServer(t, fx.URL+"/broken", Config{})
	resp, _ = do(t, http.MethodPost, srv.URL+"/api/rate/refresh", "")
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("broken endpoint: status %d", resp.StatusCode)
	}
	if book.Rate() != rate.DefaultRate {
		t.Errorf("failed refresh changed the rate to %v", book.Rate())
	}
}

func TestFXMode(t *testing.T) {
	srv, book, _ := newTestServer(t, "", Config{})

	_, body := do(t, http.MethodGet, srv.URL+"/api/fx/mode", "")
	if !strings.Contains(string(body), `"both"`) {
		t.Errorf("get mode: %s", body)
	}
	resp, _ := do(t, http.MethodPut, srv.URL+"/api/fx/mode", `{"mode":"original"}`)
	if resp.StatusCode != http.StatusOK || book.Mode() != rate.ModeOriginal {
		t.Errorf("put mode: status %d, mode %q", resp.StatusCode, book.Mode())
	}
	resp, _ = do(t, http.MethodPut, srv.URL+"/api/fx/mode", `{"mode":"sideways"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad mode: status %d", resp.StatusCode)
	}
}

func TestSessionsAndProfiles(t *testing.T) {
	srv, _, ov := newTestServer(t, "", Config{})

	_, body := do(t, http.MethodGet, srv.URL+"/api/sessions", "")
	var sessions []overlay.SessionInfo
	if err := json.Unmarshal(body, &sessions); err != nil || len(sessions) != 1 || sessions[0].ID != "ses_1" {
		t.Fatalf("sessions: %s", body)
	}

	resp, _ := do(t, http.MethodPut, srv.URL+"/api/profiles/unifi-site-group-width/style", `{"enabled":false}`)
	if resp.StatusCode != http.StatusOK || ov.styles["unifi-site-group-width"] {
		t.Errorf("style off: status %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodPut, srv.URL+"/api/profiles/nope/style", `{"enabled":true}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown profile: status %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodPut, srv.URL+"/api/profiles/unifi-site-group-width/style", `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing enabled: status %d", resp.StatusCode)
	}

	_, body = do(t, http.MethodGet, srv.URL+"/api/profiles", "")
	if !strings.Contains(string(body), `"css_enabled":false`) {
		t.Errorf("profiles: %s", body)
	}
}

func TestBasicAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	mcp := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	srv, _, _ := newTestServer(t, "", Config{User: "admin", PasswordHash: string(hash), MCP: mcp})

	resp, _ := do(t, http.MethodGet, srv.URL+"/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health behind auth: %d", resp.StatusCode)
	}

	for name, tc := range map[string]struct {
		user, pass string
		want       int
	}{
		"none":       {"", "", http.StatusUnauthorized},
		"wrong user": {"root", "s3cret", http.StatusUnauthorized},
		"wrong pass": {"admin", "guess", http.StatusUnauthorized},
		"valid":      {"admin", "s3cret", http.StatusOK},
	} {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/rate", nil)
		if tc.user != "" {
			req.SetBasicAuth(tc.user, tc.pass)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != tc.want {
			t.Errorf("%s: status %d, want %d", name, resp.StatusCode, tc.want)
		}
		if tc.want == http.StatusUnauthorized && resp.Header.Get("WWW-Authenticate") == "" {
			t.Errorf("%s: no challenge", name)
		}
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/mcp", nil)
	req.SetBasicAuth("admin", "s3cret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("mcp mount: status %d", resp.StatusCode)
	}
}
