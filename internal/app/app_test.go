package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/voxtask/voxtask/internal/config"
)

func newTestApp(t *testing.T) *App {
	t.Helper()

	cfg, err := config.LoadFromReader(strings.NewReader(`
auth:
  tokens:
    "tok-alice": "alice"
`))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("build app: %v", err)
	}
	return a
}

func TestNew_ServesProbes(t *testing.T) {
	a := newTestApp(t)
	srv := httptest.NewServer(a.handler)
	t.Cleanup(srv.Close)

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestNew_ServesCommandCatalog(t *testing.T) {
	a := newTestApp(t)
	srv := httptest.NewServer(a.handler)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/api/commands")
	if err != nil {
		t.Fatalf("GET /api/commands: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Commands []struct {
			Intent   string   `json:"intent"`
			Examples []string `json:"examples"`
		} `json:"commands"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Commands) == 0 {
		t.Fatal("commands list is empty")
	}
	for _, c := range body.Commands {
		if c.Intent == "" || len(c.Examples) == 0 {
			t.Errorf("command %+v is missing intent or examples", c)
		}
	}
}

func TestNew_UnauthenticatedWebSocketIsRejected(t *testing.T) {
	a := newTestApp(t)
	srv := httptest.NewServer(a.handler)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/ws")
	if err != nil {
		t.Fatalf("GET /ws: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}
