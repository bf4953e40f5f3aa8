package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadGitHubToken_EnvOrder(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("GITHUB_TOKEN", "gho_generic")
	t.Setenv("CHRONOFLOW_GITHUB_TOKEN", "gho_chronoflow")

	got, err := LoadGitHubToken()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "gho_chronoflow" {
		t.Errorf("token = %q, want gho_chronoflow", got)
	}

	t.Setenv("CHRONOFLOW_GITHUB_TOKEN", "")
	if got, _ := LoadGitHubToken(); got != "gho_generic" {
		t.Errorf("token = %q, want gho_generic", got)
	}
}

func TestLoadGitHubToken_ConfigFiles(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("CHRONOFLOW_GITHUB_TOKEN", "")

	if _, err := LoadGitHubToken(); !errors.Is(err, ErrNoGitHubToken) {
		t.Fatalf("expected ErrNoGitHubToken, got %v", err)
	}

	cfgDir := filepath.Join(dir, "github-copilot")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	// hosts.json without a github.com entry falls through to apps.json.
	writeFile(t, filepath.Join(cfgDir, "hosts.json"), `{"ghe.example.com": {"oauth_token": "other"}}`)
	writeFile(t, filepath.Join(cfgDir, "apps.json"), `{"github.com:Iv1.b507a08c87ecfe98": {"user": "ada", "oauth_token": "gho_apps"}}`)

	got, err := LoadGitHubToken()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "gho_apps" {
		t.Errorf("token = %q, want gho_apps", got)
	}
}

func TestExchangeToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token gho_ok" {
			http.Error(w, "bad credentials", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token": "tid=abc", "expires_at": 1736330700}`))
	}))
	defer srv.Close()

	tok, err := exchangeToken(context.Background(), srv.Client(), srv.URL, "gho_ok")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.Token != "tid=abc" || tok.ExpiresAt != 1736330700 {
		t.Errorf("unexpected token %+v", tok)
	}

	if _, err := exchangeToken(context.Background(), srv.Client(), srv.URL, "gho_revoked"); err == nil {
		t.Fatal("expected error for rejected credential")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}
