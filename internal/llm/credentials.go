package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoGitHubToken is returned when no Copilot credential can be found.
var ErrNoGitHubToken = errors.New("GitHub token not found: set CHRONOFLOW_GITHUB_TOKEN or GITHUB_TOKEN, or sign in to GitHub Copilot in your editor")

// tokenEnvVars are checked in order before the Copilot config files.
var tokenEnvVars = []string{"CHRONOFLOW_GITHUB_TOKEN", "GITHUB_TOKEN"}

// LoadGitHubToken returns the GitHub OAuth token used for the Copilot
// token exchange. Environment variables win over the editor's
// github-copilot hosts.json and apps.json files.
func LoadGitHubToken() (string, error) {
	for _, name := range tokenEnvVars {
		if token := strings.TrimSpace(os.Getenv(name)); token != "" {
			return token, nil
		}
	}

	dir, err := copilotConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating copilot config: %w", err)
	}
	for _, name := range []string{"hosts.json", "apps.json"} {
		if token, err := readOAuthToken(filepath.Join(dir, name)); err == nil {
			return token, nil
		}
	}
	return "", ErrNoGitHubToken
}

// copilotConfigDir is where editors store Copilot sign-ins.
func copilotConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "github-copilot"), nil
	}
	if local := os.Getenv("LOCALAPPDATA"); local != "" {
		return filepath.Join(local, "github-copilot"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "github-copilot"), nil
}

// readOAuthToken extracts the oauth_token of the first github.com entry.
func readOAuthToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	var entries map[string]struct {
		OAuthToken string `json:"oauth_token"`
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return "", fmt.Errorf("parsing %s: %w", path, err)
	}
	for host, entry := range entries {
		if strings.Contains(host, "github.com") && entry.OAuthToken != "" {
			return entry.OAuthToken, nil
		}
	}
	return "", fmt.Errorf("no github.com oauth_token in %s", path)
}
