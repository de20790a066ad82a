package agent

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kubecloud/console-agent/internal/api"
	"github.com/kubecloud/console-agent/internal/config"
)

// tokenSource is the agent's mutable credential. It has no refresh path of
// its own; a rejected token ends the session.
type tokenSource struct {
	mu    sync.RWMutex
	token string
}

func (t *tokenSource) Token() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.token
}

func (t *tokenSource) Refresh(ctx context.Context) (string, error) {
	return "", api.ErrSessionExpired
}

func (t *tokenSource) set(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = token
}

// resolveToken finds the credential: config value first, then a configured
// token file, then the legacy ~/.kubecloud/token location.
func resolveToken(cfg *config.AgentConfig) string {
	if cfg.API.Token != "" {
		return cfg.API.Token
	}

	path := cfg.API.TokenFile
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		path = filepath.Join(home, ".kubecloud", "token")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
