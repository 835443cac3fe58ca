package gamerhub_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gamerhub "github.com/gamerhub/gamerhub-go"
)

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("TEST_GAMERHUB_KEY", "key-from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server_key: ${TEST_GAMERHUB_KEY}
host: gamerhub.example.com
port: 443
use_ssl: true
ai:
  endpoint: https://ai.example.com/v1/chat
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := gamerhub.Load(path)
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}

	if cfg.ServerKey != "key-from-env" {
		t.Errorf("server key = %q, want env-expanded value", cfg.ServerKey)
	}
	if cfg.BaseURL() != "https://gamerhub.example.com:443" {
		t.Errorf("base url = %q", cfg.BaseURL())
	}
	if cfg.SocketURL() != "wss://gamerhub.example.com:443/ws" {
		t.Errorf("socket url = %q", cfg.SocketURL())
	}
	if cfg.Timeout != 10*time.Second {
		t.Errorf("timeout default = %v, want 10s", cfg.Timeout)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := gamerhub.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("GAMERHUB_SERVER_KEY", "envkey")
	t.Setenv("GAMERHUB_HOST", "play.example.com")
	t.Setenv("GAMERHUB_PORT", "7351")
	t.Setenv("GAMERHUB_USE_SSL", "false")

	cfg, err := gamerhub.ConfigFromEnv()
	if err != nil {
		t.Fatalf("loading config from env: %v", err)
	}

	if cfg.ServerKey != "envkey" {
		t.Errorf("server key = %q, want %q", cfg.ServerKey, "envkey")
	}
	if cfg.BaseURL() != "http://play.example.com:7351" {
		t.Errorf("base url = %q", cfg.BaseURL())
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := gamerhub.DefaultConfig()
	if cfg.ServerKey != "defaultkey" {
		t.Errorf("server key = %q, want %q", cfg.ServerKey, "defaultkey")
	}
	if cfg.BaseURL() != "http://127.0.0.1:7350" {
		t.Errorf("base url = %q", cfg.BaseURL())
	}
}
