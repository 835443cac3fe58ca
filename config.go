package gamerhub

import (
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// Config represents the client configuration
type Config struct {
	ServerKey   string        `yaml:"server_key" env:"GAMERHUB_SERVER_KEY,default=defaultkey"`
	Host        string        `yaml:"host" env:"GAMERHUB_HOST,default=127.0.0.1"`
	Port        int           `yaml:"port" env:"GAMERHUB_PORT,default=7350"`
	UseSSL      bool          `yaml:"use_ssl" env:"GAMERHUB_USE_SSL,default=false"`
	Timeout     time.Duration `yaml:"timeout" env:"GAMERHUB_TIMEOUT,default=10s"`
	SessionFile string        `yaml:"session_file" env:"GAMERHUB_SESSION_FILE"`
	AI          AIConfig      `yaml:"ai"`
}

// AIConfig holds the hosted text-generation service configuration
type AIConfig struct {
	Endpoint string `yaml:"endpoint" env:"GAMERHUB_AI_ENDPOINT"`
	APIKey   string `yaml:"api_key" env:"GAMERHUB_AI_API_KEY"`
	Model    string `yaml:"model" env:"GAMERHUB_AI_MODEL,default=gemini-2.0-flash"`
}

// BaseURL returns the HTTP base URL for the platform API
func (c *Config) BaseURL() string {
	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}

// SocketURL returns the websocket URL for the realtime transport
func (c *Config) SocketURL() string {
	scheme := "ws"
	if c.UseSSL {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d/ws", scheme, c.Host, c.Port)
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// ConfigFromEnv builds a Config from environment variables
func ConfigFromEnv() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config from environment: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	if c.ServerKey == "" {
		c.ServerKey = "defaultkey"
	}
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 7350
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
	if c.AI.Model == "" {
		c.AI.Model = "gemini-2.0-flash"
	}
}

// DefaultConfig returns a configuration with all defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}
