// Package sentiment scores news articles for market sentiment. It fronts an
// OpenAI-compatible chat API and blends the model's verdict with a local
// lexicon scorer; when the API is unconfigured, slow, or failing, the lexicon
// result (or a neutral default) is returned instead. Analyze never fails.
package sentiment

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 10 * time.Second

	envAPIKey  = "OPENAI_API_KEY"
	envBaseURL = "SENTIMENT_BASE_URL"
	envModel   = "SENTIMENT_MODEL"
	envTimeout = "SENTIMENT_TIMEOUT"
)

// Config holds runtime settings for the sentiment client.
type Config struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"-"`

	timeoutRaw string
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sentiment config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from a reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	var raw struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
		Model   string `yaml:"model"`
		Timeout string `yaml:"timeout"`
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read sentiment config: %w", err)
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal sentiment config: %w", err)
	}

	cfg := &Config{
		BaseURL:    strings.TrimSpace(os.ExpandEnv(raw.BaseURL)),
		APIKey:     strings.TrimSpace(os.ExpandEnv(raw.APIKey)),
		Model:      strings.TrimSpace(os.ExpandEnv(raw.Model)),
		timeoutRaw: strings.TrimSpace(os.ExpandEnv(raw.Timeout)),
	}
	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	if err := cfg.parseTimeout(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
}

func (c *Config) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv(envBaseURL)); v != "" {
		c.BaseURL = v
	}
	if c.APIKey == "" {
		c.APIKey = strings.TrimSpace(os.Getenv(envAPIKey))
	}
	if v := strings.TrimSpace(os.Getenv(envModel)); v != "" {
		c.Model = v
	}
	if v := strings.TrimSpace(os.Getenv(envTimeout)); v != "" {
		c.timeoutRaw = v
	}
}

func (c *Config) parseTimeout() error {
	if c.timeoutRaw == "" {
		c.Timeout = defaultTimeout
		return nil
	}
	if seconds, err := strconv.Atoi(c.timeoutRaw); err == nil {
		c.Timeout = time.Duration(seconds) * time.Second
		return nil
	}
	d, err := time.ParseDuration(c.timeoutRaw)
	if err != nil {
		return fmt.Errorf("sentiment config: invalid timeout %q: %w", c.timeoutRaw, err)
	}
	c.Timeout = d
	return nil
}

// Validate checks the configuration. A missing API key is valid and selects
// lexicon-only analysis.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("sentiment config: base_url is required")
	}
	if strings.TrimSpace(c.Model) == "" {
		return errors.New("sentiment config: model is required")
	}
	if c.Timeout <= 0 {
		return errors.New("sentiment config: timeout must be positive")
	}
	return nil
}
