package news

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"gopkg.in/yaml.v3"

	"marketnews-api/pkg/confkit"
)

const defaultFetchTimeout = 30 * time.Second

// Config describes the set of news providers available to the application.
type Config struct {
	Providers map[string]*ProviderConfig `yaml:"providers"`
}

// ProviderConfig represents configuration for a single news provider.
// API keys and URLs support ${ENV} expansion; a provider whose expanded
// api_key is empty is disabled at build time rather than failing per call.
type ProviderConfig struct {
	Type    string `yaml:"type"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`

	DailyRequestLimit  int  `yaml:"daily_request_limit"`
	ArticlesPerRequest int  `yaml:"articles_per_request"`
	TradingHoursOnly   bool `yaml:"trading_hours_only"`

	EnabledRaw *bool `yaml:"enabled"`
	Enabled    bool  `yaml:"-"`

	TimeoutRaw string        `yaml:"timeout"`
	Timeout    time.Duration `yaml:"-"`
}

// ProviderBuilder constructs a Provider from configuration.
type ProviderBuilder func(name string, cfg *ProviderConfig) (Provider, error)

var (
	providerRegistry   = make(map[string]ProviderBuilder)
	providerRegistryMu sync.RWMutex
)

// RegisterProvider registers a news provider constructor.
func RegisterProvider(typeName string, builder ProviderBuilder) {
	providerRegistryMu.Lock()
	defer providerRegistryMu.Unlock()
	providerRegistry[strings.ToLower(strings.TrimSpace(typeName))] = builder
}

func lookupProviderBuilder(typeName string) (ProviderBuilder, bool) {
	providerRegistryMu.RLock()
	defer providerRegistryMu.RUnlock()
	builder, ok := providerRegistry[strings.ToLower(strings.TrimSpace(typeName))]
	return builder, ok
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open providers config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// MustLoad reads the provider configuration from the default project location
// and panics on error.
func MustLoad() *Config {
	path := confkit.MustProjectPath("etc/providers.yaml")
	cfg, err := LoadConfig(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	confkit.LoadDotenvOnce()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read providers config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal providers config: %w", err)
	}
	if err := cfg.normalise(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalise() error {
	if c.Providers == nil {
		c.Providers = make(map[string]*ProviderConfig)
	}
	for name, provider := range c.Providers {
		if provider == nil {
			provider = &ProviderConfig{}
			c.Providers[name] = provider
		}
		provider.expandEnv()
		provider.Enabled = provider.EnabledRaw == nil || *provider.EnabledRaw
		if err := provider.parseTimeout(name); err != nil {
			return err
		}
	}
	return nil
}

func (p *ProviderConfig) expandEnv() {
	p.Type = strings.TrimSpace(os.ExpandEnv(p.Type))
	p.APIKey = strings.TrimSpace(os.ExpandEnv(p.APIKey))
	p.BaseURL = strings.TrimSpace(os.ExpandEnv(p.BaseURL))
	p.TimeoutRaw = strings.TrimSpace(os.ExpandEnv(p.TimeoutRaw))
}

func (p *ProviderConfig) parseTimeout(name string) error {
	if p.TimeoutRaw == "" {
		p.Timeout = defaultFetchTimeout
		return nil
	}
	d, err := time.ParseDuration(p.TimeoutRaw)
	if err != nil {
		return fmt.Errorf("news provider %s: invalid timeout %q: %w", name, p.TimeoutRaw, err)
	}
	if d <= 0 {
		return fmt.Errorf("news provider %s: timeout must be positive, got %s", name, d)
	}
	p.Timeout = d
	return nil
}

// Validate checks provider definitions.
func (c *Config) Validate() error {
	for name, provider := range c.Providers {
		if provider.Type == "" {
			return fmt.Errorf("news provider %s: type is required", name)
		}
		if _, ok := lookupProviderBuilder(provider.Type); !ok {
			return fmt.Errorf("news provider %s: unknown type %q", name, provider.Type)
		}
		if provider.DailyRequestLimit <= 0 {
			return fmt.Errorf("news provider %s: daily_request_limit must be positive", name)
		}
		if provider.ArticlesPerRequest <= 0 {
			return fmt.Errorf("news provider %s: articles_per_request must be positive", name)
		}
	}
	return nil
}

// ProviderNames returns configured provider names in lexicographic order.
func (c *Config) ProviderNames() []string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildProviders instantiates every enabled provider with a usable
// credential. Providers without a credential, and providers whose builder
// reports ErrUnavailable (failed entitlement probe), are disabled in place
// and skipped; any other builder error is fatal.
func (c *Config) BuildProviders() (map[string]Provider, error) {
	providers := make(map[string]Provider, len(c.Providers))
	for _, name := range c.ProviderNames() {
		pc := c.Providers[name]
		if !pc.Enabled {
			continue
		}
		if pc.APIKey == "" {
			logx.Infof("news provider %s: no api key configured, disabling", name)
			pc.Enabled = false
			continue
		}
		builder, ok := lookupProviderBuilder(pc.Type)
		if !ok {
			return nil, fmt.Errorf("news provider %s: unknown type %q", name, pc.Type)
		}
		provider, err := builder(name, pc)
		if err != nil {
			if errors.Is(err, ErrUnavailable) {
				logx.Errorf("news provider %s unavailable, disabling: %v", name, err)
				pc.Enabled = false
				continue
			}
			return nil, fmt.Errorf("build news provider %s: %w", name, err)
		}
		providers[name] = provider
	}
	return providers, nil
}
