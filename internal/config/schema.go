package config

// Config holds churchscan configuration.
type Config struct {
	Providers map[string]ProviderCfg `mapstructure:"providers" yaml:"providers"`
	Sources   map[string]SourceCfg   `mapstructure:"sources" yaml:"sources"`
	Embedding EmbeddingCfg           `mapstructure:"embedding" yaml:"embedding"`
	Database  DatabaseCfg            `mapstructure:"database" yaml:"database"`
	Pipeline  PipelineCfg            `mapstructure:"pipeline" yaml:"pipeline"`
}

// ProviderCfg configures one recognition provider.
type ProviderCfg struct {
	Type      string `mapstructure:"type" yaml:"type"`             // "openrouter", "upstage", "gemini"
	Model     string `mapstructure:"model" yaml:"model"`           // model name/slug, provider default when empty
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`       // supports ${ENV_VAR} syntax
	RateLimit int    `mapstructure:"rate_limit" yaml:"rate_limit"` // requests per minute
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
}

// SourceCfg configures one publication listing.
type SourceCfg struct {
	ListingURL string `mapstructure:"listing_url" yaml:"listing_url"`
	Kind       string `mapstructure:"kind" yaml:"kind"` // "newsletter" or "bulletin"
	MaxPages   int    `mapstructure:"max_pages" yaml:"max_pages"`
}

// EmbeddingCfg configures the embedding client. The model and dimension
// are fixed in code; only access details live here.
type EmbeddingCfg struct {
	APIKey  string `mapstructure:"api_key" yaml:"api_key"` // supports ${ENV_VAR} syntax
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// DatabaseCfg configures the persistent store.
type DatabaseCfg struct {
	DSN string `mapstructure:"dsn" yaml:"dsn"` // supports ${ENV_VAR} syntax
}

// PipelineCfg tunes batch processing.
type PipelineCfg struct {
	FallbackOrder  []string `mapstructure:"fallback_order" yaml:"fallback_order"`   // provider names, tried in order
	Verify         bool     `mapstructure:"verify" yaml:"verify"`                   // cross-model verification pass
	TimeoutSeconds int      `mapstructure:"timeout_seconds" yaml:"timeout_seconds"` // per external call
	CacheTTLMin    int      `mapstructure:"cache_ttl_min" yaml:"cache_ttl_min"`     // corrections/roster cache
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Providers: map[string]ProviderCfg{
			"openrouter": {
				Type:      "openrouter",
				Model:     "anthropic/claude-3.5-sonnet",
				APIKey:    "${OPENROUTER_API_KEY}",
				RateLimit: 60,
				Enabled:   true,
			},
			"upstage": {
				Type:      "upstage",
				APIKey:    "${UPSTAGE_API_KEY}",
				RateLimit: 60,
				Enabled:   true,
			},
			"gemini": {
				Type:      "gemini",
				APIKey:    "${GEMINI_API_KEY}",
				RateLimit: 60,
				Enabled:   true,
			},
		},
		Sources: map[string]SourceCfg{
			"newsletter": {
				ListingURL: "",
				Kind:       "newsletter",
				MaxPages:   50,
			},
			"bulletin": {
				ListingURL: "",
				Kind:       "bulletin",
				MaxPages:   50,
			},
		},
		Embedding: EmbeddingCfg{
			APIKey: "${OPENAI_API_KEY}",
		},
		Database: DatabaseCfg{
			DSN: "${CHURCHSCAN_DB_DSN}",
		},
		Pipeline: PipelineCfg{
			FallbackOrder:  []string{"openrouter", "upstage", "gemini"},
			Verify:         false,
			TimeoutSeconds: 30,
			CacheTTLMin:    10,
		},
	}
}

// GetProvider returns a provider config by name.
func (c *Config) GetProvider(name string) (ProviderCfg, bool) {
	cfg, ok := c.Providers[name]
	return cfg, ok
}

// EnabledProviders returns the enabled providers in fallback order.
// Configured-but-disabled names drop out silently.
func (c *Config) EnabledProviders() []string {
	names := make([]string, 0, len(c.Pipeline.FallbackOrder))
	for _, name := range c.Pipeline.FallbackOrder {
		if cfg, ok := c.Providers[name]; ok && cfg.Enabled {
			names = append(names, name)
		}
	}
	return names
}
