package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultImage is a transparent 1x1 GIF shown while a flag loads.
	DefaultImage = "data:image/gif;base64,R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7"

	defaultCatalogURL  = "https://raw.githubusercontent.com/hjnilsson/country-flags/master/countries.json"
	defaultImageURL    = "https://raw.githubusercontent.com/hjnilsson/country-flags/master/svg/%s.svg"
	defaultContentType = "image/svg+xml"
)

// BaseCacheNamespaces are the cache namespaces every build recognises. Deployments
// extend them through cache.namespaces; the flag images namespace lives under "flags".
var BaseCacheNamespaces = map[string]string{
	"flags": "flag-quiz-flags-v1",
}

type Config struct {
	Env    string `yaml:"env"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Catalog struct {
		// Source is one of "http", "postgres" or "static".
		Source   string   `yaml:"source"`
		URL      string   `yaml:"url"`
		TTL      string   `yaml:"ttl"`
		Excluded []string `yaml:"excluded"`
	} `yaml:"catalog"`
	Images struct {
		URLTemplate string `yaml:"url_template"`
		ContentType string `yaml:"content_type"`
		Placeholder string `yaml:"placeholder"`
		Fallback    string `yaml:"fallback"`
		Timeout     string `yaml:"timeout"`
	} `yaml:"images"`
	Cache struct {
		Namespaces map[string]string `yaml:"namespaces"`
	} `yaml:"cache"`
	Quiz struct {
		Slots           int  `yaml:"slots"`
		Precache        bool `yaml:"precache"`
		WarmConcurrency int  `yaml:"warm_concurrency"`
	} `yaml:"quiz"`
}

// Load reads YAML config from path and fills in defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Default returns a config with every default applied, for running without a file.
func Default() Config {
	cfg := Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Env == "" {
		c.Env = "development"
	}
	if c.Catalog.Source == "" {
		c.Catalog.Source = "http"
	}
	if c.Catalog.URL == "" {
		c.Catalog.URL = defaultCatalogURL
	}
	// nil means "not configured"; an explicit empty list disables exclusions.
	if c.Catalog.Excluded == nil {
		// GB-NIR shares its flag with GB.
		c.Catalog.Excluded = []string{"GB-NIR"}
	}
	if c.Images.URLTemplate == "" {
		c.Images.URLTemplate = defaultImageURL
	}
	if c.Images.ContentType == "" {
		c.Images.ContentType = defaultContentType
	}
	if c.Images.Placeholder == "" {
		c.Images.Placeholder = DefaultImage
	}
	if c.Images.Fallback == "" {
		c.Images.Fallback = c.Images.Placeholder
	}
	if c.Quiz.Slots <= 0 {
		c.Quiz.Slots = 4
	}
	if c.Quiz.WarmConcurrency <= 0 {
		c.Quiz.WarmConcurrency = 8
	}
	c.Cache.Namespaces = MergeNamespaces(BaseCacheNamespaces, c.Cache.Namespaces)
}

// MergeNamespaces composes base cache namespaces with extensions; extensions win.
func MergeNamespaces(base, ext map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(ext))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range ext {
		out[k] = v
	}
	return out
}

// ImageNamespace is the cache namespace flag images are stored under.
func (c Config) ImageNamespace() string {
	return c.Cache.Namespaces["flags"]
}

// ValidNamespaces lists every namespace the current build recognises.
func (c Config) ValidNamespaces() []string {
	out := make([]string, 0, len(c.Cache.Namespaces))
	for _, ns := range c.Cache.Namespaces {
		out = append(out, ns)
	}
	return out
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
