package config

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// DefaultServiceURL is the public rendering service used when none is configured.
const DefaultServiceURL = "http://service.prerender.io/"

type Config struct {
	BindAddress     string `yaml:"bind-address" validate:"required,ip"`
	Port            int    `yaml:"port" validate:"min=1,max=65535"`
	ListenAddr      string `yaml:"-"`
	LogLevel        string `yaml:"log-level" validate:"oneof=debug info warn error"`
	LogFile         string `yaml:"log-file,omitempty"`
	Origin          string `yaml:"origin,omitempty" validate:"omitempty,url"`
	APIServer       string `yaml:"api-server,omitempty" validate:"omitempty,hostname_port"`
	APIServerSecret string `yaml:"api-server-secret,omitempty"`
	StatsDir        string `yaml:"stats-dir,omitempty"`

	Prerender PrerenderConfig `yaml:"prerender"`
}

// PrerenderConfig is shared read-only by every request evaluation.
type PrerenderConfig struct {
	ServiceURL           string      `yaml:"service-url" validate:"required,url"`
	Token                string      `yaml:"token,omitempty"`
	Blacklist            []string    `yaml:"blacklist,omitempty"`
	Whitelist            []string    `yaml:"whitelist,omitempty"`
	ExtensionsToIgnore   []string    `yaml:"extensions-to-ignore,omitempty"`
	CrawlerUserAgents    []string    `yaml:"crawler-user-agents,omitempty"`
	Proxy                ProxyConfig `yaml:"proxy,omitempty"`
	StripApplicationName bool        `yaml:"strip-application-name"`
	BasePath             string      `yaml:"base-path,omitempty" validate:"omitempty,startswith=/"`
	ContinueAfterRender  bool        `yaml:"continue-after-render"`
}

// ProxyConfig routes upstream calls through an HTTP proxy when URL is set.
type ProxyConfig struct {
	URL  string `yaml:"url,omitempty"`
	Port int    `yaml:"port,omitempty" validate:"omitempty,min=1,max=65535"`
}

func (p ProxyConfig) Enabled() bool {
	return strings.TrimSpace(p.URL) != ""
}

// Address returns the proxy address with the port applied, if any.
func (p ProxyConfig) Address() string {
	addr := strings.TrimSpace(p.URL)
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	if p.Port == 0 {
		return addr
	}
	scheme, host, _ := strings.Cut(addr, "://")
	host = strings.TrimSuffix(host, "/")
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return scheme + "://" + net.JoinHostPort(host, strconv.Itoa(p.Port))
}

var validate = validator.New()

// BuildConfigFromViper decodes and validates the merged viper state
// (defaults, config file, env and flags).
func BuildConfigFromViper() (*Config, error) {
	var cfg Config
	err := viper.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToSliceHookFunc(","),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("viper.Unmarshal: %w", err)
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if cfg.Prerender.ServiceURL == "" {
		cfg.Prerender.ServiceURL = DefaultServiceURL
	}
	cfg.Prerender.Blacklist = compact(cfg.Prerender.Blacklist)
	cfg.Prerender.Whitelist = compact(cfg.Prerender.Whitelist)
	cfg.Prerender.ExtensionsToIgnore = compact(cfg.Prerender.ExtensionsToIgnore)
	cfg.Prerender.CrawlerUserAgents = compact(cfg.Prerender.CrawlerUserAgents)

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg.ListenAddr = net.JoinHostPort(cfg.BindAddress, strconv.Itoa(cfg.Port))
	return &cfg, nil
}

// compact drops blank entries, which env and flag input tend to produce.
func compact(list []string) []string {
	if len(list) == 0 {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Redacted returns a copy safe to expose over the API.
func (c *Config) Redacted() Config {
	r := *c
	if r.Prerender.Token != "" {
		r.Prerender.Token = "******"
	}
	if r.APIServerSecret != "" {
		r.APIServerSecret = "******"
	}
	return r
}

func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("Log Level", c.LogLevel),
		slog.String("Listen Address", c.ListenAddr),
		slog.String("Origin", c.Origin),
		slog.String("API Server", c.APIServer),
		slog.Any("Prerender", c.Prerender),
	)
}

func (p PrerenderConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("Service URL", p.ServiceURL),
		slog.Bool("Token", p.Token != ""),
		slog.Int("Blacklist", len(p.Blacklist)),
		slog.Int("Whitelist", len(p.Whitelist)),
		slog.Int("Extra Extensions", len(p.ExtensionsToIgnore)),
		slog.Int("Extra Crawlers", len(p.CrawlerUserAgents)),
		slog.String("Proxy", p.Proxy.URL),
		slog.Bool("Strip Application Name", p.StripApplicationName),
		slog.Bool("Continue After Render", p.ContinueAfterRender),
	)
}
