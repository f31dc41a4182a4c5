package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"
)

// SetDefaults registers the defaults every other config source overrides.
func SetDefaults() {
	viper.SetDefault("bind-address", "127.0.0.1")
	viper.SetDefault("port", 8080)
	viper.SetDefault("log-level", "info")
	viper.SetDefault("prerender.service-url", DefaultServiceURL)
	viper.SetDefault("prerender.strip-application-name", false)
	viper.SetDefault("prerender.continue-after-render", false)
}

func GenerateTemplateConfig(writeToFile bool) (Config, error) {
	cfg := Config{
		BindAddress: "127.0.0.1",
		Port:        8080,

		LogLevel: "info",

		Origin:    "http://127.0.0.1:3000",
		APIServer: "127.0.0.1:9090",

		Prerender: PrerenderConfig{
			ServiceURL:         DefaultServiceURL,
			Token:              "",
			Blacklist:          []string{"^https?://[^/]+/admin"},
			ExtensionsToIgnore: []string{".woff2"},
			CrawlerUserAgents:  []string{"petalbot"},
		},
	}

	if writeToFile {
		data, err := yaml.Marshal(&cfg)
		if err != nil {
			return Config{}, fmt.Errorf("failed to marshal template config to YAML: %w", err)
		}
		if err := os.WriteFile("config.yaml", data, 0644); err != nil {
			return Config{}, fmt.Errorf("failed to write template config to file: %w", err)
		}
	}
	return cfg, nil
}
