package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "PRERENDER"

// envKeys maps nested config keys to the flat variable names operators use.
// Top-level keys follow the automatic PRERENDER_<KEY> form.
var envKeys = map[string]string{
	"prerender.service-url":            "PRERENDER_SERVICE_URL",
	"prerender.token":                  "PRERENDER_TOKEN",
	"prerender.blacklist":              "PRERENDER_BLACKLIST",
	"prerender.whitelist":              "PRERENDER_WHITELIST",
	"prerender.extensions-to-ignore":   "PRERENDER_EXTENSIONS_TO_IGNORE",
	"prerender.crawler-user-agents":    "PRERENDER_CRAWLER_USER_AGENTS",
	"prerender.proxy.url":              "PRERENDER_PROXY_URL",
	"prerender.proxy.port":             "PRERENDER_PROXY_PORT",
	"prerender.strip-application-name": "PRERENDER_STRIP_APPLICATION_NAME",
	"prerender.base-path":              "PRERENDER_BASE_PATH",
	"prerender.continue-after-render":  "PRERENDER_CONTINUE_AFTER_RENDER",
}

// BindEnv wires environment variables into viper.
func BindEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	for key, env := range envKeys {
		_ = viper.BindEnv(key, env)
	}
}

// LoadDotEnv reads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotEnv(files ...string) error {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("godotenv.Load %s: %w", file, err)
		}
	}
	return nil
}
