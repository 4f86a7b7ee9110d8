package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

var configFileUsed string

// findConfigFile finds the config file to use.
// Priority: explicit path > sqlchat.yaml > sqlchat.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"sqlchat.yaml", "sqlchat.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// GetConfigFileUsed returns the config file loaded by the last Load call.
func GetConfigFileUsed() string {
	return configFileUsed
}

// Load builds the configuration from defaults, an optional yaml file,
// SQLCHAT_-prefixed environment variables, and explicitly-set CLI flags.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"server.port":              DefaultPort,
		"database.host":            DefaultDBHost,
		"database.port":            DefaultDBPort,
		"database.sslmode":         DefaultSSLMode,
		"database.max_conns":       DefaultMaxConns,
		"database.max_rows":        DefaultMaxRows,
		"database.acquire_timeout": DefaultAcquireTimeout.String(),
		"chat.auto_execute":        true,
		"chat.ratings":             true,
		"verbose":                  false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Environment variables. Double underscore separates nesting levels:
	// SQLCHAT_DATABASE__PASSWORD -> database.password
	if err := k.Load(env.Provider("SQLCHAT_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "SQLCHAT_"))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (highest priority), only those explicitly set.
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return &cfg, nil
}

// flagKeys bridges CLI flag names to config keys.
var flagKeys = map[string]string{
	"port":         "server.port",
	"database-url": "database.url",
	"model":        "model.default",
	"verbose":      "verbose",
}
