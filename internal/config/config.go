// Package config loads the account credentials and CLI preferences from
// the user's config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const defaultPath = "~/.config/bryant/config.yaml"

// Config is the loaded file content. Username and Password must never be
// logged or echoed.
type Config struct {
	Username string
	Password string
	Zones    map[string]string
	CSVPath  string
}

// Load reads the config file at path, or the default location when path is
// empty. The file must provide credentials.username and
// credentials.password; zones (alias -> zone id) and csv.path are optional.
func Load(path string) (Config, error) {
	if path == "" {
		path = defaultPath
	}
	resolved, err := expand(path)
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(resolved)
	v.SetConfigType("yaml")
	v.SetDefault("csv.path", "hvac_status.csv")

	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config file %s not found; create it with a credentials section", resolved)
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Config{
		Username: strings.TrimSpace(v.GetString("credentials.username")),
		Password: v.GetString("credentials.password"),
		Zones:    v.GetStringMapString("zones"),
		CSVPath:  v.GetString("csv.path"),
	}
	if cfg.Username == "" || cfg.Password == "" {
		return Config{}, fmt.Errorf("config file %s must set credentials.username and credentials.password", resolved)
	}
	return cfg, nil
}

// ResolveZone maps a zone alias from the zones section to its zone id,
// case-insensitively. Unknown aliases pass through as raw zone ids.
func (c Config) ResolveZone(arg string) string {
	for alias, id := range c.Zones {
		if strings.EqualFold(alias, arg) {
			return id
		}
	}
	return arg
}

// expand resolves a leading ~ to the user's home directory.
func expand(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}
