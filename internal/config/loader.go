package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// searchPaths returns the ordered list of config file locations to try.
func searchPaths() []string {
	paths := []string{
		"/etc/scout/scout.yaml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "scout", "scout.yaml"))
	}

	paths = append(paths, "scout.yaml")

	if envPath := os.Getenv("SCOUT_CONFIG"); envPath != "" {
		paths = append(paths, envPath)
	}

	return paths
}

// Load reads configuration from YAML files and environment variables.
// Files are loaded in order (each overrides the previous):
// /etc/scout/scout.yaml < ~/.config/scout/scout.yaml < ./scout.yaml < $SCOUT_CONFIG
func Load() (*Config, error) {
	cfg := Defaults()

	for _, path := range searchPaths() {
		if err := loadFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	cfg := Defaults()

	if err := loadFile(cfg, path); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables have higher priority than YAML config values.
func applyEnvOverrides(cfg *Config) {
	if secret := os.Getenv("SCOUT_DRIVE_CLIENT_SECRET"); secret != "" {
		cfg.Drive.ClientSecret = secret
	}
	if token := os.Getenv("SCOUT_DRIVE_REFRESH_TOKEN"); token != "" {
		cfg.Drive.RefreshToken = token
	}
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from trusted config search paths
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	slog.Debug("loading config file", "path", path)

	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	return nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	if len(cfg.Auth.APITokens) == 0 && !isLoopback(cfg.Server.Host) {
		return fmt.Errorf("auth.api_tokens is required when server.host is not a loopback address (got %s)", cfg.Server.Host)
	}

	if cfg.Search.MaxWorkers < 1 {
		return fmt.Errorf("search.max_workers must be at least 1")
	}

	if cfg.Search.EventBuffer < 1 {
		return fmt.Errorf("search.event_buffer must be at least 1")
	}

	if cfg.Drive.PageSize < 1 || cfg.Drive.PageSize > 1000 {
		return fmt.Errorf("drive.page_size must be between 1 and 1000, got %d", cfg.Drive.PageSize)
	}

	if cfg.Drive.MaxPages < 0 {
		return fmt.Errorf("drive.max_pages must not be negative")
	}

	if cfg.Drive.Enabled && cfg.Drive.ClientID == "" {
		return fmt.Errorf("drive.client_id is required when drive is enabled")
	}

	cfg.Database.Path = ExpandHome(cfg.Database.Path)
	for i, dir := range cfg.Search.NotesDirs {
		cfg.Search.NotesDirs[i] = ExpandHome(dir)
	}

	return nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
