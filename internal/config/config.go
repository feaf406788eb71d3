package config

import "time"

// Config is the root configuration for Scout.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabaseConfig  `yaml:"database"`
	Search    SearchConfig    `yaml:"search"`
	Drive     DriveConfig     `yaml:"drive"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// AuthConfig protects the MCP endpoint. An empty token list disables auth,
// which validate only allows on a loopback host.
type AuthConfig struct {
	APITokens []APITokenEntry `yaml:"api_tokens"`
}

type APITokenEntry struct {
	Name      string `yaml:"name"`
	TokenHash string `yaml:"token_hash"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type SearchConfig struct {
	MaxWorkers  int           `yaml:"max_workers"`
	Timeout     time.Duration `yaml:"timeout"`
	EventBuffer int           `yaml:"event_buffer"`
	CacheSize   int           `yaml:"cache_size"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
	MaxResults  int           `yaml:"max_results"`
	NotesDirs   []string      `yaml:"notes_dirs"`
}

type DriveConfig struct {
	Enabled        bool          `yaml:"enabled"`
	APIURL         string        `yaml:"api_url"`
	TokenURL       string        `yaml:"token_url"`
	ClientID       string        `yaml:"client_id"`
	ClientSecret   string        `yaml:"client_secret"`
	RefreshToken   string        `yaml:"refresh_token"`
	PageSize       int           `yaml:"page_size"`
	MaxPages       int           `yaml:"max_pages"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "127.0.0.1",
			Port:     8430,
			LogLevel: "info",
		},
		Database: DatabaseConfig{
			Path: "~/.config/scout/scout.db",
		},
		Search: SearchConfig{
			MaxWorkers:  4,
			Timeout:     30 * time.Second,
			EventBuffer: 64,
			CacheSize:   256,
			CacheTTL:    2 * time.Minute,
			MaxResults:  50,
		},
		Drive: DriveConfig{
			APIURL:         "https://www.googleapis.com/drive/v2",
			TokenURL:       "https://oauth2.googleapis.com/token",
			PageSize:       100,
			MaxPages:       1000,
			RequestTimeout: 30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 120,
			Burst:             30,
		},
	}
}
