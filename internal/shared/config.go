package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

const (
	// MaxBatchSize is the Spotify limit on items per playlist write.
	MaxBatchSize = 100

	defaultRetryAfter = 5 * time.Second
)

// Config represents the application configuration loaded from a TOML file and the environment.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	CSV         CSVConfig         `toml:"csv"`
	Playlists   []PlaylistConfig  `toml:"playlists"`
	Selection   SelectionConfig   `toml:"selection"`
	Resolver    ResolverConfig    `toml:"resolver"`
	Writer      WriterConfig      `toml:"writer"`
	Server      ServerConfig      `toml:"server"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials.
//
// AccessToken is only ever read from the environment.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RefreshToken string `toml:"refresh_token"`
	RedirectURI  string `toml:"redirect_uri"`
	AccessToken  string `toml:"-"`
}

// CSVConfig describes where the track list comes from.
type CSVConfig struct {
	Path           string `toml:"path"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// PlaylistConfig is one destination playlist and its per-artist cap.
type PlaylistConfig struct {
	Name         string `toml:"name"`
	ID           string `toml:"id"`
	MaxPerArtist int    `toml:"max_per_artist"`
}

// SelectionConfig controls what happens between resolution and writing.
type SelectionConfig struct {
	Dedupe  bool `toml:"dedupe"`
	Shuffle bool `toml:"shuffle"`
}

// ResolverConfig controls catalog lookups.
type ResolverConfig struct {
	SearchRate float64 `toml:"search_rate"`
}

// WriterConfig controls playlist writes.
type WriterConfig struct {
	BatchSize         int `toml:"batch_size"`
	RetryAfterSeconds int `toml:"retry_after_seconds"`
}

// ServerConfig contains the local callback server settings used by the auth helper.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// LoadConfig reads a TOML configuration file from path, layered over the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	// Destinations come from the file alone when it declares any.
	config.Playlists = nil
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	if len(config.Playlists) == 0 {
		config.Playlists = DefaultConfig().Playlists
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w at %s", ErrConfigExists, path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides configuration values with environment variables.
//
// lookup is usually [os.LookupEnv]; tests pass a map-backed function.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s must be an integer, got %q", ErrInvalidConfig, key, v)
		}
		*dst = n
		return nil
	}

	spotify := &c.Credentials.Spotify
	str("SPOTIFY_ACCESS_TOKEN", &spotify.AccessToken)
	str("SPOTIFY_REFRESH_TOKEN", &spotify.RefreshToken)
	str("SPOTIFY_CLIENT_ID", &spotify.ClientID)
	str("SPOTIFY_CLIENT_SECRET", &spotify.ClientSecret)
	str("SPOTIFY_REDIRECT_URI", &spotify.RedirectURI)
	str("CSV_PATH", &c.CSV.Path)
	str("LOG_LEVEL", &c.Log.Level)

	for i, prefix := range []string{"PLAYLIST_ONE", "PLAYLIST_TWO"} {
		for len(c.Playlists) <= i {
			c.Playlists = append(c.Playlists, PlaylistConfig{Name: fmt.Sprintf("playlist %d", len(c.Playlists)+1)})
		}
		str(prefix+"_ID", &c.Playlists[i].ID)
		if err := num(prefix+"_MAX_PER_ARTIST", &c.Playlists[i].MaxPerArtist); err != nil {
			return err
		}
	}

	return nil
}

// Validate checks that the configuration can drive a run.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.CSV.Path) == "" {
		return fmt.Errorf("%w: csv path is empty", ErrInvalidConfig)
	}
	if len(c.Playlists) == 0 {
		return fmt.Errorf("%w: no destination playlists configured", ErrInvalidConfig)
	}
	for i, p := range c.Playlists {
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("%w: playlist %d has no id", ErrInvalidConfig, i+1)
		}
		if p.MaxPerArtist < 1 {
			return fmt.Errorf("%w: playlist %s max_per_artist must be at least 1", ErrInvalidConfig, p.ID)
		}
	}
	if c.Writer.BatchSize < 0 || c.Writer.BatchSize > MaxBatchSize {
		return fmt.Errorf("%w: writer batch_size must be between 1 and %d", ErrInvalidConfig, MaxBatchSize)
	}
	return nil
}

// Size returns the configured write batch size, clamped to the API limit.
func (w WriterConfig) Size() int {
	if w.BatchSize <= 0 || w.BatchSize > MaxBatchSize {
		return MaxBatchSize
	}
	return w.BatchSize
}

// RetryAfter is the wait used when a rate-limited response carries no Retry-After header.
func (w WriterConfig) RetryAfter() time.Duration {
	if w.RetryAfterSeconds <= 0 {
		return defaultRetryAfter
	}
	return time.Duration(w.RetryAfterSeconds) * time.Second
}

// Timeout returns the HTTP timeout for fetching a remote CSV.
func (c CSVConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Update stores the tokens returned by an authorization code exchange.
func (s *SpotifyConfig) Update(token *oauth2.Token) error {
	if token == nil {
		return fmt.Errorf("%w: nil token", ErrInvalidCredentials)
	}
	if token.RefreshToken == "" {
		return ErrNoRefreshToken
	}
	s.RefreshToken = token.RefreshToken
	return nil
}

// Env returns the credential keys written to a .env file by the auth helper.
func (s SpotifyConfig) Env() map[string]string {
	return map[string]string{
		"SPOTIFY_CLIENT_ID":     s.ClientID,
		"SPOTIFY_CLIENT_SECRET": s.ClientSecret,
		"SPOTIFY_REFRESH_TOKEN": s.RefreshToken,
	}
}
