package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/avdeev/notevault/internal/prefs"
	"github.com/avdeev/notevault/internal/storage"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Storage StorageConfig     `yaml:"storage"`
	KV      KVConfig          `yaml:"kv"`
	Cache   CacheConfig       `yaml:"cache"`
	Prefs   PrefsConfig       `yaml:"prefs"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.KV.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StorageConfig selects the backend mode and describes the reachable
// directories.
//
// Mode "files" serves notes from AppRoot (or a granted external directory
// once one is picked); mode "flat" pins the flat key-value backend.
// Mounts maps storage volume names to local directories a user may grant;
// Authority scopes the handles minted for them.
type StorageConfig struct {
	Mode      string            `yaml:"mode"`
	AppRoot   string            `yaml:"app_root"`
	Authority string            `yaml:"authority"`
	Mounts    map[string]string `yaml:"mounts"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	// Normalise empty mode to "files" so a minimal config works.
	if c.Mode == "" {
		c.Mode = storage.ModeFiles
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(storage.ModeFiles, storage.ModeFlat)),
	); err != nil {
		return err
	}
	if c.Mode == storage.ModeFiles && c.AppRoot == "" {
		return fmt.Errorf("storage: mode is %q but app_root is empty", storage.ModeFiles)
	}
	if len(c.Mounts) > 0 && c.Authority == "" {
		return fmt.Errorf("storage: mounts configured but authority is empty")
	}
	return nil
}

// KVConfig holds the key-value database configuration. The database backs
// the preference store in every mode and the notes themselves in flat
// mode.
type KVConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the key-value configuration.
func (c *KVConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// CacheConfig holds the read-cache configuration.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// PrefsConfig holds the preference store configuration.
type PrefsConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Storage: StorageConfig{
			Mode:    storage.ModeFiles,
			AppRoot: "./notes",
		},
		KV: KVConfig{
			Path: "./notevault.db",
		},
		Cache: CacheConfig{
			TTL: storage.DefaultCacheTTL,
		},
		Prefs: PrefsConfig{
			Timeout: prefs.DefaultTimeout,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
