package app

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/penaku/opn-admin/internal/observability"
	"github.com/penaku/opn-admin/internal/tokenstore"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// StorageType represents the durable medium of the token store.
type StorageType string

const (
	StorageTypeFile    StorageType = "file"
	StorageTypeEnv     StorageType = "env"
	StorageTypeKeyring StorageType = "keyring"
)

// Default configuration values
const (
	DefaultConfigLogFormat         = LogFormatText
	DefaultConfigServerHost        = "127.0.0.1"
	DefaultConfigServerPort        = 3000
	DefaultConfigShutdownTimeout   = 5 * time.Second
	DefaultConfigBackendBaseURL    = "http://localhost:8000"
	DefaultConfigBackendAPIPrefix  = "/api/v1"
	DefaultConfigBackendTimeout    = 15 * time.Second
	DefaultConfigUploadTimeout     = 30 * time.Second
	DefaultConfigRefreshTimeout    = 15 * time.Second
	DefaultConfigStorage           = StorageTypeFile
	DefaultConfigStorageEnvPrefix  = "OPNADMIN_"
	DefaultConfigTelemetryExporter = observability.ExporterNone

	keyringService = "opn-admin"
	configDirName  = "opn-admin"
)

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"` // Port range 0-65535 handled by uint16 type
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout"`
}

// BackendConfig describes the REST backend.
type BackendConfig struct {
	// BaseURL is the backend origin, without the API prefix.
	BaseURL        string        `json:"base_url" validate:"required,url"`
	APIPrefix      string        `json:"api_prefix" validate:"required,startswith=/"`
	Timeout        time.Duration `json:"timeout" validate:"gt=0"`
	UploadTimeout  time.Duration `json:"upload_timeout" validate:"gt=0"`
	RefreshTimeout time.Duration `json:"refresh_timeout" validate:"gt=0"`
}

// APIBaseURL is the origin joined with the API prefix, e.g. "http://localhost:8000/api/v1".
func (b BackendConfig) APIBaseURL() string {
	return strings.TrimRight(b.BaseURL, "/") + "/" + strings.Trim(b.APIPrefix, "/")
}

// StorageConfig describes the token store mediums.
type StorageConfig struct {
	// Durable is the medium that outlives the process.
	Durable StorageType `json:"durable" validate:"required,oneof=file env keyring"`

	// Durable-specific settings (mutually exclusive based on Durable type)
	File        string `json:"file,omitempty"`         // For file storage: path to credentials file
	KeyringUser string `json:"keyring_user,omitempty"` // For keyring storage: user identifier
	EnvPrefix   string `json:"env_prefix,omitempty"`   // For env storage: variable name prefix

	// Session adds an in-memory per-process medium.
	Session bool `json:"session"`

	// CookieFile persists the cookie mirror. Empty keeps it in memory.
	CookieFile string `json:"cookie_file,omitempty"`
}

// TelemetryConfig routes logs through OpenTelemetry.
type TelemetryConfig struct {
	Exporter observability.Exporter `json:"exporter" validate:"oneof=none stdout otlp-http otlp-grpc"`
	Endpoint string                 `json:"endpoint,omitempty" validate:"omitempty,url"`
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel  slog.Level      `json:"log_level"`
	LogFormat LogFormat       `json:"log_format" validate:"oneof=text json"`
	Server    ServerConfig    `json:"server"`
	Shutdown  ShutdownConfig  `json:"shutdown"`
	Backend   BackendConfig   `json:"backend"`
	Storage   StorageConfig   `json:"storage"`
	Telemetry TelemetryConfig `json:"telemetry"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultConfigServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultConfigServerPort
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = DefaultConfigBackendBaseURL
	}
	if c.Backend.APIPrefix == "" {
		c.Backend.APIPrefix = DefaultConfigBackendAPIPrefix
	}
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = DefaultConfigBackendTimeout
	}
	if c.Backend.UploadTimeout == 0 {
		c.Backend.UploadTimeout = DefaultConfigUploadTimeout
	}
	if c.Backend.RefreshTimeout == 0 {
		c.Backend.RefreshTimeout = DefaultConfigRefreshTimeout
	}
	if c.Storage.Durable == "" {
		c.Storage.Durable = DefaultConfigStorage
	}
	if c.Telemetry.Exporter == "" {
		c.Telemetry.Exporter = DefaultConfigTelemetryExporter
	}

	// Dynamic defaults based on storage type
	switch c.Storage.Durable {
	case StorageTypeFile:
		if c.Storage.File == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("storage.file required (auto-detect failed: %w)", err)
			}
			c.Storage.File = filepath.Join(configDir, configDirName, "credentials.json")
		}
	case StorageTypeKeyring:
		if c.Storage.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("storage.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Storage.KeyringUser = currentUser.Username
		}
	case StorageTypeEnv:
		if c.Storage.EnvPrefix == "" {
			c.Storage.EnvPrefix = DefaultConfigStorageEnvPrefix
		}
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return err
	}

	if u, err := url.Parse(c.Backend.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("backend.base_url must be an http(s) URL: %q", c.Backend.BaseURL)
	}

	switch c.Storage.Durable {
	case StorageTypeFile:
		if c.Storage.File == "" {
			return errors.New("file path required for file storage")
		}
	case StorageTypeEnv:
		if c.Storage.EnvPrefix == "" {
			return errors.New("env_prefix required for env storage")
		}
		// Env is read-only, so refreshed credentials need somewhere to go
		if !c.Storage.Session {
			return errors.New("env storage is read-only and requires storage.session")
		}
	case StorageTypeKeyring:
		if c.Storage.KeyringUser == "" {
			return errors.New("keyring_user required for keyring storage")
		}
	}

	return nil
}

// NewTokenStore creates the token store described by the storage configuration.
func (s *StorageConfig) NewTokenStore() (*tokenstore.Store, error) {
	durable, err := s.newDurableBackend()
	if err != nil {
		return nil, fmt.Errorf("failed to create %s storage: %w", s.Durable, err)
	}

	var cookieOpts []tokenstore.CookieJarOption
	if s.CookieFile != "" {
		cookieOpts = append(cookieOpts, tokenstore.WithCookieFile(s.CookieFile))
	}
	cookies, err := tokenstore.NewCookieJar(cookieOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie mirror: %w", err)
	}

	var opts []tokenstore.Option
	if s.Durable == StorageTypeEnv {
		// Env credentials only seed the session medium so refreshes and logouts take effect
		opts = append(opts, tokenstore.WithSeed(durable))
	} else {
		opts = append(opts, tokenstore.WithMedium(string(s.Durable), durable))
	}
	if s.Session {
		opts = append(opts, tokenstore.WithMedium("session", tokenstore.NewMemoryBackend()))
	}
	opts = append(opts, tokenstore.WithCookieMirror(cookies))

	return tokenstore.New(opts...)
}

func (s *StorageConfig) newDurableBackend() (tokenstore.Backend, error) {
	switch s.Durable {
	case StorageTypeFile:
		return tokenstore.NewFileBackend(s.File)
	case StorageTypeEnv:
		return tokenstore.NewEnvBackend(s.EnvPrefix)
	case StorageTypeKeyring:
		return tokenstore.NewKeyringBackend(keyringService, s.KeyringUser)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", s.Durable)
	}
}
