package app

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/net/idna"

	"github.com/truthinlistings/dashboard/internal/apiclient"
	"github.com/truthinlistings/dashboard/internal/export"
	"github.com/truthinlistings/dashboard/internal/session"
)

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "TIL"

// Config is the dashboard's runtime configuration. It is built once at
// startup and handed to every component that needs part of it.
type Config struct {
	// Fraud API
	APIBaseURL      string        `mapstructure:"api_base_url"`
	APITimeout      time.Duration `mapstructure:"api_timeout"`
	SaveTimeout     time.Duration `mapstructure:"save_timeout"`
	WithCredentials bool          `mapstructure:"with_credentials"`
	APIKey          string        `mapstructure:"api_key"`

	// Dashboard server
	ListenAddr     string        `mapstructure:"listen_addr"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	SessionIdle    time.Duration `mapstructure:"session_idle"`
	SecureCookies  bool          `mapstructure:"secure_cookies"`

	// PDF export
	PDFEnabled bool          `mapstructure:"pdf_enabled"`
	ChromeBin  string        `mapstructure:"chrome_bin"`
	PDFTimeout time.Duration `mapstructure:"pdf_timeout"`

	LogLevel string `mapstructure:"log_level"`
}

// DefaultConfig returns a Config populated with development defaults.
func DefaultConfig() *Config {
	return &Config{
		APIBaseURL:     apiclient.DefaultBaseURL,
		APITimeout:     apiclient.DefaultTimeout,
		SaveTimeout:    apiclient.DefaultSaveTimeout,
		ListenAddr:     ":8080",
		AllowedOrigins: []string{"*"},
		SessionIdle:    session.DefaultIdleTimeout,
		PDFEnabled:     true,
		PDFTimeout:     export.DefaultTimeout,
		LogLevel:       "info",
	}
}

// APIConfig is the slice of Config the API client needs.
func (c *Config) APIConfig() apiclient.Config {
	return apiclient.Config{
		BaseURL:         c.APIBaseURL,
		Timeout:         c.APITimeout,
		SaveTimeout:     c.SaveTimeout,
		WithCredentials: c.WithCredentials,
		APIKey:          c.APIKey,
	}
}

// ExportConfig is the slice of Config the PDF renderer needs.
func (c *Config) ExportConfig() export.Config {
	return export.Config{ChromeBin: c.ChromeBin, Timeout: c.PDFTimeout}
}

// LoadOptions tune where Load looks.
type LoadOptions struct {
	// ConfigFile is an optional YAML, TOML or JSON file.
	ConfigFile string
	// EnvFiles are dotenv files loaded before the environment is read.
	// Missing files are ignored. Nil means ".env".
	EnvFiles []string
	// Bind lets the caller attach command-line flags before decoding.
	Bind func(v *viper.Viper) error
}

// Load merges defaults, the optional config file, the environment and any
// bound flags, in increasing precedence. The API base URL also honours the
// unprefixed API_BASE_URL used by the browser build.
func Load(opts LoadOptions) (*Config, error) {
	envFiles := opts.EnvFiles
	if envFiles == nil {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// godotenv never overrides variables already set.
		_ = godotenv.Load(f)
	}

	v := viper.New()
	def := DefaultConfig()
	v.SetDefault("api_base_url", def.APIBaseURL)
	v.SetDefault("api_timeout", def.APITimeout)
	v.SetDefault("save_timeout", def.SaveTimeout)
	v.SetDefault("with_credentials", def.WithCredentials)
	v.SetDefault("api_key", def.APIKey)
	v.SetDefault("listen_addr", def.ListenAddr)
	v.SetDefault("allowed_origins", def.AllowedOrigins)
	v.SetDefault("session_idle", def.SessionIdle)
	v.SetDefault("secure_cookies", def.SecureCookies)
	v.SetDefault("pdf_enabled", def.PDFEnabled)
	v.SetDefault("chrome_bin", def.ChromeBin)
	v.SetDefault("pdf_timeout", def.PDFTimeout)
	v.SetDefault("log_level", def.LogLevel)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("api_base_url", EnvPrefix+"_API_BASE_URL", "API_BASE_URL", "VITE_API_BASE_URL")
	_ = v.BindEnv("chrome_bin", EnvPrefix+"_CHROME_BIN", "CHROME_BIN")

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", opts.ConfigFile, err)
		}
	}
	if opts.Bind != nil {
		if err := opts.Bind(v); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate normalizes the base URL and checks the durations.
func (c *Config) Validate() error {
	u, err := NormalizeBaseURL(c.APIBaseURL)
	if err != nil {
		return err
	}
	c.APIBaseURL = u
	if c.APITimeout <= 0 {
		return errors.New("api_timeout must be positive")
	}
	if c.SaveTimeout <= 0 {
		return errors.New("save_timeout must be positive")
	}
	if c.SessionIdle <= 0 {
		return errors.New("session_idle must be positive")
	}
	return nil
}

// NormalizeBaseURL checks an http(s) base URL, converts an internationalized
// host to its ASCII form and drops trailing slashes, query and fragment.
func NormalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid API base URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid API base URL %q: scheme must be http or https", raw)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("invalid API base URL %q: missing host", raw)
	}
	ascii := host
	if net.ParseIP(host) == nil {
		if ascii, err = idna.Lookup.ToASCII(host); err != nil {
			return "", fmt.Errorf("invalid API base URL host %q: %w", host, err)
		}
	}
	switch port := u.Port(); {
	case port != "":
		u.Host = net.JoinHostPort(ascii, port)
	case strings.Contains(ascii, ":"):
		u.Host = "[" + ascii + "]"
	default:
		u.Host = ascii
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
