// Package config loads revbridge settings from a YAML file, REVBRIDGE_*
// environment variables and built-in defaults, in increasing order of
// precedence: defaults, file, environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"revbridge.dev/revbridge/internal/auth"
	"revbridge.dev/revbridge/internal/bridge"
	"revbridge.dev/revbridge/internal/rpc"
)

// EnvPrefix prefixes every environment override, e.g. REVBRIDGE_BACKEND_PATH.
const EnvPrefix = "REVBRIDGE"

// Config holds application configuration.
type Config struct {
	Backend BackendConfig `mapstructure:"backend"`
	Git     GitConfig     `mapstructure:"git"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Log     LogConfig     `mapstructure:"log"`
}

// BackendConfig describes the child process and its handshake.
type BackendConfig struct {
	Path         string        `mapstructure:"path"`
	Args         []string      `mapstructure:"args"`
	StartTimeout time.Duration `mapstructure:"start_timeout"`
	PingRetries  int           `mapstructure:"ping_retries"`
	PingDelay    time.Duration `mapstructure:"ping_delay"`
	CallTimeout  time.Duration `mapstructure:"call_timeout"`
}

// GitConfig selects the git executable. An empty Binary means the git of
// ToolchainDir when set, else git from PATH.
type GitConfig struct {
	Binary       string `mapstructure:"binary"`
	ToolchainDir string `mapstructure:"toolchain_dir"`
}

// AuthConfig holds OAuth provider settings.
type AuthConfig struct {
	ClientID      string        `mapstructure:"client_id"`
	DeviceCodeURL string        `mapstructure:"device_code_url"`
	TokenURL      string        `mapstructure:"token_url"`
	APIURL        string        `mapstructure:"api_url"`
	Scopes        []string      `mapstructure:"scopes"`
	SessionPath   string        `mapstructure:"session_path"`
	MaxWait       time.Duration `mapstructure:"max_wait"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	File string `mapstructure:"file"`
}

// DefaultDir returns the directory holding the config file and session.
func DefaultDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "revbridge")
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "revbridge")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "revbridge")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.path", "")
	v.SetDefault("backend.args", []string{})
	v.SetDefault("backend.start_timeout", bridge.DefaultStartTimeout)
	v.SetDefault("backend.ping_retries", bridge.DefaultPingRetries)
	v.SetDefault("backend.ping_delay", bridge.DefaultPingDelay)
	v.SetDefault("backend.call_timeout", rpc.DefaultCallTimeout)

	v.SetDefault("git.binary", "")
	v.SetDefault("git.toolchain_dir", "")

	v.SetDefault("auth.client_id", "")
	v.SetDefault("auth.device_code_url", "")
	v.SetDefault("auth.token_url", "")
	v.SetDefault("auth.api_url", "")
	v.SetDefault("auth.scopes", []string{"repo", "read:user", "user:email"})
	v.SetDefault("auth.session_path", filepath.Join(DefaultDir(), "session.json"))
	v.SetDefault("auth.max_wait", auth.DefaultMaxWait)

	v.SetDefault("log.file", "")
}

// Load reads configuration. An explicit path must exist; otherwise
// REVBRIDGE_CONFIG or DefaultDir()/config.yaml is read if present.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")

	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvPrefix + "_CONFIG")
		explicit = path != ""
	}
	if explicit {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(DefaultDir())
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the values that make sense without a backend path.
func (c Config) Validate() error {
	b := c.Backend
	if b.PingRetries < 1 {
		return fmt.Errorf("backend.ping_retries must be at least 1, got %d", b.PingRetries)
	}
	if b.PingDelay <= 0 {
		return fmt.Errorf("backend.ping_delay must be positive, got %s", b.PingDelay)
	}
	if b.CallTimeout <= 0 {
		return fmt.Errorf("backend.call_timeout must be positive, got %s", b.CallTimeout)
	}
	if budget := time.Duration(b.PingRetries) * b.PingDelay; b.StartTimeout <= budget {
		return fmt.Errorf("backend.start_timeout %s must exceed ping_retries × ping_delay (%s)", b.StartTimeout, budget)
	}
	if c.Auth.MaxWait <= 0 {
		return fmt.Errorf("auth.max_wait must be positive, got %s", c.Auth.MaxWait)
	}
	return nil
}

// ValidateBackend additionally requires a backend executable.
func (c Config) ValidateBackend() error {
	if c.Backend.Path == "" {
		return errors.New("backend.path is not configured (set it in the config file or REVBRIDGE_BACKEND_PATH)")
	}
	return c.BridgeOptions().Validate()
}

// BridgeOptions maps the backend settings onto the process supervisor.
func (c Config) BridgeOptions() bridge.Options {
	return bridge.Options{
		Path:         c.Backend.Path,
		Args:         c.Backend.Args,
		ToolchainDir: c.Git.ToolchainDir,
		PingRetries:  c.Backend.PingRetries,
		PingDelay:    c.Backend.PingDelay,
		StartTimeout: c.Backend.StartTimeout,
		CallTimeout:  c.Backend.CallTimeout,
	}
}

// AuthOptions maps the auth settings onto the authenticator.
func (c Config) AuthOptions() auth.Options {
	return auth.Options{
		ClientID:      c.Auth.ClientID,
		Scopes:        c.Auth.Scopes,
		DeviceCodeURL: c.Auth.DeviceCodeURL,
		TokenURL:      c.Auth.TokenURL,
		APIBaseURL:    c.Auth.APIURL,
		SessionPath:   c.Auth.SessionPath,
		MaxWait:       c.Auth.MaxWait,
	}
}
