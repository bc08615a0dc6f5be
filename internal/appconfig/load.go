package appconfig

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
	"pkt.systems/culturessh/schema"
)

// Load reads the config at path on top of the defaults. A missing file
// yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("ssh.addr", cfg.SSH.Addr)
	v.SetDefault("ssh.key_dir", cfg.SSH.KeyDir)
	v.SetDefault("ssh.interactive_user", cfg.SSH.InteractiveUser)
	v.SetDefault("ssh.idle_timeout_seconds", cfg.SSH.IdleTimeoutSeconds)
	v.SetDefault("tui.tick_ms", cfg.TUI.TickMillis)
	v.SetDefault("tui.invite_link", cfg.TUI.InviteLink)
	v.SetDefault("http.enabled", cfg.HTTP.Enabled)
	v.SetDefault("http.addr", cfg.HTTP.Addr)
	v.SetDefault("auth_log.sqlite_path", cfg.AuthLog.SQLitePath)
	v.SetDefault("invite.api_base", cfg.Invite.APIBase)
	v.SetDefault("invite.timeout_seconds", cfg.Invite.TimeoutSeconds)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	} else {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted.
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.SSH.InteractiveUser) == "" {
		return fmt.Errorf("%w: ssh.interactive_user must not be empty", schema.ErrInvalidConfig)
	}
	if _, _, err := net.SplitHostPort(cfg.SSH.Addr); err != nil {
		return fmt.Errorf("%w: ssh.addr: %v", schema.ErrInvalidConfig, err)
	}
	if cfg.SSH.IdleTimeoutSeconds < 0 {
		return fmt.Errorf("%w: ssh.idle_timeout_seconds must not be negative", schema.ErrInvalidConfig)
	}
	if cfg.TUI.TickMillis <= 0 {
		return fmt.Errorf("%w: tui.tick_ms must be positive", schema.ErrInvalidConfig)
	}
	if cfg.HTTP.Enabled {
		if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
			return fmt.Errorf("%w: http.addr: %v", schema.ErrInvalidConfig, err)
		}
	}
	if cfg.Invite.TimeoutSeconds < 0 {
		return fmt.Errorf("%w: invite.timeout_seconds must not be negative", schema.ErrInvalidConfig)
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.StateDir = expandEnv(cfg.StateDir)
	cfg.SSH.KeyDir = expandEnv(cfg.SSH.KeyDir)
	cfg.AuthLog.SQLitePath = expandEnv(cfg.AuthLog.SQLitePath)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to path and returns the path used.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
