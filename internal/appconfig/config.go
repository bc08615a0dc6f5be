package appconfig

import (
	"os"
	"path/filepath"
)

// Config is the on-disk configuration of culturessh.
type Config struct {
	ConfigVersion int           `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string        `mapstructure:"state_dir" yaml:"state_dir"`
	SSH           SSHConfig     `mapstructure:"ssh" yaml:"ssh"`
	TUI           TUIConfig     `mapstructure:"tui" yaml:"tui"`
	HTTP          HTTPConfig    `mapstructure:"http" yaml:"http"`
	AuthLog       AuthLogConfig `mapstructure:"auth_log" yaml:"auth_log"`
	Invite        InviteConfig  `mapstructure:"invite" yaml:"invite"`
}

// CurrentConfigVersion is the schema version this build reads.
const CurrentConfigVersion = 1

// SSHConfig configures the ssh listener.
type SSHConfig struct {
	Addr               string `mapstructure:"addr" yaml:"addr"`
	KeyDir             string `mapstructure:"key_dir" yaml:"key_dir"`
	InteractiveUser    string `mapstructure:"interactive_user" yaml:"interactive_user"`
	IdleTimeoutSeconds int    `mapstructure:"idle_timeout_seconds" yaml:"idle_timeout_seconds"`
}

// TUIConfig configures the interactive view.
type TUIConfig struct {
	TickMillis int    `mapstructure:"tick_ms" yaml:"tick_ms"`
	InviteLink string `mapstructure:"invite_link" yaml:"invite_link"`
}

// HTTPConfig configures the diagnostics endpoint.
type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// AuthLogConfig configures authentication attempt persistence. An empty
// path keeps attempts in memory.
type AuthLogConfig struct {
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
}

// InviteConfig configures the Discord invite client. Credentials are read
// from DISCORD_BOT_TOKEN and DISCORD_CHANNEL_ID.
type InviteConfig struct {
	APIBase        string `mapstructure:"api_base" yaml:"api_base"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	stateDir := filepath.Join(home, ".culturessh", "state")
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      stateDir,
		SSH: SSHConfig{
			Addr:               ":2222",
			KeyDir:             filepath.Join(stateDir, "keys"),
			InteractiveUser:    "tui",
			IdleTimeoutSeconds: 3600,
		},
		TUI: TUIConfig{
			TickMillis: 100,
			InviteLink: "discord.gg/12345",
		},
		HTTP: HTTPConfig{
			Enabled: false,
			Addr:    "127.0.0.1:2280",
		},
		AuthLog: AuthLogConfig{
			SQLitePath: filepath.Join(stateDir, "auth.db"),
		},
		Invite: InviteConfig{
			APIBase:        "https://discord.com/api/v10",
			TimeoutSeconds: 10,
		},
	}, nil
}

// DefaultConfigPath returns ~/.culturessh/config.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".culturessh", "config.yaml"), nil
}
