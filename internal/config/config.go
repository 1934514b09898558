// Package config loads and saves switchdeck's TOML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all user-tunable settings.
type Config struct {
	// SteamRoot overrides Steam install discovery when set.
	SteamRoot string `toml:"steam_root,omitempty"`

	// SteamAPIKey enables profile metadata lookups (ban status, game
	// counts) when set. Get one at steamcommunity.com/dev/apikey.
	SteamAPIKey string `toml:"steam_api_key,omitempty"`

	// PersonaState is the state written to config.vdf after a
	// verified switch (0-6), or -1 to leave the file untouched.
	PersonaState int `toml:"persona_state"`

	// Strategies is the attempt order. Unknown names are rejected at
	// switch time, not load time, so configs survive version skew.
	Strategies []string `toml:"strategies"`

	Timeouts TimeoutSettings `toml:"timeouts"`
	Notify   NotifySettings  `toml:"notify"`
}

// TimeoutSettings bounds the waiting phases of a switch.
type TimeoutSettings struct {
	// Terminate is the per-process cap while shutting Steam down.
	Terminate Duration `toml:"terminate"`

	// Settle is how long to wait after termination before relaunching.
	Settle Duration `toml:"settle"`

	// Verify caps window-state polling after each strategy.
	Verify Duration `toml:"verify"`
}

// NotifySettings controls the optional progress webhook.
type NotifySettings struct {
	// Enabled controls whether webhook notifications are active.
	Enabled bool `toml:"enabled"`

	// WebhookURL receives switch progress events as JSON posts.
	WebhookURL string `toml:"webhook_url"`

	// OnAttempt posts per-strategy events (can be noisy).
	OnAttempt bool `toml:"on_attempt"`

	// OnResult posts terminal success/failure events.
	OnResult bool `toml:"on_result"`
}

// Duration wraps time.Duration so TOML reads "30s" style strings.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Value returns the underlying time.Duration.
func (d Duration) Value() time.Duration { return time.Duration(d) }

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SteamRoot:    "",
		PersonaState: -1,
		Strategies: []string{
			"login-argument",
			"registry-autologin",
			"config-rewrite",
		},
		Timeouts: TimeoutSettings{
			Terminate: Duration(10 * time.Second),
			Settle:    Duration(2 * time.Second),
			Verify:    Duration(30 * time.Second),
		},
		Notify: NotifySettings{
			Enabled:   false,
			OnAttempt: false, // Too noisy by default
			OnResult:  true,
		},
	}
}

// Path returns the config file location under the user config dir.
func Path() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(base, "switchdeck", "config.toml"), nil
}

// Load reads configuration from path. A missing file returns defaults,
// not an error; everything is opt-in.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parse %s: unknown key %q", path, undecoded[0].String())
	}
	return cfg, nil
}

// Save writes configuration to path, creating parent directories.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}
