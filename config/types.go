package config

import (
	"fmt"
	"strings"
	"time"
)

// Duration wraps time.Duration so TOML files can use strings such as "15s".
type Duration struct {
	time.Duration
}

// UnmarshalText parses human readable duration strings.
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText renders the duration in time.Duration notation.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Logging controls the structured logger and its optional rotating file.
type Logging struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
	Compress   bool   `toml:"Compress"`
}

// RPC configures the gateway in front of the JSON-RPC server. Secrets are
// never stored in the file; the *Env fields name the variables holding them.
type RPC struct {
	AuthTokenEnv    string   `toml:"AuthTokenEnv"`
	JWTSecretEnv    string   `toml:"JWTSecretEnv"`
	JWTIssuer       string   `toml:"JWTIssuer"`
	JWTAudience     string   `toml:"JWTAudience"`
	RateLimitPerSec float64  `toml:"RateLimitPerSec"`
	RateLimitBurst  int      `toml:"RateLimitBurst"`
	AllowedOrigins  []string `toml:"AllowedOrigins"`
	ReadTimeout     Duration `toml:"ReadTimeout"`
	WriteTimeout    Duration `toml:"WriteTimeout"`
	ShutdownTimeout Duration `toml:"ShutdownTimeout"`
}

// Webhook configures outbound event delivery. An empty URL disables it.
type Webhook struct {
	URL       string   `toml:"URL"`
	SecretEnv string   `toml:"SecretEnv"`
	Events    []string `toml:"Events"`
}

// Pauses lists modules whose mutations are rejected at startup.
type Pauses struct {
	Supernode bool `toml:"Supernode"`
}

// IsPaused implements the ledger pause view.
func (p Pauses) IsPaused(module string) bool {
	switch strings.ToLower(strings.TrimSpace(module)) {
	case "supernode":
		return p.Supernode
	default:
		return false
	}
}
