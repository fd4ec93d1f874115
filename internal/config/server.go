package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	// DefaultPort is used when neither a flag, the environment nor server.port set one.
	DefaultPort = 9000
	// EnvPrefix prefixes the environment variables read into ServerOptions.
	EnvPrefix = "WEBCONF_"

	defaultRateLimitRPS   = 25.0
	defaultRateLimitBurst = 50
)

// ServerOptions holds the host server's runtime knobs.
// Precedence: CLI flags > Environment variables > Defaults
type ServerOptions struct {
	// Port overrides server.port when non-zero.
	Port                 int           `env:"PORT"`
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD"`
	ReadHeaderTimeout    time.Duration `env:"READ_HEADER_TIMEOUT"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT"`
	IdleTimeout          time.Duration `env:"IDLE_TIMEOUT"`
	EnableRequestLogging bool          `env:"REQUEST_LOGGING"`
	RateLimitRPS         float64       `env:"RATE_LIMIT_RPS"`
	RateLimitBurst       int           `env:"RATE_LIMIT_BURST"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	Port           *int
	RateLimitRPS   *float64
	RateLimitBurst *int
}

// LoadServerOptions resolves ServerOptions with precedence:
// CLI flags > Environment variables > Defaults
func LoadServerOptions(overrides *CLIOverrides) (ServerOptions, error) {
	opts := DefaultServerOptions()

	if err := env.ParseWithOptions(&opts, env.Options{Prefix: EnvPrefix}); err != nil {
		return ServerOptions{}, fmt.Errorf("parse environment: %w", err)
	}

	if overrides != nil {
		applyCLIOverrides(&opts, overrides)
	}

	if err := validateServerOptions(opts); err != nil {
		return ServerOptions{}, err
	}

	return opts, nil
}

// DefaultServerOptions returns ServerOptions with default values.
func DefaultServerOptions() ServerOptions {
	return ServerOptions{
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         15 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
	}
}

// ResolvePort picks the listen port: an explicit override, then the port
// resolved from the configuration file, then DefaultPort.
func (o ServerOptions) ResolvePort(resolved int, ok bool) int {
	switch {
	case o.Port != 0:
		return o.Port
	case ok && resolved > 0:
		return resolved
	default:
		return DefaultPort
	}
}

func applyCLIOverrides(opts *ServerOptions, overrides *CLIOverrides) {
	if overrides.Port != nil && *overrides.Port > 0 {
		opts.Port = *overrides.Port
	}

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		opts.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		opts.RateLimitBurst = *overrides.RateLimitBurst
	}
}

func validateServerOptions(opts ServerOptions) error {
	if opts.Port < 0 || opts.Port > 65535 {
		return fmt.Errorf("port must be within 0..65535, got %d", opts.Port)
	}
	if opts.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if opts.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	return nil
}
