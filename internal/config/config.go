// Package config provides configuration parsing and validation for icmp4a.
package config

import (
	"fmt"
	"net/netip"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/marsounjan/icmp4a/internal/icmp"
)

// Config represents the complete service configuration.
type Config struct {
	Log     LogConfig    `yaml:"log"`
	Ping    PingConfig   `yaml:"ping"`
	Targets []string     `yaml:"targets"`
	Rate    RateConfig   `yaml:"rate"`
	Health  HealthConfig `yaml:"health"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// PingConfig defines the measurement parameters applied to every target.
type PingConfig struct {
	Count     int           `yaml:"count"`     // attempts per target, 0 = unbounded
	Interval  time.Duration `yaml:"interval"`  // cadence between attempt starts
	Timeout   time.Duration `yaml:"timeout"`   // per-attempt reply deadline
	Size      int           `yaml:"size"`      // echo payload bytes
	Family    string        `yaml:"family"`    // ipv4, ipv6
	Interface string        `yaml:"interface"` // optional device binding
}

// RateConfig bounds the aggregate send rate across all targets.
type RateConfig struct {
	PerSecond float64 `yaml:"per_second"` // 0 = unlimited
	Burst     int     `yaml:"burst"`
}

// HealthConfig defines health check server settings.
type HealthConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Ping: PingConfig{
			Count:    0,
			Interval: time.Second,
			Timeout:  time.Second,
			Size:     icmp.DefaultPayloadLen,
			Family:   "ipv4",
		},
		Targets: []string{},
		Rate: RateConfig{
			PerSecond: 0,
			Burst:     1,
		},
		Health: HealthConfig{
			Enabled:      false,
			Address:      ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse parses configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := expandEnvVars(string(data))

	// Start with defaults
	cfg := Default()

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// envVarRegex matches ${VAR} or $VAR patterns
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars replaces environment variable references with their values.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		var name string
		if strings.HasPrefix(match, "${") {
			name = match[2 : len(match)-1]
		} else {
			name = match[1:]
		}

		// Handle default values: ${VAR:-default}
		if idx := strings.Index(name, ":-"); idx != -1 {
			varName := name[:idx]
			defaultVal := name[idx+2:]
			if val, ok := os.LookupEnv(varName); ok {
				return val
			}
			return defaultVal
		}

		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match // Keep original if not found
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if !isValidLogLevel(c.Log.Level) {
		errs = append(errs, fmt.Sprintf("invalid log.level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}
	if !isValidLogFormat(c.Log.Format) {
		errs = append(errs, fmt.Sprintf("invalid log.format: %s (must be text or json)", c.Log.Format))
	}

	family, err := c.Family()
	if err != nil {
		errs = append(errs, err.Error())
	}

	if c.Ping.Count < 0 {
		errs = append(errs, "ping.count must not be negative")
	}
	if c.Ping.Timeout <= 0 {
		errs = append(errs, "ping.timeout must be positive")
	}
	if c.Ping.Interval < 0 {
		errs = append(errs, "ping.interval must not be negative")
	}
	if c.Ping.Size < 1 {
		errs = append(errs, "ping.size must be positive")
	} else if err == nil && c.Ping.Size > family.MaxPayloadLen() {
		errs = append(errs, fmt.Sprintf("ping.size %d exceeds %s maximum %d", c.Ping.Size, family, family.MaxPayloadLen()))
	}

	for i, t := range c.Targets {
		if strings.TrimSpace(t) == "" {
			errs = append(errs, fmt.Sprintf("targets[%d]: empty target", i))
		}
	}

	if c.Rate.PerSecond < 0 {
		errs = append(errs, "rate.per_second must not be negative")
	}
	if c.Rate.PerSecond > 0 && c.Rate.Burst < 1 {
		errs = append(errs, "rate.burst must be at least 1 when rate limiting is enabled")
	}

	if c.Health.Enabled && c.Health.Address == "" {
		errs = append(errs, "health.address is required when enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// Family maps the configured family string to the wire-level constant.
func (c *Config) Family() (icmp.Family, error) {
	switch strings.ToLower(c.Ping.Family) {
	case "", "ipv4", "4", "ip4":
		return icmp.IPv4, nil
	case "ipv6", "6", "ip6":
		return icmp.IPv6, nil
	default:
		return icmp.IPv4, fmt.Errorf("invalid ping.family: %s (must be ipv4 or ipv6)", c.Ping.Family)
	}
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func isValidLogFormat(format string) bool {
	switch format {
	case "text", "json":
		return true
	default:
		return false
	}
}

// IsLiteralTarget reports whether a target is an address literal rather
// than a name needing resolution.
func IsLiteralTarget(target string) bool {
	_, err := netip.ParseAddr(target)
	return err == nil
}

// String returns the YAML rendering of the config (for debugging).
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}
