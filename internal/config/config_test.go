package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/marsounjan/icmp4a/internal/icmp"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %s, want info", cfg.Log.Level)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %s, want text", cfg.Log.Format)
	}
	if cfg.Ping.Interval != time.Second {
		t.Errorf("Ping.Interval = %v, want 1s", cfg.Ping.Interval)
	}
	if cfg.Ping.Timeout != time.Second {
		t.Errorf("Ping.Timeout = %v, want 1s", cfg.Ping.Timeout)
	}
	if cfg.Ping.Size != icmp.DefaultPayloadLen {
		t.Errorf("Ping.Size = %d, want %d", cfg.Ping.Size, icmp.DefaultPayloadLen)
	}
	if cfg.Health.Address != ":8080" {
		t.Errorf("Health.Address = %s, want :8080", cfg.Health.Address)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestParse_ValidConfig(t *testing.T) {
	yamlConfig := `
log:
  level: "debug"
  format: "json"

ping:
  count: 10
  interval: 500ms
  timeout: 2s
  size: 120
  family: ipv6
  interface: eth0

targets:
  - "2001:db8::1"
  - "ping.example.com"

rate:
  per_second: 50
  burst: 5

health:
  enabled: true
  address: "127.0.0.1:9090"
  read_timeout: 5s
  write_timeout: 5s
`

	cfg, err := Parse([]byte(yamlConfig))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %s, want debug", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %s, want json", cfg.Log.Format)
	}
	if cfg.Ping.Count != 10 {
		t.Errorf("Ping.Count = %d, want 10", cfg.Ping.Count)
	}
	if cfg.Ping.Interval != 500*time.Millisecond {
		t.Errorf("Ping.Interval = %v, want 500ms", cfg.Ping.Interval)
	}
	if cfg.Ping.Timeout != 2*time.Second {
		t.Errorf("Ping.Timeout = %v, want 2s", cfg.Ping.Timeout)
	}
	if cfg.Ping.Size != 120 {
		t.Errorf("Ping.Size = %d, want 120", cfg.Ping.Size)
	}
	if cfg.Ping.Interface != "eth0" {
		t.Errorf("Ping.Interface = %s, want eth0", cfg.Ping.Interface)
	}
	if len(cfg.Targets) != 2 {
		t.Fatalf("len(Targets) = %d, want 2", len(cfg.Targets))
	}
	if cfg.Rate.PerSecond != 50 {
		t.Errorf("Rate.PerSecond = %v, want 50", cfg.Rate.PerSecond)
	}
	if !cfg.Health.Enabled {
		t.Error("Health.Enabled = false, want true")
	}
	if cfg.Health.ReadTimeout != 5*time.Second {
		t.Errorf("Health.ReadTimeout = %v, want 5s", cfg.Health.ReadTimeout)
	}

	family, err := cfg.Family()
	if err != nil {
		t.Fatalf("Family() error = %v", err)
	}
	if family != icmp.IPv6 {
		t.Errorf("Family() = %v, want IPv6", family)
	}
}

func TestParse_DefaultsPreserved(t *testing.T) {
	cfg, err := Parse([]byte(`targets: ["192.0.2.1"]`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Ping.Interval != time.Second {
		t.Errorf("Ping.Interval = %v, want default 1s", cfg.Ping.Interval)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %s, want default info", cfg.Log.Level)
	}
}

func TestParse_InvalidConfigs(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad log level", "log:\n  level: chatty", "invalid log.level"},
		{"bad log format", "log:\n  format: xml", "invalid log.format"},
		{"bad family", "ping:\n  family: ipx", "invalid ping.family"},
		{"negative count", "ping:\n  count: -1", "ping.count"},
		{"zero timeout", "ping:\n  timeout: 0s", "ping.timeout"},
		{"negative interval", "ping:\n  interval: -1s", "ping.interval"},
		{"zero size", "ping:\n  size: 0", "ping.size"},
		{"oversized payload", "ping:\n  size: 70000", "exceeds"},
		{"empty target", "targets: [\"\"]", "empty target"},
		{"negative rate", "rate:\n  per_second: -1", "rate.per_second"},
		{"zero burst", "rate:\n  per_second: 10\n  burst: 0", "rate.burst"},
		{"health without address", "health:\n  enabled: true\n  address: \"\"", "health.address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestParse_OversizedIPv6Payload(t *testing.T) {
	yaml := "ping:\n  family: ipv6\n  size: 70000"
	if _, err := Parse([]byte(yaml)); err != nil {
		t.Errorf("Parse() error = %v, want ok (70000 fits the IPv6 maximum)", err)
	}
}

func TestParse_EnvExpansion(t *testing.T) {
	os.Setenv("ICMP4A_TEST_TARGET", "192.0.2.9")
	defer os.Unsetenv("ICMP4A_TEST_TARGET")

	cfg, err := Parse([]byte("targets:\n  - \"${ICMP4A_TEST_TARGET}\"\n  - \"${ICMP4A_TEST_MISSING:-198.51.100.1}\""))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Targets[0] != "192.0.2.9" {
		t.Errorf("Targets[0] = %s, want expanded value", cfg.Targets[0])
	}
	if cfg.Targets[1] != "198.51.100.1" {
		t.Errorf("Targets[1] = %s, want fallback value", cfg.Targets[1])
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "ping:\n  count: 4\ntargets:\n  - \"192.0.2.1\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Ping.Count != 4 {
		t.Errorf("Ping.Count = %d, want 4", cfg.Ping.Count)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Load() of missing file succeeded, want error")
	}
}

func TestIsLiteralTarget(t *testing.T) {
	if !IsLiteralTarget("192.0.2.1") || !IsLiteralTarget("2001:db8::1") {
		t.Error("address literals not recognized")
	}
	if IsLiteralTarget("ping.example.com") {
		t.Error("hostname misidentified as literal")
	}
}
