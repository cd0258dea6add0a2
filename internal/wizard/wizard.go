// Package wizard provides an interactive setup wizard for icmp4a.
package wizard

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/marsounjan/icmp4a/internal/config"
)

// Result contains the wizard output.
type Result struct {
	Config     *config.Config
	ConfigPath string
}

// Answers holds the raw form values before they are folded into a config.
type Answers struct {
	ConfigPath    string
	Targets       string // one target per line
	Family        string
	Count         string
	Interval      string
	Timeout       string
	Size          string
	RatePerSecond string
	HealthEnabled bool
	HealthAddress string
	LogLevel      string
	LogFormat     string
}

// Wizard manages the interactive setup process.
type Wizard struct {
	theme *huh.Theme
}

// New creates a new setup wizard.
func New() *Wizard {
	return &Wizard{
		theme: huh.ThemeDracula(),
	}
}

// Run executes the interactive setup wizard.
func (w *Wizard) Run() (*Result, error) {
	w.printBanner()

	ans, err := w.ask()
	if err != nil {
		return nil, err
	}

	cfg, err := BuildConfig(ans)
	if err != nil {
		return nil, err
	}

	if err := WriteConfig(cfg, ans.ConfigPath); err != nil {
		return nil, err
	}

	w.printSummary(cfg, ans.ConfigPath)

	return &Result{
		Config:     cfg,
		ConfigPath: ans.ConfigPath,
	}, nil
}

func (w *Wizard) printBanner() {
	banner := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("212")).
		Render(`
  _                  _  _
 (_) ___ _ __ ___  _ __ | || |  __ _
 | |/ __| '_ ' _ \| '_ \| || |_ / _' |
 | | (__| | | | | | |_) |__   _| (_| |
 |_|\___|_| |_| |_| .__/   |_|  \__,_|
                  |_|
`)

	subtitle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render("  Unprivileged ICMP Measurement Service - Setup Wizard\n")

	fmt.Println(banner)
	fmt.Println(subtitle)
}

func (w *Wizard) ask() (Answers, error) {
	ans := Answers{
		ConfigPath:    "./config.yaml",
		Family:        "ipv4",
		Count:         "0",
		Interval:      "1s",
		Timeout:       "1s",
		Size:          "56",
		RatePerSecond: "0",
		HealthAddress: ":8080",
		LogLevel:      "info",
		LogFormat:     "text",
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Basic Setup").
				Description("Configure the service and where to write its config file."),

			huh.NewInput().
				Title("Config File Path").
				Placeholder("./config.yaml").
				Value(&ans.ConfigPath).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("config path is required")
					}
					if !strings.HasSuffix(s, ".yaml") && !strings.HasSuffix(s, ".yml") {
						return fmt.Errorf("config file should have .yaml or .yml extension")
					}
					return nil
				}),

			huh.NewText().
				Title("Targets").
				Description("One destination per line: addresses or hostnames.").
				Value(&ans.Targets).
				Validate(func(s string) error {
					if len(splitTargets(s)) == 0 {
						return fmt.Errorf("at least one target is required")
					}
					return nil
				}),

			huh.NewSelect[string]().
				Title("Address Family").
				Description("Used when a target is a hostname.").
				Options(
					huh.NewOption("IPv4", "ipv4"),
					huh.NewOption("IPv6", "ipv6"),
				).
				Value(&ans.Family),
		),

		huh.NewGroup(
			huh.NewNote().
				Title("Measurement").
				Description("Per-target attempt policy."),

			huh.NewInput().
				Title("Count").
				Description("Attempts per target, 0 for unbounded").
				Value(&ans.Count).
				Validate(validateNonNegativeInt),

			huh.NewInput().
				Title("Interval").
				Description("Cadence between attempts (e.g. 1s, 500ms)").
				Value(&ans.Interval).
				Validate(validateDuration),

			huh.NewInput().
				Title("Timeout").
				Description("Per-attempt reply deadline").
				Value(&ans.Timeout).
				Validate(validateDuration),

			huh.NewInput().
				Title("Payload Size").
				Description("Echo payload bytes").
				Value(&ans.Size).
				Validate(validatePositiveInt),

			huh.NewInput().
				Title("Send Rate Limit").
				Description("Aggregate sends per second, 0 for unlimited").
				Value(&ans.RatePerSecond).
				Validate(validateNonNegativeFloat),
		),

		huh.NewGroup(
			huh.NewNote().
				Title("Service Options"),

			huh.NewConfirm().
				Title("Enable health/metrics server?").
				Value(&ans.HealthEnabled),

			huh.NewInput().
				Title("Health Server Address").
				Value(&ans.HealthAddress),

			huh.NewSelect[string]().
				Title("Log Level").
				Options(
					huh.NewOption("debug", "debug"),
					huh.NewOption("info", "info"),
					huh.NewOption("warn", "warn"),
					huh.NewOption("error", "error"),
				).
				Value(&ans.LogLevel),

			huh.NewSelect[string]().
				Title("Log Format").
				Options(
					huh.NewOption("text", "text"),
					huh.NewOption("json", "json"),
				).
				Value(&ans.LogFormat),
		),
	).WithTheme(w.theme)

	if err := form.Run(); err != nil {
		return Answers{}, err
	}
	return ans, nil
}

// BuildConfig folds the form answers into a validated config.
func BuildConfig(ans Answers) (*config.Config, error) {
	cfg := config.Default()
	cfg.Log.Level = ans.LogLevel
	cfg.Log.Format = ans.LogFormat
	cfg.Ping.Family = ans.Family
	cfg.Targets = splitTargets(ans.Targets)
	cfg.Health.Enabled = ans.HealthEnabled
	cfg.Health.Address = ans.HealthAddress

	count, err := strconv.Atoi(strings.TrimSpace(ans.Count))
	if err != nil {
		return nil, fmt.Errorf("invalid count: %w", err)
	}
	cfg.Ping.Count = count

	interval, err := time.ParseDuration(strings.TrimSpace(ans.Interval))
	if err != nil {
		return nil, fmt.Errorf("invalid interval: %w", err)
	}
	cfg.Ping.Interval = interval

	timeout, err := time.ParseDuration(strings.TrimSpace(ans.Timeout))
	if err != nil {
		return nil, fmt.Errorf("invalid timeout: %w", err)
	}
	cfg.Ping.Timeout = timeout

	size, err := strconv.Atoi(strings.TrimSpace(ans.Size))
	if err != nil {
		return nil, fmt.Errorf("invalid payload size: %w", err)
	}
	cfg.Ping.Size = size

	perSecond, err := strconv.ParseFloat(strings.TrimSpace(ans.RatePerSecond), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid rate: %w", err)
	}
	cfg.Rate.PerSecond = perSecond

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WriteConfig renders the config as YAML and writes it to path.
func WriteConfig(cfg *config.Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (w *Wizard) printSummary(cfg *config.Config, path string) {
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("82")).
		Render("Setup complete")

	label := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	fmt.Println()
	fmt.Println(header)
	fmt.Printf("%s %s\n", label.Render("Config:"), path)
	fmt.Printf("%s %s\n", label.Render("Targets:"), strings.Join(cfg.Targets, ", "))
	if cfg.Health.Enabled {
		fmt.Printf("%s %s\n", label.Render("Health:"), cfg.Health.Address)
	}
	fmt.Println()
	fmt.Println(label.Render("Start the service with:"))
	fmt.Printf("  icmp4a serve --config %s\n\n", path)
}

func splitTargets(s string) []string {
	var targets []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			targets = append(targets, line)
		}
	}
	return targets
}

func validateDuration(s string) error {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid duration")
	}
	if d < 0 {
		return fmt.Errorf("duration must not be negative")
	}
	return nil
}

func validatePositiveInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return fmt.Errorf("must be a positive integer")
	}
	return nil
}

func validateNonNegativeInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return fmt.Errorf("must be zero or a positive integer")
	}
	return nil
}

func validateNonNegativeFloat(s string) error {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 {
		return fmt.Errorf("must be zero or a positive number")
	}
	return nil
}
