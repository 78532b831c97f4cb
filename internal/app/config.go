package app

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the feature toggles read at startup from config.yaml.
// Field names match snake_case YAML keys. Toggles gate user-facing paths
// only; the data model always carries the optional fields.
type Config struct {
	SuccessCriteria     bool `yaml:"success_criteria"`
	Feedback            bool `yaml:"feedback"`
	Telemetry           bool `yaml:"telemetry"`
	CompletionSummaries bool `yaml:"completion_summaries"`
	TimeTracking        bool `yaml:"time_tracking"`
	Deadlines           bool `yaml:"deadlines"`
	MinimalMode         bool `yaml:"minimal_mode"`
}

// DefaultConfig returns the out-of-the-box toggle set.
func DefaultConfig() Config {
	return Config{Telemetry: true}
}

// Effective returns the config with minimal_mode applied: when set, every
// other toggle reads as false.
func (c Config) Effective() Config {
	if !c.MinimalMode {
		return c
	}
	return Config{MinimalMode: true}
}

// FeatureNames lists the toggle keys accepted by `tm config --enable/--disable`.
func FeatureNames() []string {
	return []string{
		"success_criteria",
		"feedback",
		"telemetry",
		"completion_summaries",
		"time_tracking",
		"deadlines",
		"minimal_mode",
	}
}

// Set flips a named toggle. Returns false if the name is unknown.
func (c *Config) Set(name string, value bool) bool {
	switch name {
	case "success_criteria":
		c.SuccessCriteria = value
	case "feedback":
		c.Feedback = value
	case "telemetry":
		c.Telemetry = value
	case "completion_summaries":
		c.CompletionSummaries = value
	case "time_tracking":
		c.TimeTracking = value
	case "deadlines":
		c.Deadlines = value
	case "minimal_mode":
		c.MinimalMode = value
	default:
		return false
	}
	return true
}

// LoadConfig reads config.yaml from the state directory. A missing file
// yields the defaults; a malformed file is an error.
func LoadConfig(stateDir string) (Config, error) {
	b, err := os.ReadFile(ConfigPath(stateDir))
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes config.yaml into the state directory.
func SaveConfig(stateDir string, cfg Config) error {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := os.WriteFile(ConfigPath(stateDir), b, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
