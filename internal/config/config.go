package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models trustops.yml.
type Config struct {
	Organization struct {
		ID       string `yaml:"id"`
		Name     string `yaml:"name"`
		Industry string `yaml:"industry"`
		Size     string `yaml:"size"`
		Country  string `yaml:"country"`
	} `yaml:"organization"`
	Options struct {
		Domains          []string `yaml:"domains"`
		Categories       []string `yaml:"categories"`
		IssueTypes       []string `yaml:"issue_types"`
		NeedExpectations []string `yaml:"need_expectations"`
	} `yaml:"options"`
	Risk struct {
		Likelihood []ScaleLevel `yaml:"likelihood"`
		Impact     []ScaleLevel `yaml:"impact"`
		Bands      struct {
			Medium   int `yaml:"medium"`
			High     int `yaml:"high"`
			Critical int `yaml:"critical"`
		} `yaml:"bands"`
	} `yaml:"risk"`
}

// ScaleLevel is one step of the likelihood or impact scale.
type ScaleLevel struct {
	Score       int    `yaml:"score"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; import with grc org config import --file <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Organization.ID == "" {
		return fmt.Errorf("config.organization.id is required")
	}
	if c.Organization.Name == "" {
		return fmt.Errorf("config.organization.name is required")
	}
	if len(c.Risk.Likelihood) == 0 {
		return fmt.Errorf("config.risk.likelihood is required")
	}
	if len(c.Risk.Impact) == 0 {
		return fmt.Errorf("config.risk.impact is required")
	}
	if err := validateScale("likelihood", c.Risk.Likelihood); err != nil {
		return err
	}
	if err := validateScale("impact", c.Risk.Impact); err != nil {
		return err
	}
	if c.Risk.Bands.Medium <= 0 || c.Risk.Bands.High <= c.Risk.Bands.Medium || c.Risk.Bands.Critical <= c.Risk.Bands.High {
		return fmt.Errorf("config.risk.bands must satisfy 0 < medium < high < critical")
	}
	for _, d := range c.Options.Domains {
		if d == "" {
			return fmt.Errorf("config.options.domains contains empty value")
		}
	}
	for _, cat := range c.Options.Categories {
		if cat == "" {
			return fmt.Errorf("config.options.categories contains empty value")
		}
	}
	for _, t := range c.Options.IssueTypes {
		if t == "" {
			return fmt.Errorf("config.options.issue_types contains empty value")
		}
	}
	for _, n := range c.Options.NeedExpectations {
		if n == "" {
			return fmt.Errorf("config.options.need_expectations contains empty value")
		}
	}
	return nil
}

func validateScale(name string, levels []ScaleLevel) error {
	seen := map[int]bool{}
	for _, l := range levels {
		if l.Score < 1 {
			return fmt.Errorf("config.risk.%s score %d must be >= 1", name, l.Score)
		}
		if l.Name == "" {
			return fmt.Errorf("config.risk.%s score %d is missing a name", name, l.Score)
		}
		if seen[l.Score] {
			return fmt.Errorf("config.risk.%s has duplicate score %d", name, l.Score)
		}
		seen[l.Score] = true
	}
	return nil
}

// MaxLikelihood returns the highest configured likelihood score.
func (c *Config) MaxLikelihood() int { return maxScore(c.Risk.Likelihood) }

// MaxImpact returns the highest configured impact score.
func (c *Config) MaxImpact() int { return maxScore(c.Risk.Impact) }

func maxScore(levels []ScaleLevel) int {
	max := 0
	for _, l := range levels {
		if l.Score > max {
			max = l.Score
		}
	}
	return max
}

// Band buckets a risk score using the configured thresholds.
func (c *Config) Band(score int) string {
	switch {
	case score >= c.Risk.Bands.Critical:
		return "critical"
	case score >= c.Risk.Bands.High:
		return "high"
	case score >= c.Risk.Bands.Medium:
		return "medium"
	default:
		return "low"
	}
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "trustops.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(orgID string) string {
	return fmt.Sprintf(defaultTemplate, orgID)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct for an organization.
func Default(orgID string) *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, orgID))).Decode(&cfg)
	cfg.Organization.ID = orgID
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `organization:
  id: %s
  name: Default Organization
  industry: ""
  size: ""
  country: ""

options:
  domains:
    - Governance
    - Compliance
    - Operations
    - IT Security
    - Finance
  categories:
    - Policy
    - Procedure
    - Incident
    - Finding
  issue_types:
    - Gap
    - Non-conformity
    - Observation
    - Improvement
  need_expectations:
    - Compliance
    - Transparency
    - Data Protection
    - Service Continuity

risk:
  likelihood:
    - { score: 1, name: Rare, description: "May occur only in exceptional circumstances" }
    - { score: 2, name: Unlikely, description: "Could occur at some time" }
    - { score: 3, name: Possible, description: "Might occur at some time" }
    - { score: 4, name: Likely, description: "Will probably occur in most circumstances" }
    - { score: 5, name: Almost Certain, description: "Expected to occur in most circumstances" }
  impact:
    - { score: 1, name: Insignificant, description: "No material harm" }
    - { score: 2, name: Minor, description: "Limited, recoverable harm" }
    - { score: 3, name: Moderate, description: "Noticeable operational harm" }
    - { score: 4, name: Major, description: "Serious regulatory or financial harm" }
    - { score: 5, name: Severe, description: "Existential or license-threatening harm" }
  bands:
    medium: 5
    high: 10
    critical: 17
`
