package bot

import (
	_ "embed"
	"fmt"

	"github.com/parjafrica/good/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed config/targets.yaml
var targetsYAML []byte

type targetSeed struct {
	Name      string            `yaml:"name"`
	URL       string            `yaml:"url"`
	Country   string            `yaml:"country"`
	Type      string            `yaml:"type"`
	Selectors map[string]string `yaml:"selectors"`
	Headers   map[string]string `yaml:"headers"`
	RateLimit int               `yaml:"rate_limit"`
	Priority  int               `yaml:"priority"`
	IsActive  bool              `yaml:"is_active"`
}

type targetSeedFile struct {
	Targets []targetSeed `yaml:"targets"`
}

// SeedTargets parses the embedded target registry into rows ready to upsert.
func SeedTargets() ([]models.SearchTarget, error) {
	var file targetSeedFile
	if err := yaml.Unmarshal(targetsYAML, &file); err != nil {
		return nil, fmt.Errorf("target registry parse failed: %w", err)
	}

	targets := make([]models.SearchTarget, 0, len(file.Targets))
	for _, s := range file.Targets {
		if s.Name == "" || s.URL == "" {
			return nil, fmt.Errorf("target registry: entry missing name or url")
		}
		targets = append(targets, models.SearchTarget{
			Name:      s.Name,
			URL:       s.URL,
			Country:   s.Country,
			Type:      models.TargetType(s.Type),
			Selectors: s.Selectors,
			Headers:   s.Headers,
			RateLimit: s.RateLimit,
			Priority:  s.Priority,
			IsActive:  s.IsActive,
		})
	}
	return targets, nil
}
