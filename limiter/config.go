package limiter

import (
	"fmt"
	"regexp"
)

// Storage types
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

// Rule defines a single rate limiting rule applied to backend API paths.
type Rule struct {
	Path    string  `yaml:"path"`     // request path (can be regex if IsRegex is true)
	IsRegex bool    `yaml:"is_regex"` // indicates if Path is a regex
	Rate    float64 `yaml:"rate"`     // number of allowed requests (tokens)
	Period  float64 `yaml:"period"`   // time window in seconds

	// internal fields
	compiledRegex *regexp.Regexp
	ratePerSecond float64
}

// Config holds the overall rate limiter configuration.
type Config struct {
	StorageType string `yaml:"storage_type"` // "memory" or "redis"
	Rules       []Rule `yaml:"rules"`
}

// DefaultConfig applies a single account-wide budget of 240 requests per minute
// to every backend path, kept in memory.
func DefaultConfig() Config {
	return Config{
		StorageType: StorageMemory,
		Rules: []Rule{
			{Path: "^/", IsRegex: true, Rate: 240, Period: 60},
		},
	}
}

// ValidateAndPrepare processes the raw config, validates it, and prepares internal fields.
func (c *Config) ValidateAndPrepare() error {
	if c.StorageType != StorageMemory && c.StorageType != StorageRedis {
		return fmt.Errorf("invalid storage_type: %s, must be '%s' or '%s'", c.StorageType, StorageMemory, StorageRedis)
	}

	seenPaths := make(map[string]bool)
	for i := range c.Rules {
		rule := &c.Rules[i]

		if rule.Path == "" {
			return fmt.Errorf("rule %d has an empty path", i)
		}
		if seenPaths[rule.Path] {
			return fmt.Errorf("duplicate path definition found: %s", rule.Path)
		}
		seenPaths[rule.Path] = true

		if rule.Rate <= 0 {
			return fmt.Errorf("rule for path '%s' has invalid rate: %f, must be positive", rule.Path, rule.Rate)
		}
		if rule.Period <= 0 {
			return fmt.Errorf("rule for path '%s' has invalid period: %f, must be positive", rule.Path, rule.Period)
		}
		rule.ratePerSecond = rule.Rate / rule.Period

		if rule.IsRegex {
			re, err := regexp.Compile(rule.Path)
			if err != nil {
				return fmt.Errorf("failed to compile regex for path '%s': %w", rule.Path, err)
			}
			rule.compiledRegex = re
		}
	}
	return nil
}
