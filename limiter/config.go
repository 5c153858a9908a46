package limiter

import (
	"fmt"
	"regexp"

	"github.com/rs/zerolog/log"
)

// Valid LimitBy types
var validLimitBy = map[string]bool{
	LimitByEvent: true,
	LimitByPeer:  true,
}

// Rule limits remote pushes for matching event names.
type Rule struct {
	Event   string   `yaml:"event"`    // event name (regex if IsRegex is true)
	IsRegex bool     `yaml:"is_regex"` // indicates if Event is a regex
	Rate    float64  `yaml:"rate"`     // number of allowed pushes (tokens)
	Period  float64  `yaml:"period"`   // time window in seconds
	LimitBy []string `yaml:"limit_by"` // "event" and/or "peer"

	compiledRegex *regexp.Regexp
}

// Config holds the rate limiter configuration.
type Config struct {
	StorageType string `yaml:"storage_type"` // "memory" or "redis"
	Rules       []Rule `yaml:"rules"`
}

// ValidateAndPrepare validates the config and compiles rule patterns.
// An empty StorageType defaults to memory.
func (c *Config) ValidateAndPrepare() error {
	if c.StorageType == "" {
		c.StorageType = StorageMemory
	}
	if c.StorageType != StorageMemory && c.StorageType != StorageRedis {
		return fmt.Errorf("invalid storage_type: %s, must be '%s' or '%s'", c.StorageType, StorageMemory, StorageRedis)
	}

	if len(c.Rules) == 0 {
		log.Debug().Msg("no rate limit rules defined in config")
	}

	seen := make(map[string]bool)
	for i := range c.Rules {
		rule := &c.Rules[i]

		if seen[rule.Event] {
			return fmt.Errorf("duplicate event rule found: %s", rule.Event)
		}
		seen[rule.Event] = true

		if rule.Rate <= 0 {
			return fmt.Errorf("rule for event '%s' has invalid rate: %f, must be positive", rule.Event, rule.Rate)
		}
		if rule.Period <= 0 {
			return fmt.Errorf("rule for event '%s' has invalid period: %f, must be positive", rule.Event, rule.Period)
		}

		if rule.IsRegex {
			re, err := regexp.Compile(rule.Event)
			if err != nil {
				return fmt.Errorf("failed to compile regex for event '%s': %w", rule.Event, err)
			}
			rule.compiledRegex = re
		}

		if len(rule.LimitBy) == 0 {
			rule.LimitBy = []string{LimitByEvent}
		}
		for _, lb := range rule.LimitBy {
			if !validLimitBy[lb] {
				return fmt.Errorf("rule for event '%s' has invalid limit_by type: '%s'", rule.Event, lb)
			}
		}
	}
	return nil
}
