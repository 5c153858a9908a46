// Package limiter throttles pushes arriving from other processes.
package limiter

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// RateLimiter contains the configuration and store for rate limiting.
type RateLimiter struct {
	config *Config
	store  Store
}

// NewRateLimiter creates a new RateLimiter instance.
// cfg must have passed ValidateAndPrepare.
func NewRateLimiter(cfg *Config, store Store) *RateLimiter {
	return &RateLimiter{
		config: cfg,
		store:  store,
	}
}

// Limit reports whether a push of event from peer must be rejected.
// peer is the client host without a port; "" skips the peer buckets.
// Store failures are logged and let the push through.
func (rl *RateLimiter) Limit(ctx context.Context, event, peer string) bool {
	if rl == nil {
		return false
	}
	for i := range rl.config.Rules {
		rule := &rl.config.Rules[i]
		if !rule.matches(event) {
			continue
		}
		limited, err := rl.applyRule(ctx, rule, event, peer)
		if err != nil {
			log.Error().Err(err).Str("event", event).Str("rule", rule.Event).Msg("rate limit check failed")
			return false
		}
		if limited {
			log.Warn().Str("event", event).Str("peer", peer).Str("rule", rule.Event).Msg("rate limit triggered for rule")
			return true
		}
	}
	return false
}

func (r *Rule) matches(event string) bool {
	if r.IsRegex {
		return r.compiledRegex != nil && r.compiledRegex.MatchString(event)
	}
	return r.Event == event
}

// applyRule checks every LimitBy bucket of rule.
func (rl *RateLimiter) applyRule(ctx context.Context, rule *Rule, event, peer string) (bool, error) {
	for _, limitBy := range rule.LimitBy {
		value := event
		if limitBy == LimitByPeer {
			if peer == "" {
				continue
			}
			value = event + "@" + peer
		}

		key := fmt.Sprintf("rule:%s|by:%s|val:%s", rule.Event, limitBy, value)
		allowed, err := rl.store.Allow(ctx, key, rule.Rate, rule.Period)
		if err != nil {
			return false, fmt.Errorf("store error for key %s: %w", key, err)
		}
		if !allowed {
			return true, nil
		}
	}
	return false, nil
}
