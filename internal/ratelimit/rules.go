package ratelimit

import (
	"errors"
	"fmt"
	"time"

	"github.com/Proton-105/himera-swap/pkg/config"
)

// Rule names, also used as metric labels and key prefixes.
const (
	RulePerUser = "per_user"
	RuleSubmit  = "submit"
)

// Rules encapsulates configured rate limits and helper methods.
type Rules struct {
	config config.RateLimitConfig
}

// NewRules constructs rate limiting rules from configuration settings.
func NewRules(cfg config.RateLimitConfig) *Rules {
	return &Rules{config: cfg}
}

// Enabled reports whether limits are enforced at all.
func (r *Rules) Enabled() bool {
	return r != nil && r.config.Enabled
}

// IsWhitelisted returns true if the userID bypasses rate limits.
func (r *Rules) IsWhitelisted(userID int64) bool {
	for _, id := range r.config.Whitelist {
		if id == userID {
			return true
		}
	}
	return false
}

// Limit returns the limit and window of the named rule.
func (r *Rules) Limit(name string) (int, time.Duration, error) {
	switch name {
	case RulePerUser:
		return parseRule(r.config.PerUser)
	case RuleSubmit:
		return parseRule(r.config.Submit)
	default:
		return 0, 0, fmt.Errorf("unknown rate limit rule %q", name)
	}
}

// Key returns the limiter key of rule for userID.
func Key(rule string, userID int64) string {
	return fmt.Sprintf("%s:%d", rule, userID)
}

func parseRule(rule config.RateLimitRule) (int, time.Duration, error) {
	if rule.Window == "" {
		return rule.Limit, 0, errors.New("window duration is not set")
	}
	window, err := time.ParseDuration(rule.Window)
	if err != nil {
		return 0, 0, err
	}
	if window <= 0 {
		return 0, 0, errors.New("window duration must be positive")
	}
	return rule.Limit, window, nil
}
