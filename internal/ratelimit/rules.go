package ratelimit

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Proton-105/budget-bot/pkg/config"
)

// ErrNoRule reports that no limit is configured for the requested scope.
var ErrNoRule = errors.New("rate limit rule is not configured")

// Rules encapsulates configured rate limits and helper methods.
// Update swaps the configuration so limits can be reloaded at runtime.
type Rules struct {
	mu     sync.RWMutex
	config config.RateLimitConfig
}

// NewRules constructs rate limiting rules from configuration settings.
func NewRules(cfg config.RateLimitConfig) *Rules {
	return &Rules{config: cfg}
}

// Update replaces the active configuration.
func (r *Rules) Update(cfg config.RateLimitConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config = cfg
}

// Enabled reports whether rate limiting is switched on.
func (r *Rules) Enabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config.Enabled
}

// IsWhitelisted returns true if the userID bypasses rate limits.
func (r *Rules) IsWhitelisted(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.config.Whitelist {
		if id == userID {
			return true
		}
	}
	return false
}

// CommandRule returns the rule for a specific command.
// The command may be given with or without its leading slash.
func (r *Rules) CommandRule(command string) (Rule, error) {
	name := strings.TrimPrefix(strings.ToLower(command), "/")

	r.mu.RLock()
	rule, ok := r.config.Commands[name]
	r.mu.RUnlock()

	if !ok {
		return Rule{}, ErrNoRule
	}
	return parseRule(rule)
}

// GlobalRule returns the rule shared by all senders.
func (r *Rules) GlobalRule() (Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return parseRule(r.config.Global)
}

// PerUserRule returns the rule applied to each sender.
func (r *Rules) PerUserRule() (Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return parseRule(r.config.PerUser)
}

// Checks lists the buckets an update from userID running command is
// charged against, narrowest first. Scopes without a usable rule are
// skipped; malformed rules are reported in the joined error.
func (r *Rules) Checks(command string, userID int64) ([]Check, error) {
	candidates := []struct {
		scope Scope
		key   string
		rule  func() (Rule, error)
	}{
		{ScopeCommand, CommandKey(command, userID), func() (Rule, error) { return r.CommandRule(command) }},
		{ScopeUser, UserKey(userID), r.PerUserRule},
		{ScopeGlobal, GlobalKey, r.GlobalRule},
	}

	var (
		checks []Check
		errs   []error
	)
	for _, c := range candidates {
		if c.scope == ScopeCommand && command == "" {
			continue
		}
		rule, err := c.rule()
		switch {
		case err == nil:
			checks = append(checks, Check{Scope: c.scope, Key: c.key, Rule: rule})
		case !errors.Is(err, ErrNoRule):
			errs = append(errs, fmt.Errorf("%s rule: %w", c.scope, err))
		}
	}
	return checks, errors.Join(errs...)
}

// MaxWindow returns the longest configured window, used to expire stale entries.
func (r *Rules) MaxWindow() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rules := []config.RateLimitRule{r.config.Global, r.config.PerUser}
	for _, rule := range r.config.Commands {
		rules = append(rules, rule)
	}

	var longest time.Duration
	for _, rule := range rules {
		if parsed, err := parseRule(rule); err == nil && parsed.Window > longest {
			longest = parsed.Window
		}
	}
	return longest
}

func parseRule(rule config.RateLimitRule) (Rule, error) {
	if rule.Limit == 0 && rule.Window == "" {
		return Rule{}, ErrNoRule
	}
	if rule.Window == "" {
		return Rule{}, errors.New("window duration is not set")
	}
	window, err := time.ParseDuration(rule.Window)
	if err != nil {
		return Rule{}, err
	}
	return Rule{Limit: rule.Limit, Window: window}, nil
}
