// Package ratelimit throttles incoming bot updates with sliding windows.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrLimitExceeded is returned together with the rejecting Result.
var ErrLimitExceeded = errors.New("rate limit exceeded")

// Scope names the budget an update is charged against.
type Scope string

const (
	ScopeCommand Scope = "command"
	ScopeUser    Scope = "user"
	ScopeGlobal  Scope = "global"
)

// GlobalKey is the single bucket shared by every sender.
const GlobalKey = "global"

// CommandKey is the bucket for one user's uses of one command.
func CommandKey(command string, userID int64) string {
	return fmt.Sprintf("cmd:%s:user:%d", command, userID)
}

// UserKey is the bucket for everything one user sends.
func UserKey(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

// Rule allows Limit updates in any Window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Check is one bucket an update has to fit in.
type Check struct {
	Scope Scope
	Key   string
	Rule  Rule
}

// Result is the state of a bucket after a check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the whole number of seconds until the bucket frees a slot,
// never less than one.
func (r *Result) RetryAfter(now time.Time) int {
	if r == nil || r.ResetAt.IsZero() {
		return 1
	}
	return max(int(math.Ceil(r.ResetAt.Sub(now).Seconds())), 1)
}

// Limiter counts an update against a bucket.
type Limiter interface {
	// Allow records a hit on key when rule still has room. A full bucket
	// yields a non-nil Result and ErrLimitExceeded; any other error means
	// the backend could not decide.
	Allow(ctx context.Context, key string, rule Rule) (*Result, error)
}
