// Package access derives a tenant's current access state from its
// subscription window. The result is computed on every read and never
// stored.
package access

import (
	"time"

	"github.com/parishkeep/parishkeep/internal/clock"
)

// State is the derived access state for a tenant.
type State string

const (
	StateActive  State = "active"
	StateGrace   State = "grace"
	StateExpired State = "expired"
)

// DefaultGraceDays is the window after the subscription end date during
// which access is still permitted.
const DefaultGraceDays = 30

// Decision carries the derived state plus the day counters exposed to
// clients.
type Decision struct {
	State         State `json:"state"`
	DaysRemaining int   `json:"daysRemaining,omitempty"`
	DaysPastDue   int   `json:"daysPastDue,omitempty"`
	GraceDays     int   `json:"graceDays"`
}

// Evaluate decides active/grace/expired from the stored subscription status
// and end date. daysRemaining is ceil((endDate-now)/1 day); a tenant is
// active while its stored status is active and the window has not closed,
// in grace for up to graceDays past the end date regardless of stored
// status, and expired beyond that.
func Evaluate(subscriptionStatus string, endDate, now time.Time, graceDays int) Decision {
	days := clock.DaysUntil(now, endDate)

	switch {
	case subscriptionStatus == "active" && days >= 0:
		return Decision{State: StateActive, DaysRemaining: days, GraceDays: graceDays}
	case days < 0 && -days <= graceDays:
		return Decision{State: StateGrace, DaysPastDue: -days, GraceDays: graceDays}
	default:
		pastDue := 0
		if days < 0 {
			pastDue = -days
		}
		return Decision{State: StateExpired, DaysPastDue: pastDue, GraceDays: graceDays}
	}
}
