// Package monitor implements session-expiry evaluation, the background
// warning loop, and the warning delivery workflow (text message followed by
// a fresh login QR code).
package monitor

import "time"

// warningCooldown is the minimum interval between two automated warnings.
const warningCooldown = time.Hour

// Evaluation summarizes the session's standing at one point in time.
type Evaluation struct {
	// OnlineHours is how long the session has been logged in.
	OnlineHours float64
	// RemainingHours is the estimated time left before expiry. Negative
	// values mean the session has likely already expired.
	RemainingHours float64
	// Due reports whether an automated warning should be sent now,
	// before the cooldown is considered.
	Due bool
}

// Evaluate computes the session standing for the given login time. A warning
// is due only when warnings are enabled, a delivery target is configured,
// and the online duration has entered the threshold window before expiry.
func Evaluate(now, loginTime time.Time, enabled bool, target string, thresholdHours, lifetimeHours float64) Evaluation {
	online := now.Sub(loginTime).Hours()
	ev := Evaluation{
		OnlineHours:    online,
		RemainingHours: lifetimeHours - online,
	}
	if !enabled || target == "" {
		return ev
	}
	ev.Due = online >= lifetimeHours-thresholdHours
	return ev
}
