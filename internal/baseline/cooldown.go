package baseline

import (
	"sync"
	"time"
)

// DefaultRetention bounds cooldown memory: entries unseen for this long are
// dropped by Sweep.
const DefaultRetention = 24 * time.Hour

// AlertCooldown throttles anomaly alerts per (error type, platform) key.
// State is in-memory only; a restart simply re-allows the next alert.
// Safe for concurrent use.
type AlertCooldown struct {
	mu        sync.Mutex
	lastAlert map[string]time.Time
	retention time.Duration
	now       func() time.Time
}

// NewAlertCooldown creates a cooldown tracker with the default retention
func NewAlertCooldown() *AlertCooldown {
	return &AlertCooldown{
		lastAlert: make(map[string]time.Time),
		retention: DefaultRetention,
		now:       time.Now,
	}
}

func cooldownKey(errorType, platform string) string {
	return errorType + ":" + platform
}

// ShouldAlert returns true if no alert has fired for the key, or the elapsed
// time since the last one meets the cooldown.
func (c *AlertCooldown) ShouldAlert(errorType, platform string, cooldownMinutes int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	last, ok := c.lastAlert[cooldownKey(errorType, platform)]
	if !ok {
		return true
	}
	return c.now().Sub(last) >= time.Duration(cooldownMinutes)*time.Minute
}

// RecordAlert marks an alert as fired for the key
func (c *AlertCooldown) RecordAlert(errorType, platform string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastAlert[cooldownKey(errorType, platform)] = c.now()
}

// Sweep drops entries older than the retention window and returns how many
// were removed
func (c *AlertCooldown) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.retention)
	removed := 0
	for key, last := range c.lastAlert {
		if last.Before(cutoff) {
			delete(c.lastAlert, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys
func (c *AlertCooldown) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lastAlert)
}
