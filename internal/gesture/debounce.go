package gesture

import (
	"sync"
	"time"
)

// Debouncer lets a held gesture fire once per cooldown.
type Debouncer struct {
	mu       sync.Mutex
	cooldown time.Duration
	last     Label
	lastAt   time.Time
}

func NewDebouncer(cooldown time.Duration) *Debouncer {
	return &Debouncer{cooldown: cooldown}
}

func (d *Debouncer) Allow(l Label, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if l == d.last && now.Sub(d.lastAt) < d.cooldown {
		return false
	}

	d.last = l
	d.lastAt = now
	return true
}

func (d *Debouncer) Reset() {
	d.mu.Lock()
	d.last = None
	d.lastAt = time.Time{}
	d.mu.Unlock()
}
