package usecase

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/devricklin/fanwatch-bridge/internal/biz/domain"
)

// DefaultUnknownEventCooldown is the window between two alerts for the same event type
const DefaultUnknownEventCooldown = 30 * time.Minute

// LimiterConfig contains unknown-event alerting configuration
type LimiterConfig struct {
	Enabled  bool
	Cooldown time.Duration
}

type limiterKey struct {
	account   domain.AccountKey
	eventType string
}

// AlertLimiter gates unknown-event diagnostics per (account, event type).
// Each pair has its own slot, so sessions for different accounts never contend.
type AlertLimiter struct {
	config LimiterConfig
	last   sync.Map // limiterKey -> *atomic.Int64 (unix nanos of last alert)
}

// NewAlertLimiter creates a limiter. A non-positive cooldown uses the default.
func NewAlertLimiter(config LimiterConfig) *AlertLimiter {
	if config.Cooldown <= 0 {
		config.Cooldown = DefaultUnknownEventCooldown
	}
	return &AlertLimiter{config: config}
}

// Enabled reports whether unknown-event alerting is on
func (l *AlertLimiter) Enabled() bool {
	return l.config.Enabled
}

// ShouldAlert reports whether an alert may be sent now, recording now when it may
func (l *AlertLimiter) ShouldAlert(key domain.AccountKey, eventType string, now time.Time) bool {
	if !l.config.Enabled {
		return false
	}

	slot, _ := l.last.LoadOrStore(limiterKey{account: key, eventType: eventType}, new(atomic.Int64))
	last := slot.(*atomic.Int64)
	ts := now.UnixNano()

	for {
		prev := last.Load()
		if prev != 0 && ts-prev < int64(l.config.Cooldown) {
			return false
		}
		if last.CompareAndSwap(prev, ts) {
			return true
		}
	}
}

// Forget drops every slot belonging to the account
func (l *AlertLimiter) Forget(key domain.AccountKey) {
	l.last.Range(func(k, _ any) bool {
		if k.(limiterKey).account == key {
			l.last.Delete(k)
		}
		return true
	})
}
