package usecase

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/devricklin/fanwatch-bridge/internal/biz/domain"
)

func TestAlertLimiter_DisabledByDefault(t *testing.T) {
	l := NewAlertLimiter(LimiterConfig{})
	if l.ShouldAlert(domain.AccountKey{OperatorID: 1, AccountName: "a"}, "x", time.Now()) {
		t.Error("Expected no alerts when disabled")
	}
}

func TestAlertLimiter_CooldownWindow(t *testing.T) {
	l := NewAlertLimiter(LimiterConfig{Enabled: true, Cooldown: 30 * time.Minute})
	key := domain.AccountKey{OperatorID: 1, AccountName: "a"}
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	if !l.ShouldAlert(key, "mystery", start) {
		t.Fatal("Expected first alert")
	}
	for _, offset := range []time.Duration{0, time.Second, 10 * time.Minute, 29*time.Minute + 59*time.Second} {
		if l.ShouldAlert(key, "mystery", start.Add(offset)) {
			t.Errorf("Expected no alert %v into the window", offset)
		}
	}
	if !l.ShouldAlert(key, "mystery", start.Add(30*time.Minute)) {
		t.Error("Expected alert once the window elapsed")
	}
	if l.ShouldAlert(key, "mystery", start.Add(31*time.Minute)) {
		t.Error("Expected the window to restart from the last alert")
	}
}

func TestAlertLimiter_PairsAreIndependent(t *testing.T) {
	l := NewAlertLimiter(LimiterConfig{Enabled: true})
	now := time.Now()
	a := domain.AccountKey{OperatorID: 1, AccountName: "a"}
	b := domain.AccountKey{OperatorID: 1, AccountName: "b"}

	if !l.ShouldAlert(a, "x", now) || !l.ShouldAlert(a, "y", now) || !l.ShouldAlert(b, "x", now) {
		t.Error("Expected distinct pairs to alert independently")
	}
}

func TestAlertLimiter_ConcurrentSingleWinner(t *testing.T) {
	l := NewAlertLimiter(LimiterConfig{Enabled: true})
	key := domain.AccountKey{OperatorID: 7, AccountName: "busy"}
	now := time.Now()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.ShouldAlert(key, "flood", now) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("Expected exactly one alert, got %d", wins.Load())
	}
}

func TestAlertLimiter_Forget(t *testing.T) {
	l := NewAlertLimiter(LimiterConfig{Enabled: true})
	key := domain.AccountKey{OperatorID: 1, AccountName: "a"}
	now := time.Now()

	l.ShouldAlert(key, "x", now)
	l.Forget(key)
	if !l.ShouldAlert(key, "x", now) {
		t.Error("Expected alert after Forget")
	}
}
