package delivery

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimits tracks per-channel send quotas: a daily cap that resets at
// midnight UTC and a minimum delay between consecutive sends on the same
// channel. Neither limit blocks, callers are handed the time at which to
// retry and reschedule the task instead.
type RateLimits struct {
	mu sync.Mutex

	dailyCap int
	minDelay time.Duration

	windows map[Channel]*channelWindow
}

type channelWindow struct {
	day     time.Time
	sent    int
	limiter *rate.Limiter
}

// NewRateLimits creates rate limits shared by every dispatch on the same
// application. A zero dailyCap or minDelay disables that limit.
func NewRateLimits(dailyCap int, minDelay time.Duration) *RateLimits {
	return &RateLimits{
		dailyCap: dailyCap,
		minDelay: minDelay,
		windows:  map[Channel]*channelWindow{},
	}
}

// Reserve consumes one send slot on the channel. When the daily cap is
// exhausted or the channel was used too recently, no slot is consumed and
// the returned timestamp says when to try again.
func (rl *RateLimits) Reserve(channel Channel, now time.Time) (time.Time, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	window := rl.window(channel, now)

	if rl.dailyCap > 0 && window.sent >= rl.dailyCap {
		return NextReset(now), false
	}

	if window.limiter != nil {
		reservation := window.limiter.ReserveN(now, 1)
		if delay := reservation.DelayFrom(now); delay > 0 {
			reservation.CancelAt(now)
			return now.Add(delay), false
		}
	}

	window.sent++

	return time.Time{}, true
}

// Remaining reports how many sends are left on the channel in the current
// daily window.
func (rl *RateLimits) Remaining(channel Channel, now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.dailyCap <= 0 {
		return math.MaxInt
	}

	window := rl.window(channel, now)
	if window.sent >= rl.dailyCap {
		return 0
	}

	return rl.dailyCap - window.sent
}

// DailyCap returns the configured per-channel daily cap, zero when unlimited.
func (rl *RateLimits) DailyCap() int {
	return rl.dailyCap
}

func (rl *RateLimits) window(channel Channel, now time.Time) *channelWindow {
	day := now.UTC().Truncate(24 * time.Hour)

	window, ok := rl.windows[channel]
	if !ok {
		window = &channelWindow{day: day}
		if rl.minDelay > 0 {
			window.limiter = rate.NewLimiter(rate.Every(rl.minDelay), 1)
		}

		rl.windows[channel] = window
	}

	if window.day.Before(day) {
		window.day = day
		window.sent = 0
	}

	return window
}

// NextReset returns the next daily window boundary, midnight UTC.
func NextReset(now time.Time) time.Time {
	return now.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
}
