package bulk

import (
	"time"

	"github.com/keeldb/keel/logging"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. Default is noop.
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// ProgressFunc receives the cumulative success count of a running bulk
// operation. Counts are monotonically non-decreasing; cadence is "no more
// often than the configured interval", never exact.
type ProgressFunc func(total int64)

// CallOption configures one bulk call.
type CallOption func(*callConfig)

// WithProgress registers a progress callback invoked at most once per
// interval. A non-positive interval reports at every opportunity.
func WithProgress(fn ProgressFunc, every time.Duration) CallOption {
	return func(c *callConfig) {
		c.progress = fn
		c.every = every
	}
}

type callConfig struct {
	progress ProgressFunc
	every    time.Duration
}

func newCallConfig(opts []CallOption) *callConfig {
	c := &callConfig{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// tracker rate-limits progress callbacks. The clock starts at call entry,
// so the first report fires only after one full interval.
type tracker struct {
	cfg  *callConfig
	last time.Time
	now  func() time.Time
}

func newTracker(cfg *callConfig) *tracker {
	t := &tracker{cfg: cfg, now: time.Now}
	t.last = t.now()
	return t
}

// observe reports progress when the gate is open and the interval elapsed.
func (t *tracker) observe(gate bool, total func() int64) {
	if t.cfg.progress == nil || !gate {
		return
	}
	if t.now().Sub(t.last) < t.cfg.every {
		return
	}
	t.cfg.progress(total())
	t.last = t.now()
}
