package sweep

import (
	"time"

	"github.com/okian/rival/pkg/logger"
)

// Option applies a configuration option to the Sweeper.
type Option func(*Sweeper)

// WithInterval sets the sweep cadence.
func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLogger sets a custom logger for the sweeper.
func WithLogger(logger logger.Logger) Option {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNow overrides the time source, for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}
