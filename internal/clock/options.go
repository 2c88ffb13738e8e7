package clock

import (
	"time"

	"github.com/okian/rival/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithTickInterval sets the evaluation cadence. The math tolerates any
// cadence since every snapshot recomputes from absolute time.
func WithTickInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.tick = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNow overrides the time source, for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
