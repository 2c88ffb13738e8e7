// Package worker applies resolver decisions to the store asynchronously.
package worker

import (
	"github.com/okian/rival/pkg/logger"
)

// Option applies a configuration option to the ResolutionWorker.
type Option func(*ResolutionWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *ResolutionWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *ResolutionWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithScoreListener sets the callback notified after each applied resolution.
func WithScoreListener(fn ScoreListener) Option {
	return func(w *ResolutionWorker) {
		w.onScores = fn
	}
}

// WithDeduper sets the in-flight guard released after each processed job.
func WithDeduper(d Deduper) Option {
	return func(w *ResolutionWorker) {
		w.deduper = d
	}
}
