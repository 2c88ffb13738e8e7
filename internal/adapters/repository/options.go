package repository

import "time"

// Option applies a configuration option to the SQLiteStore.
type Option func(*SQLiteStore)

// WithLocation sets the timezone used to interpret calendar-date columns.
func WithLocation(loc *time.Location) Option {
	return func(s *SQLiteStore) {
		if loc != nil {
			s.loc = loc
		}
	}
}
