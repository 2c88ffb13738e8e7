package service

import (
	"errors"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	// ErrInvalidGoal reports a malformed goal creation request.
	ErrInvalidGoal = errors.New("invalid goal")

	// ErrDuplicateRequest reports a resolution request for a goal whose
	// resolution is already in flight.
	ErrDuplicateRequest = errors.New("duplicate resolution request")

	// ErrQueueFull reports backpressure: the resolution queue rejected the job.
	ErrQueueFull = errors.New("resolution queue full")

	// ErrNotStarted reports a call on a service that has not been started.
	ErrNotStarted = errors.New("service not started")
)
