package poll

import (
	"context"
)

type PollerConfig struct {
	PollIntervalSeconds int
}

type MetaFunc struct {
	SweepFunc
	PollerConfig
}

// Poller drives registered sweep functions on their own intervals.
type Poller interface {
	// Start begins the polling loop in the background
	Start(ctx context.Context) error
	// Stop gracefully stops the poller
	Stop() error
	// RegisterSweepFunc registers a periodic sweep with its interval
	RegisterSweepFunc(name string, sweepFunc SweepFunc, config PollerConfig)
}

// SweepFunc is one periodic maintenance pass. It reports only the error;
// whatever it touched is logged by the sweep itself.
type SweepFunc func(ctx context.Context) error
