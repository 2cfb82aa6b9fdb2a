package poll

import (
	"context"
	"time"

	"github.com/Alwanly/service-fleet-control/pkg/logger"
	"go.uber.org/zap"
)

// poller implements the Poller interface
type poller struct {
	logger     *logger.CanonicalLogger
	stopCh     chan struct{}
	sweepFuncs map[string]MetaFunc
}

// NewPoller creates a new Poller instance
func NewPoller(log *logger.CanonicalLogger) Poller {
	return &poller{
		logger:     log,
		stopCh:     make(chan struct{}),
		sweepFuncs: make(map[string]MetaFunc),
	}
}

// Start begins the polling loop in the background
func (p *poller) Start(ctx context.Context) error {
	go p.poll(ctx)
	return nil
}

// Stop gracefully stops the poller
func (p *poller) Stop() error {
	close(p.stopCh)
	return nil
}

// poll runs every registered sweep on its own ticker
func (p *poller) poll(ctx context.Context) {
	tickers := make(map[string]*time.Ticker)
	for name, meta := range p.sweepFuncs {
		interval := time.Duration(meta.PollIntervalSeconds) * time.Second
		tickers[name] = time.NewTicker(interval)
		p.logger.Info("sweep scheduled", zap.String("name", name), zap.Duration("interval", interval))
	}

	for {
		select {
		case <-p.stopCh:
			p.logger.Info("stopping poller")
			for _, ticker := range tickers {
				ticker.Stop()
			}
			return
		default:
			for name, ticker := range tickers {
				select {
				case <-ticker.C:
					p.runSweep(ctx, name)
				default:
				}
			}
			time.Sleep(100 * time.Millisecond) // Prevent tight loop
		}
	}
}

// runSweep executes a single sweep pass
func (p *poller) runSweep(ctx context.Context, name string) {
	meta, ok := p.sweepFuncs[name]
	if !ok {
		return
	}
	if err := meta.SweepFunc(ctx); err != nil {
		p.logger.Error("sweep failed", zap.String("name", name), zap.Error(err))
		return
	}
	p.logger.Debug("sweep completed", zap.String("name", name))
}

// RegisterSweepFunc registers a sweep function with its polling configuration
func (p *poller) RegisterSweepFunc(name string, sweepFunc SweepFunc, config PollerConfig) {
	if name == "" || sweepFunc == nil {
		p.logger.Error("invalid sweep function registration")
		return
	}
	if _, exists := p.sweepFuncs[name]; exists {
		panic("name already existing")
	}
	p.sweepFuncs[name] = MetaFunc{
		SweepFunc:    sweepFunc,
		PollerConfig: config,
	}
	p.logger.Info("sweep function registered", zap.String("name", name), zap.Int("poll_interval_seconds", config.PollIntervalSeconds))
}
