package network

import (
	"context"
	"time"

	"shawarma-pos/internal/common/logger"
)

// HealthChecker is the one network call used to derive connectivity.
type HealthChecker interface {
	Health(ctx context.Context) error
}

type Prober struct {
	checker  HealthChecker
	monitor  *Monitor
	interval time.Duration
	timeout  time.Duration
	lg       *logger.Logger
}

func NewProber(checker HealthChecker, monitor *Monitor, interval time.Duration, lg *logger.Logger) *Prober {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	timeout := interval / 2
	if timeout > 3*time.Second {
		timeout = 3 * time.Second
	}
	if lg == nil {
		lg = logger.New("network-prober")
	}
	return &Prober{checker: checker, monitor: monitor, interval: interval, timeout: timeout, lg: lg}
}

// ProbeOnce checks the backend and feeds the result into the monitor.
func (p *Prober) ProbeOnce(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err := p.checker.Health(pctx)
	if err != nil && ctx.Err() != nil {
		return p.monitor.Status()
	}
	if err != nil {
		p.lg.Debug("probe_failed", map[string]any{"error": err.Error()})
	}
	p.monitor.Set(err == nil)
	return err == nil
}

func (p *Prober) Run(ctx context.Context) error {
	p.ProbeOnce(ctx)
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			p.ProbeOnce(ctx)
		}
	}
}
