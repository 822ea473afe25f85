package screenshot

import (
	"context"
	"time"

	"github.com/olegrjumin/riskscan/internal/logging"
)

type recycler interface {
	RecycleUnhealthy() int
}

// Maintenance periodically restarts idle browsers that were marked unhealthy
type Maintenance struct {
	pool     recycler
	interval time.Duration
	logger   *logging.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewMaintenance creates a maintenance loop for pool
func NewMaintenance(pool recycler, interval time.Duration, logger *logging.Logger) *Maintenance {
	if interval <= 0 {
		interval = time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Maintenance{
		pool:     pool,
		interval: interval,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start runs the loop in the background until Stop
func (m *Maintenance) Start() {
	go func() {
		defer close(m.done)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.sweep()
			case <-m.ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the loop and waits for it to exit
func (m *Maintenance) Stop() {
	m.cancel()
	<-m.done
}

func (m *Maintenance) sweep() {
	if n := m.pool.RecycleUnhealthy(); n > 0 {
		m.logger.Info("recycled unhealthy browsers", "count", n)
	}
}
