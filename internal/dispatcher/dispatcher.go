// Package dispatcher runs one worker per network and waits for them.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Runner is a single network worker.
type Runner interface {
	Name() string
	Run(ctx context.Context) error
}

// Dispatcher fans out to a set of workers.
type Dispatcher struct {
	workers []Runner
	logger  *zap.Logger
}

// New creates a Dispatcher.
func New(workers []Runner, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		workers: workers,
		logger:  logger,
	}
}

// Run starts all workers and blocks until every one of them has returned.
// A failing worker never stops the others; their errors are joined.
func (d *Dispatcher) Run(ctx context.Context) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk Runner) {
			defer wg.Done()
			if err := wk.Run(ctx); err != nil {
				d.logger.Error("worker stopped", zap.String("network", wk.Name()), zap.Error(err))
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", wk.Name(), err))
				mu.Unlock()
				return
			}
			d.logger.Info("worker stopped", zap.String("network", wk.Name()))
		}(w)
	}
	wg.Wait()
	return errors.Join(errs...)
}
