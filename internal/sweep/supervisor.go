package sweep

import (
	"context"
	"log/slog"
	"sync"
)

// Sweeper is a periodic background loop owned by the Supervisor.
type Sweeper interface {
	// Name identifies the sweeper in logs and metrics.
	Name() string

	// Run executes the loop until ctx is cancelled.
	Run(ctx context.Context)
}

// Supervisor owns the lifecycle of the sweepers: it starts each in its own
// goroutine and, on Stop, signals cancellation and waits for every loop to
// exit cleanly. Cancellation is observed between items, so an in-flight
// notification always finishes before the loop returns.
type Supervisor struct {
	sweepers []Sweeper
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	logger   *slog.Logger
}

// NewSupervisor creates a supervisor over the given sweepers.
func NewSupervisor(logger *slog.Logger, sweepers ...Sweeper) *Supervisor {
	return &Supervisor{
		sweepers: sweepers,
		logger:   logger.With("component", "sweep_supervisor"),
	}
}

// Start launches every sweeper.
func (s *Supervisor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	for _, sweeper := range s.sweepers {
		s.wg.Add(1)
		go func(sw Sweeper) {
			defer s.wg.Done()
			s.logger.Info("sweeper started", "sweeper", sw.Name())
			sw.Run(ctx)
			s.logger.Info("sweeper stopped", "sweeper", sw.Name())
		}(sweeper)
	}
}

// Stop signals cancellation and blocks until all sweepers have exited.
func (s *Supervisor) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}
