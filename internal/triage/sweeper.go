package triage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ripefield/quality-cli/internal/config"
	"github.com/ripefield/quality-cli/internal/store"
)

// Sweeper runs the periodic auto-resolve sweep in the background.
// The store's guarded update makes it safe to run concurrently with manual
// status changes: records already out of pending are never touched.
type Sweeper struct {
	store store.Store
	cfg   config.TriageConfig
}

// NewSweeper creates a background auto-resolve sweeper.
func NewSweeper(st store.Store, cfg config.TriageConfig) *Sweeper {
	return &Sweeper{store: st, cfg: cfg}
}

// Run starts the sweep loop. It blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	interval := time.Duration(s.cfg.SweepIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	log := zap.L().With(zap.String("component", "triage.sweeper"))
	log.Info("starting auto-resolve sweeper", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("auto-resolve sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx, log)
		}
	}
}

// SweepOnce runs a single sweep pass and returns the number of records
// transitioned.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	return s.store.AutoResolveDue(ctx, time.Now())
}

func (s *Sweeper) sweep(ctx context.Context, log *zap.Logger) {
	n, err := s.store.AutoResolveDue(ctx, time.Now())
	if err != nil {
		log.Error("triage: auto-resolve sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("triage: auto-resolved exceptions", zap.Int("count", n))
	} else {
		log.Debug("triage: nothing due for auto-resolve")
	}
}
