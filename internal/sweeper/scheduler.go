package sweeper

import (
	"context"
	"fmt"
	"time"

	"auction-engine/utils"

	"github.com/robfig/cron/v3"
)

// Scheduler runs Sweep on a cron schedule. Overlapping runs are skipped since
// a sweep already in flight will pick up the same auctions.
type Scheduler struct {
	cron    *cron.Cron
	sweeper *Sweeper
	now     func() time.Time
	timeout time.Duration
}

// NewScheduler parses spec (standard cron or descriptors such as "@every 1h")
func NewScheduler(sweeper *Sweeper, spec string, timeout time.Duration) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger))),
		sweeper: sweeper,
		now:     func() time.Time { return time.Now().UTC() },
		timeout: timeout,
	}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("sweeper: invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	utils.Info("sweeper: scheduler started", map[string]any{"entries": len(s.cron.Entries())})
}

// Stop waits for a running sweep to finish or ctx to expire
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		utils.Warn("sweeper: scheduler stop timed out", nil)
	}
}

func (s *Scheduler) run() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := time.Now()
	ids, err := s.sweeper.Sweep(ctx, s.now())
	fields := map[string]any{
		"closed":   len(ids),
		"duration": time.Since(started).String(),
	}
	if err != nil {
		fields["error"] = err.Error()
		utils.Error("sweeper: scheduled sweep finished with failures", fields)
		return
	}
	if len(ids) > 0 {
		utils.Info("sweeper: scheduled sweep finished", fields)
	}
}
