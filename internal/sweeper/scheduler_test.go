package sweeper

import (
	"context"
	"testing"
	"time"

	model "auction-engine/internal/models"

	"github.com/stretchr/testify/require"
)

func TestNewScheduler_RejectsBadSpec(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := NewScheduler(f.sweeper, "every now and then", time.Minute)
	require.Error(t, err)

	s, err := NewScheduler(f.sweeper, "@every 1h", time.Minute)
	require.NoError(t, err)
	require.Len(t, s.cron.Entries(), 1)
}

func TestScheduler_RunSweepsDueAuctions(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.addAuction(t, "a1", 10, T)

	s, err := NewScheduler(f.sweeper, "@hourly", time.Minute)
	require.NoError(t, err)
	s.now = func() time.Time { return T.Add(time.Hour) }

	s.run()

	a, err := f.repo.GetAuction(context.Background(), "a1")
	require.NoError(t, err)
	require.Equal(t, model.StateClosedUnsold, a.State)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
