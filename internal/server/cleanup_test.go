package server

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePruner struct {
	cutoffs []time.Time
	deleted int64
	err     error
}

func (f *fakePruner) PruneHealthChecks(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.deleted, f.err
}

func TestRunCleanupUsesRetention(t *testing.T) {
	p := &fakePruner{deleted: 3}
	now := time.Date(2024, 5, 17, 12, 0, 0, 0, time.UTC)

	runCleanup(context.Background(), CleanupConfig{Retention: 48 * time.Hour, Store: p}, now)

	require.Len(t, p.cutoffs, 1)
	assert.Equal(t, now.Add(-48*time.Hour), p.cutoffs[0])
}

func TestRunCleanupSurvivesErrors(t *testing.T) {
	p := &fakePruner{err: errors.New("db down")}
	runCleanup(context.Background(), CleanupConfig{Retention: time.Hour, Store: p}, time.Now())
	assert.Len(t, p.cutoffs, 1)
}

func TestStartCleanupJob(t *testing.T) {
	c, err := StartCleanupJob(CleanupConfig{Schedule: "", Store: &fakePruner{}})
	require.NoError(t, err)
	assert.Nil(t, c, "empty schedule disables the job")

	_, err = StartCleanupJob(CleanupConfig{Schedule: "not a schedule", Retention: time.Hour, Store: &fakePruner{}})
	assert.Error(t, err)

	_, err = StartCleanupJob(CleanupConfig{Schedule: "@hourly", Store: &fakePruner{}})
	assert.Error(t, err, "retention must be positive")

	c, err = StartCleanupJob(CleanupConfig{Schedule: "@hourly", Retention: time.Hour, Store: &fakePruner{}})
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Len(t, c.Entries(), 1)
	<-c.Stop().Done()
}
