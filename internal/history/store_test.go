package history

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/dochub/internal/report"
)

func finishedReport(succeeded, failed, skipped int, hub report.HubStatus) *report.BuildReport {
	agg := report.NewAggregator(nil, "abc123")
	n := 0
	add := func(count int, outcome report.Outcome) {
		for i := 0; i < count; i++ {
			agg.Record(report.Task{Package: fmt.Sprintf("pkg-%d", n), Outcome: outcome})
			n++
		}
	}
	add(succeeded, report.OutcomeSucceeded)
	add(failed, report.OutcomeFailedRecoverable)
	add(skipped, report.OutcomeSkipped)
	return agg.Finalize(hub, false)
}

func TestStoreAppendAndRecent(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	first := finishedReport(3, 1, 1, report.HubSucceeded)
	second := finishedReport(5, 0, 0, report.HubSucceeded)
	// Distinct start seconds keep the newest-first ordering deterministic.
	first.Start = time.Now().Add(-time.Minute)
	require.NoError(t, s.Append(ctx, first))
	require.NoError(t, s.Append(ctx, second))

	entries, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, second.RunID, entries[0].RunID)
	assert.Equal(t, 5, entries[0].Succeeded)
	assert.Equal(t, first.RunID, entries[1].RunID)
	assert.Equal(t, 3, entries[1].Succeeded)
	assert.Equal(t, 1, entries[1].Failed)
	assert.Equal(t, 1, entries[1].Skipped)
	assert.Equal(t, report.HubSucceeded, entries[1].HubStatus)
	assert.Equal(t, "abc123", entries[1].Revision)
}

func TestStoreRecentHonorsLimit(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		r := finishedReport(1, 0, 0, report.HubSkipped)
		r.Start = time.Now().Add(time.Duration(i) * time.Second)
		require.NoError(t, s.Append(ctx, r))
	}

	entries, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestStoreReportRoundTrip(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	r := finishedReport(2, 1, 0, report.HubFailed)
	require.NoError(t, s.Append(ctx, r))

	got, err := s.Report(ctx, r.RunID)
	require.NoError(t, err)
	assert.Equal(t, r.RunID, got.RunID)
	assert.Equal(t, report.HubFailed, got.HubStatus)
	assert.Len(t, got.Tasks, 3)
}

func TestStoreReportUnknownRun(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Report(context.Background(), "no-such-run")
	require.Error(t, err)
}

func TestStoreRejectsDuplicateRunID(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	r := finishedReport(1, 0, 0, report.HubSkipped)
	require.NoError(t, s.Append(ctx, r))
	require.Error(t, s.Append(ctx, r))
}
