package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQuotaTrackerLimits(t *testing.T) {
	store := &fakeSubmissionStore{counts: map[string]int{"hana@example.com": 2}}
	tracker := NewQuotaTracker(store, 3)

	ok, err := tracker.CanSubmit(context.Background(), "hana@example.com", 2026)
	require.NoError(t, err)
	require.True(t, ok)

	store.counts["hana@example.com"] = 3
	ok, err = tracker.CanSubmit(context.Background(), "hana@example.com", 2026)
	require.NoError(t, err)
	require.False(t, ok)

	// A contact never seen before has the full allowance.
	ok, err = tracker.CanSubmit(context.Background(), "omar@example.com", 2026)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestQuotaTrackerDefaultsLimit(t *testing.T) {
	tracker := NewQuotaTracker(&fakeSubmissionStore{}, 0)
	require.Equal(t, 3, tracker.Limit())
}

func TestQuotaTrackerCountForYear(t *testing.T) {
	store := &fakeSubmissionStore{counts: map[string]int{"hana@example.com": 1}}
	tracker := NewQuotaTracker(store, 3)

	count, err := tracker.CountForYear(context.Background(), "hana@example.com", 2026)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
