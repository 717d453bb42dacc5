package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jbelanger/exitbook/linker"
)

func TestMemoryLinkStoreUpsertAndQuery(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryLinkStore()

	l := linker.Link{SourceTransactionID: "s1", TargetTransactionID: "t1", LinkType: "blockchain-to-exchange", Confidence: 0.9, Status: linker.LinkStatusSuggested}
	require.NoError(t, s.Upsert(ctx, l))

	bySource, err := s.ForSource(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, bySource, 1)

	byTarget, err := s.ForTarget(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, byTarget, 1)

	confirmed, err := s.Confirmed(ctx)
	require.NoError(t, err)
	require.Empty(t, confirmed)

	l.Status = linker.LinkStatusConfirmed
	require.NoError(t, s.Upsert(ctx, l))

	confirmed, err = s.Confirmed(ctx)
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
}
