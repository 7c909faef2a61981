//go:build integration
// +build integration

package knowledge_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemos/mnemos/internal/knowledge"
	"github.com/mnemos/mnemos/internal/testutil"
)

func defaultLimits() knowledge.Limits {
	return knowledge.Limits{
		MaxDocuments:       5,
		MaxQueriesPerMonth: 10,
		MaxDomains:         2,
	}
}

func TestLedger_ReserveAndDeny_Integration(t *testing.T) {
	ctx := context.Background()
	dbContainer, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ledger := knowledge.NewLedger(dbContainer.Pool, defaultLimits(), nil)

	for i := 1; i <= 5; i++ {
		rec, err := ledger.Reserve(ctx, "user-1", knowledge.ResourceDocument)
		require.NoError(t, err)
		assert.Equal(t, i, rec.DocumentsCount)
	}

	_, err := ledger.Reserve(ctx, "user-1", knowledge.ResourceDocument)
	var qe *knowledge.QuotaError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, knowledge.ResourceDocument, qe.Resource)
	assert.Equal(t, 5, qe.Used)
	assert.Equal(t, 5, qe.Limit)

	// Other resources for the same user are unaffected.
	rec, err := ledger.Reserve(ctx, "user-1", knowledge.ResourceQuery)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.QueriesCount)
	assert.Equal(t, 5, rec.DocumentsCount)
}

func TestLedger_ConcurrentReservationsNeverOvershoot_Integration(t *testing.T) {
	ctx := context.Background()
	dbContainer, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	const limit = 7
	const attempts = 25

	ledger := knowledge.NewLedger(dbContainer.Pool,
		knowledge.Limits{MaxDocuments: limit, MaxQueriesPerMonth: 100, MaxDomains: 10}, nil)

	var granted, denied atomic.Int64
	var wg sync.WaitGroup
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Reserve(ctx, "user-1", knowledge.ResourceDocument)
			switch {
			case err == nil:
				granted.Add(1)
			case errors.As(err, new(*knowledge.QuotaError)):
				denied.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(limit), granted.Load(), "grants must equal the ceiling exactly")
	assert.Equal(t, int64(attempts-limit), denied.Load())

	rec, err := ledger.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, limit, rec.DocumentsCount, "counter must never pass the ceiling")
}

func TestLedger_GetSynthesizesDefaults_Integration(t *testing.T) {
	ctx := context.Background()
	dbContainer, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ledger := knowledge.NewLedger(dbContainer.Pool, defaultLimits(), nil)

	rec, err := ledger.Get(ctx, "fresh-user")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.DocumentsCount)
	assert.Equal(t, defaultLimits(), rec.Limits)
}

func TestLedger_SetLimitsTieredPlan_Integration(t *testing.T) {
	ctx := context.Background()
	dbContainer, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ledger := knowledge.NewLedger(dbContainer.Pool, defaultLimits(), nil)

	// Consume the default ceiling, then raise it for this user only.
	for range 5 {
		_, err := ledger.Reserve(ctx, "user-1", knowledge.ResourceDocument)
		require.NoError(t, err)
	}
	_, err := ledger.Reserve(ctx, "user-1", knowledge.ResourceDocument)
	require.ErrorAs(t, err, new(*knowledge.QuotaError))

	require.NoError(t, ledger.SetLimits(ctx, "user-1", knowledge.Limits{
		MaxDocuments:       100,
		MaxQueriesPerMonth: 100,
		MaxDomains:         10,
	}))

	rec, err := ledger.Reserve(ctx, "user-1", knowledge.ResourceDocument)
	require.NoError(t, err)
	assert.Equal(t, 6, rec.DocumentsCount, "raised ceiling keeps existing usage")

	// Other users stay on the defaults.
	other, err := ledger.Get(ctx, "user-2")
	require.NoError(t, err)
	assert.Equal(t, defaultLimits(), other.Limits)
}

func TestQueryLog_RoundTrip_Integration(t *testing.T) {
	ctx := context.Background()
	dbContainer, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store := knowledge.NewStore(dbContainer.Pool, testDimension, nil)
	domain := createDomain(t, store, "user-1", "notes")
	querylog := knowledge.NewQueryLog(dbContainer.Pool, nil)

	queries := []string{"first question", "second question", "third question"}
	for _, q := range queries {
		require.NoError(t, querylog.Log(ctx, knowledge.QueryLogEntry{
			UserID:       "user-1",
			DomainIDs:    []uuid.UUID{domain.ID},
			QueryText:    q,
			ResponseText: "3 results",
			LatencyMS:    42,
		}))
	}
	require.NoError(t, querylog.Log(ctx, knowledge.QueryLogEntry{
		UserID:    "user-2",
		QueryText: "someone else's question",
	}))

	entries, err := querylog.RecentByUser(ctx, "user-1", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "third question", entries[0].QueryText, "newest first")
	assert.Equal(t, "second question", entries[1].QueryText)
	assert.Equal(t, []uuid.UUID{domain.ID}, entries[0].DomainIDs)
	assert.Equal(t, int64(42), entries[0].LatencyMS)
}
