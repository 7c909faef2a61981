//go:build integration
// +build integration

package knowledge_test

import (
	"context"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemos/mnemos/internal/knowledge"
	"github.com/mnemos/mnemos/internal/testutil"
)

const testDimension = 768

// testVector builds a unit-ish vector pointing mostly along axis,
// so cosine ordering in tests is predictable.
func testVector(axis int) []float32 {
	vec := make([]float32, testDimension)
	vec[axis%testDimension] = 1
	return vec
}

// blendVectors returns a*x + b*y, giving controlled similarity between
// the two axes.
func blendVectors(x, y []float32, a, b float64) []float32 {
	vec := make([]float32, len(x))
	norm := math.Hypot(a, b)
	for i := range vec {
		vec[i] = float32((a*float64(x[i]) + b*float64(y[i])) / norm)
	}
	return vec
}

func setupStore(t *testing.T) (*knowledge.Store, *testutil.TestDBContainer, func()) {
	t.Helper()
	dbContainer, cleanup := testutil.SetupTestDB(t)
	store := knowledge.NewStore(dbContainer.Pool, testDimension, nil)
	return store, dbContainer, cleanup
}

func createDomain(t *testing.T, store *knowledge.Store, owner, name string) *knowledge.Domain {
	t.Helper()
	domain, err := store.CreateDomain(context.Background(), owner, name)
	require.NoError(t, err)
	return domain
}

func ingestDocument(t *testing.T, store *knowledge.Store, domainID uuid.UUID, title, content string, vec []float32) *knowledge.Document {
	t.Helper()
	ctx := context.Background()

	doc, err := store.Upsert(ctx, &knowledge.Document{
		DomainID:    domainID,
		Title:       title,
		Content:     content,
		ContentHash: knowledge.HashContent(content),
	})
	require.NoError(t, err)

	if vec != nil {
		require.NoError(t, store.AttachEmbedding(ctx, doc.ID, vec, "test-model"))
		doc.Embedding = vec
	}
	return doc
}

func TestStore_UpsertIdempotent_Integration(t *testing.T) {
	ctx := context.Background()
	store, _, cleanup := setupStore(t)
	defer cleanup()

	domain := createDomain(t, store, "user-1", "reading-notes")
	content := "Functions should do one thing."

	first := ingestDocument(t, store, domain.ID, "Clean Code", content, testVector(0))

	// Same canonical content again: same row, embedding untouched.
	second, err := store.Upsert(ctx, &knowledge.Document{
		DomainID:    domain.ID,
		Title:       "Clean Code",
		Content:     content,
		ContentHash: knowledge.HashContent(content),
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "duplicate upsert must resolve to the same document")
	assert.False(t, second.Pending(), "unchanged content must keep its embedding")

	found, err := store.FindByHash(ctx, domain.ID, knowledge.HashContent(content))
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
}

func TestStore_UpsertContentChangeInvalidatesEmbedding_Integration(t *testing.T) {
	ctx := context.Background()
	store, _, cleanup := setupStore(t)
	defer cleanup()

	domain := createDomain(t, store, "user-1", "reading-notes")
	content := "Functions should do one thing."
	first := ingestDocument(t, store, domain.ID, "Clean Code", content, testVector(0))

	// Same hash (case and whitespace fold away), different raw text.
	changed, err := store.Upsert(ctx, &knowledge.Document{
		DomainID:    domain.ID,
		Title:       "Clean Code",
		Content:     "Functions   SHOULD do one thing.",
		ContentHash: knowledge.HashContent(content),
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, changed.ID)
	assert.True(t, changed.Pending(), "content change must invalidate the stored embedding")
}

func TestStore_SemanticSearchOrderingAndThreshold_Integration(t *testing.T) {
	ctx := context.Background()
	store, _, cleanup := setupStore(t)
	defer cleanup()

	domain := createDomain(t, store, "user-1", "notes")
	query := testVector(0)

	near := ingestDocument(t, store, domain.ID, "Near", "Close in meaning.",
		blendVectors(testVector(0), testVector(1), 0.9, 0.1))
	far := ingestDocument(t, store, domain.ID, "Far", "Unrelated content.", testVector(1))

	matches, err := store.SemanticSearch(ctx, "user-1", []uuid.UUID{domain.ID}, query, 10, 0)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, near.ID, matches[0].Document.ID)
	assert.Equal(t, far.ID, matches[1].Document.ID)
	assert.Greater(t, matches[0].Score, matches[1].Score)

	// A threshold above the far document's similarity filters it out.
	matches, err = store.SemanticSearch(ctx, "user-1", []uuid.UUID{domain.ID}, query, 10, 0.5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, near.ID, matches[0].Document.ID)
}

func TestStore_SemanticSearchDimensionMismatch_Integration(t *testing.T) {
	ctx := context.Background()
	store, _, cleanup := setupStore(t)
	defer cleanup()

	domain := createDomain(t, store, "user-1", "notes")

	_, err := store.SemanticSearch(ctx, "user-1", []uuid.UUID{domain.ID}, make([]float32, 12), 10, 0)
	var dimErr *knowledge.DimensionError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, testDimension, dimErr.Want)
	assert.Equal(t, 12, dimErr.Got)
}

func TestStore_DomainScoping_Integration(t *testing.T) {
	ctx := context.Background()
	store, _, cleanup := setupStore(t)
	defer cleanup()

	domainA := createDomain(t, store, "user-1", "domain-a")
	domainB := createDomain(t, store, "user-1", "domain-b")

	// The closer match lives in B, but the search targets only A.
	inA := ingestDocument(t, store, domainA.ID, "In A", "Weak match in scope.",
		blendVectors(testVector(0), testVector(1), 0.3, 0.7))
	ingestDocument(t, store, domainB.ID, "In B", "Perfect match out of scope.", testVector(0))

	matches, err := store.SemanticSearch(ctx, "user-1", []uuid.UUID{domainA.ID}, testVector(0), 10, 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, inA.ID, matches[0].Document.ID)
}

func TestStore_OwnerScoping_Integration(t *testing.T) {
	ctx := context.Background()
	store, _, cleanup := setupStore(t)
	defer cleanup()

	other := createDomain(t, store, "user-2", "private")
	ingestDocument(t, store, other.ID, "Secret", "Private content.", testVector(0))

	// user-1 querying user-2's domain id gets nothing.
	matches, err := store.SemanticSearch(ctx, "user-1", []uuid.UUID{other.ID}, testVector(0), 10, 0)
	require.NoError(t, err)
	assert.Empty(t, matches)

	lexical, err := store.LexicalSearch(ctx, "user-1", []uuid.UUID{other.ID}, "private content", 10)
	require.NoError(t, err)
	assert.Empty(t, lexical)
}

func TestStore_LexicalSearchFindsPendingDocuments_Integration(t *testing.T) {
	ctx := context.Background()
	store, _, cleanup := setupStore(t)
	defer cleanup()

	domain := createDomain(t, store, "user-1", "notes")
	pending := ingestDocument(t, store, domain.ID, "Clean Code",
		"Functions should do one thing.", nil)

	matches, err := store.LexicalSearch(ctx, "user-1", []uuid.UUID{domain.ID}, "what should functions do", 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, pending.ID, matches[0].Document.ID)
	assert.Greater(t, matches[0].Score, 0.0)

	// Not visible to the semantic path until embedded.
	semantic, err := store.SemanticSearch(ctx, "user-1", []uuid.UUID{domain.ID}, testVector(0), 10, 0)
	require.NoError(t, err)
	assert.Empty(t, semantic)
}

func TestStore_MarkInactiveFreesDedupKey_Integration(t *testing.T) {
	ctx := context.Background()
	store, _, cleanup := setupStore(t)
	defer cleanup()

	domain := createDomain(t, store, "user-1", "notes")
	content := "Functions should do one thing."
	doc := ingestDocument(t, store, domain.ID, "Clean Code", content, testVector(0))

	require.NoError(t, store.MarkInactive(ctx, doc.ID))

	_, err := store.FindByHash(ctx, domain.ID, knowledge.HashContent(content))
	assert.ErrorIs(t, err, knowledge.ErrNotFound, "inactive documents leave dedup")

	// The soft-deleted row is still readable by id for stable history.
	got, err := store.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	// Re-ingesting identical content creates a fresh active document.
	again := ingestDocument(t, store, domain.ID, "Clean Code", content, testVector(0))
	assert.NotEqual(t, doc.ID, again.ID)
}

func TestStore_ListPending_Integration(t *testing.T) {
	ctx := context.Background()
	store, _, cleanup := setupStore(t)
	defer cleanup()

	domain := createDomain(t, store, "user-1", "notes")
	first := ingestDocument(t, store, domain.ID, "A", "First pending item.", nil)
	second := ingestDocument(t, store, domain.ID, "B", "Second pending item.", nil)
	ingestDocument(t, store, domain.ID, "C", "Already embedded item.", testVector(0))

	pending, err := store.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID, "oldest first")
	assert.Equal(t, second.ID, pending[1].ID)
}

func TestStore_CreateDomainDuplicate_Integration(t *testing.T) {
	ctx := context.Background()
	store, _, cleanup := setupStore(t)
	defer cleanup()

	createDomain(t, store, "user-1", "notes")

	_, err := store.CreateDomain(ctx, "user-1", "notes")
	assert.ErrorIs(t, err, knowledge.ErrDomainExists)

	// Same name for a different owner is fine.
	_, err = store.CreateDomain(ctx, "user-2", "notes")
	assert.NoError(t, err)
}

func TestStore_UpdateStats_Integration(t *testing.T) {
	ctx := context.Background()
	store, _, cleanup := setupStore(t)
	defer cleanup()

	domain := createDomain(t, store, "user-1", "notes")
	ingestDocument(t, store, domain.ID, "A", "One document.", nil)

	require.NoError(t, store.UpdateStats(ctx, domain.ID))

	got, err := store.GetDomain(ctx, domain.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalDocuments)
	assert.Equal(t, 1, got.TotalQueries)
	require.NotNil(t, got.LastQueryAt)
}
