package search

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/mnemos/mnemos/internal/knowledge"
)

func TestRelated_ExcludesSourceDocument(t *testing.T) {
	store := newMockSearchStore()
	domainID := uuid.New()
	source := &knowledge.Document{
		ID:        uuid.New(),
		DomainID:  domainID,
		Embedding: []float32{0.1, 0.2, 0.3},
	}
	store.docs[source.ID] = source
	store.domains[domainID] = &knowledge.Domain{ID: domainID, OwnerUserID: "user-1"}

	neighbor := match(0.8)
	store.semantic = []knowledge.Match{
		{Document: *source, Score: 1.0}, // the source is its own nearest neighbor
		neighbor,
	}

	finder := NewRelatedFinder(store, nil)
	results, err := finder.Related(context.Background(), source.ID, 5)
	if err != nil {
		t.Fatalf("Related: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Document.ID != neighbor.Document.ID {
		t.Error("source document must be excluded from its own neighbors")
	}
}

func TestRelated_PendingDocumentReturnsEmpty(t *testing.T) {
	store := newMockSearchStore()
	doc := &knowledge.Document{ID: uuid.New(), DomainID: uuid.New()}
	store.docs[doc.ID] = doc

	finder := NewRelatedFinder(store, nil)
	results, err := finder.Related(context.Background(), doc.ID, 5)
	if err != nil {
		t.Fatalf("Related on a pending document should not error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
	if store.semanticCalls != 0 {
		t.Error("no vector search should run without a source embedding")
	}
}

func TestRelated_UnknownDocument(t *testing.T) {
	finder := NewRelatedFinder(newMockSearchStore(), nil)

	if _, err := finder.Related(context.Background(), uuid.New(), 5); !errors.Is(err, knowledge.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestRelated_TruncatesToMaxResults(t *testing.T) {
	store := newMockSearchStore()
	domainID := uuid.New()
	source := &knowledge.Document{
		ID:        uuid.New(),
		DomainID:  domainID,
		Embedding: []float32{0.1, 0.2, 0.3},
	}
	store.docs[source.ID] = source
	store.domains[domainID] = &knowledge.Domain{ID: domainID, OwnerUserID: "user-1"}
	for range 4 {
		store.semantic = append(store.semantic, match(0.5))
	}

	finder := NewRelatedFinder(store, nil)
	results, err := finder.Related(context.Background(), source.ID, 2)
	if err != nil {
		t.Fatalf("Related: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want 2", len(results))
	}
}
