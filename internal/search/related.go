package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mnemos/mnemos/internal/knowledge"
)

// RelatedFinder surfaces the nearest neighbors of a stored document
// using its own embedding as the query vector.
type RelatedFinder struct {
	store  Store
	logger *slog.Logger
}

// NewRelatedFinder wires a RelatedFinder.
func NewRelatedFinder(store Store, logger *slog.Logger) *RelatedFinder {
	if logger == nil {
		logger = slog.Default()
	}
	return &RelatedFinder{store: store, logger: logger}
}

// Related returns up to maxResults neighbors of the given document,
// ordered by descending similarity, scoped to the document's own
// domain and excluding the document itself. A document that has not
// been embedded yet yields an empty result, not an error.
func (r *RelatedFinder) Related(ctx context.Context, documentID uuid.UUID, maxResults int) ([]knowledge.Match, error) {
	if maxResults <= 0 {
		maxResults = 5
	}

	doc, err := r.store.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("loading source document: %w", err)
	}
	if doc.Pending() {
		r.logger.Debug("related lookup on unembedded document", "document_id", documentID)
		return nil, nil
	}

	domain, err := r.store.GetDomain(ctx, doc.DomainID)
	if err != nil {
		return nil, fmt.Errorf("loading source domain: %w", err)
	}

	// Over-fetch by one because the source document is its own nearest
	// neighbor.
	matches, err := r.store.SemanticSearch(ctx, domain.OwnerUserID, []uuid.UUID{doc.DomainID}, doc.Embedding, maxResults+1, 0)
	if err != nil {
		return nil, fmt.Errorf("related search: %w", err)
	}

	related := make([]knowledge.Match, 0, maxResults)
	for _, m := range matches {
		if m.Document.ID == documentID {
			continue
		}
		related = append(related, m)
		if len(related) == maxResults {
			break
		}
	}
	return related, nil
}
