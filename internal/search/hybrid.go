package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mnemos/mnemos/internal/knowledge"
)

// Store is the read side of the knowledge store the searcher needs.
type Store interface {
	SemanticSearch(ctx context.Context, ownerUserID string, domainIDs []uuid.UUID, queryVec []float32, topK int, minSimilarity float64) ([]knowledge.Match, error)
	LexicalSearch(ctx context.Context, ownerUserID string, domainIDs []uuid.UUID, queryText string, topK int) ([]knowledge.Match, error)
	GetByID(ctx context.Context, id uuid.UUID) (*knowledge.Document, error)
	GetDomain(ctx context.Context, id uuid.UUID) (*knowledge.Domain, error)
	UpdateStats(ctx context.Context, domainID uuid.UUID) error
}

// Quota reserves query capacity before any work runs.
type Quota interface {
	Reserve(ctx context.Context, userID string, resource knowledge.Resource) (*knowledge.QuotaRecord, error)
}

// Embedder turns the query text into a vector.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// Logbook records served queries for analytics.
type Logbook interface {
	Log(ctx context.Context, entry knowledge.QueryLogEntry) error
}

// Config tunes ranking and timeouts.
type Config struct {
	// SemanticWeight and LexicalWeight blend the two normalized score
	// sets. They should sum to 1. Defaults: 0.7 and 0.3.
	SemanticWeight float64
	LexicalWeight  float64

	// MinSimilarity filters semantic candidates before blending.
	MinSimilarity float64

	// Timeout bounds each sub-search. Defaults to 5s.
	Timeout time.Duration

	// LogTimeout bounds the detached analytics write. Defaults to 10s.
	LogTimeout time.Duration
}

// Searcher blends semantic and lexical retrieval into one ranking.
type Searcher struct {
	store    Store
	quota    Quota
	embedder Embedder
	logbook  Logbook
	cfg      Config
	logger   *slog.Logger

	// logged signals completion of the detached analytics write when
	// non-nil. Tests use it to wait for the fire-and-forget path.
	logged chan struct{}
}

// New wires a Searcher. logbook may be nil to disable query logging.
func New(store Store, quota Quota, embedder Embedder, logbook Logbook, cfg Config, logger *slog.Logger) (*Searcher, error) {
	if store == nil || quota == nil || embedder == nil {
		return nil, errors.New("search: store, quota, and embedder are required")
	}
	if cfg.SemanticWeight == 0 && cfg.LexicalWeight == 0 {
		cfg.SemanticWeight = 0.7
		cfg.LexicalWeight = 0.3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.LogTimeout <= 0 {
		cfg.LogTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{
		store:    store,
		quota:    quota,
		embedder: embedder,
		logbook:  logbook,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Search runs the hybrid query pipeline and returns up to topK
// documents ordered by blended score.
//
// Query quota is reserved first; a denial short-circuits before any
// provider or storage work. The semantic path is best effort: an
// embedding or vector-search failure degrades the response to
// lexical-only. A lexical failure is fatal, since that path failing
// means the store itself is unhealthy. The query log write and domain
// stats update happen after the response is ready and never delay or
// fail it.
func (s *Searcher) Search(ctx context.Context, userID string, domainIDs []uuid.UUID, queryText string, topK int) ([]knowledge.Match, error) {
	if len(domainIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one domain id is required", knowledge.ErrInvalidArgument)
	}
	if strings.TrimSpace(queryText) == "" {
		return nil, fmt.Errorf("%w: query text is empty", knowledge.ErrInvalidArgument)
	}
	if topK <= 0 {
		topK = 10
	}

	start := time.Now()

	if _, err := s.quota.Reserve(ctx, userID, knowledge.ResourceQuery); err != nil {
		return nil, err
	}

	queryVec, err := s.embedder.EmbedOne(ctx, queryText)
	if err != nil {
		s.logger.Warn("query embedding failed, degrading to lexical only",
			"user_id", userID, "error", err)
		queryVec = nil
	}

	semantic, lexical, err := s.fanOut(ctx, userID, domainIDs, queryVec, queryText, topK)
	if err != nil {
		return nil, err
	}

	matches := blend(semantic, lexical, s.cfg.SemanticWeight, s.cfg.LexicalWeight, topK)

	s.record(ctx, userID, domainIDs, queryText, len(matches), time.Since(start))

	s.logger.Debug("search served",
		"user_id", userID,
		"domains", len(domainIDs),
		"semantic", len(semantic),
		"lexical", len(lexical),
		"results", len(matches),
		"elapsed", time.Since(start))
	return matches, nil
}

// fanOut runs both sub-searches concurrently. queryVec nil skips the
// semantic path entirely.
func (s *Searcher) fanOut(ctx context.Context, userID string, domainIDs []uuid.UUID, queryVec []float32, queryText string, topK int) (semantic, lexical []knowledge.Match, err error) {
	subCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	semanticCh := make(chan []knowledge.Match, 1)
	if queryVec != nil {
		go func() {
			matches, serr := s.store.SemanticSearch(subCtx, userID, domainIDs, queryVec, topK, s.cfg.MinSimilarity)
			if serr != nil {
				s.logger.Warn("semantic search failed, degrading to lexical only",
					"user_id", userID, "error", serr)
				matches = nil
			}
			semanticCh <- matches
		}()
	} else {
		semanticCh <- nil
	}

	lexical, lerr := s.store.LexicalSearch(subCtx, userID, domainIDs, queryText, topK)
	semantic = <-semanticCh
	if lerr != nil {
		return nil, nil, fmt.Errorf("lexical search: %w", lerr)
	}
	return semantic, lexical, nil
}

// record performs the fire-and-forget analytics write on a context
// detached from the request.
func (s *Searcher) record(ctx context.Context, userID string, domainIDs []uuid.UUID, queryText string, results int, latency time.Duration) {
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.LogTimeout)
	go func() {
		defer cancel()
		if s.logged != nil {
			defer close(s.logged)
		}

		if s.logbook != nil {
			entry := knowledge.QueryLogEntry{
				UserID:       userID,
				DomainIDs:    domainIDs,
				QueryText:    queryText,
				ResponseText: fmt.Sprintf("%d results", results),
				LatencyMS:    latency.Milliseconds(),
			}
			if err := s.logbook.Log(bg, entry); err != nil {
				s.logger.Warn("query log write failed", "user_id", userID, "error", err)
			}
		}

		for _, domainID := range domainIDs {
			if err := s.store.UpdateStats(bg, domainID); err != nil {
				s.logger.Warn("domain stats update failed",
					"domain_id", domainID, "error", err)
			}
		}
	}()
}

// blend merges both candidate sets by document id. Each score set is
// min-max normalized to [0,1] independently; a document present on
// only one side contributes 0 for the missing component instead of
// being dropped.
func blend(semantic, lexical []knowledge.Match, wSem, wLex float64, topK int) []knowledge.Match {
	if len(semantic) == 0 && len(lexical) == 0 {
		return nil
	}

	semScores := normalize(semantic)
	lexScores := normalize(lexical)

	type candidate struct {
		doc   knowledge.Document
		score float64
	}
	byID := make(map[uuid.UUID]*candidate, len(semantic)+len(lexical))

	for i, m := range semantic {
		byID[m.Document.ID] = &candidate{doc: m.Document, score: wSem * semScores[i]}
	}
	for i, m := range lexical {
		if c, ok := byID[m.Document.ID]; ok {
			c.score += wLex * lexScores[i]
			continue
		}
		byID[m.Document.ID] = &candidate{doc: m.Document, score: wLex * lexScores[i]}
	}

	merged := make([]knowledge.Match, 0, len(byID))
	for _, c := range byID {
		merged = append(merged, knowledge.Match{Document: c.doc, Score: c.score})
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].Document.UpdatedAt.After(merged[j].Document.UpdatedAt)
	})

	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged
}

// normalize min-max scales match scores to [0,1], aligned by index.
// A single candidate, or a flat score set, normalizes to 1 so it still
// outranks absence.
func normalize(matches []knowledge.Match) []float64 {
	if len(matches) == 0 {
		return nil
	}

	lo, hi := matches[0].Score, matches[0].Score
	for _, m := range matches[1:] {
		if m.Score < lo {
			lo = m.Score
		}
		if m.Score > hi {
			hi = m.Score
		}
	}

	scores := make([]float64, len(matches))
	if hi == lo {
		for i := range scores {
			scores[i] = 1
		}
		return scores
	}
	for i, m := range matches {
		scores[i] = (m.Score - lo) / (hi - lo)
	}
	return scores
}
