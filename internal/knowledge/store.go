package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// DB is the subset of pgxpool.Pool the store needs. Defining it here
// keeps the store testable against a transaction or a pool alike.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store manages documents and domains in PostgreSQL + pgvector.
//
// Every search method scopes results to domains owned by the requesting
// user; callers cannot opt out of that filter.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     DB
	dim    int
	logger *slog.Logger
}

// NewStore creates a Store bound to the deployment's fixed embedding
// dimension. Vectors of any other dimension are rejected with
// *DimensionError before reaching the database.
func NewStore(db DB, dim int, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		db:     db,
		dim:    dim,
		logger: logger,
	}
}

// Dimension returns the embedding dimension the store is provisioned for.
func (s *Store) Dimension() int { return s.dim }

const documentColumns = `d.id::text, d.domain_id::text, d.title, d.content, d.tags,
	d.content_hash, d.embedding, d.embedding_model, d.is_active, d.created_at, d.updated_at`

// scanner matches both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*Document, error) {
	var (
		doc       Document
		idStr     string
		domainStr string
		embedding *pgvector.Vector
		model     *string
	)
	if err := row.Scan(&idStr, &domainStr, &doc.Title, &doc.Content, &doc.Tags,
		&doc.ContentHash, &embedding, &model, &doc.IsActive, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if doc.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("parsing document id: %w", err)
	}
	if doc.DomainID, err = uuid.Parse(domainStr); err != nil {
		return nil, fmt.Errorf("parsing domain id: %w", err)
	}
	if embedding != nil {
		doc.Embedding = embedding.Slice()
	}
	if model != nil {
		doc.EmbeddingModel = *model
	}
	return &doc, nil
}

// FindByHash performs the dedup lookup for a canonicalized content hash
// within a domain. Only active documents participate; returns
// ErrNotFound when no match exists.
func (s *Store) FindByHash(ctx context.Context, domainID uuid.UUID, contentHash string) (*Document, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+documentColumns+`
		FROM documents d
		WHERE d.domain_id = $1 AND d.content_hash = $2 AND d.is_active`,
		domainID.String(), contentHash)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("finding document by hash: %w", err)
	}
	return doc, nil
}

// Upsert inserts a document, or updates the existing active document
// with the same (domain_id, content_hash) in place. On update the
// embedding is invalidated only when the content text actually changed;
// a pure title/tags refresh keeps the stored vector.
//
// The document is written with a nil embedding; AttachEmbedding patches
// the vector in once the provider call succeeds. This ordering makes
// new documents visible to lexical search immediately.
func (s *Store) Upsert(ctx context.Context, doc *Document) (*Document, error) {
	if doc.DomainID == uuid.Nil {
		return nil, fmt.Errorf("%w: domain id is required", ErrInvalidArgument)
	}
	if doc.Content == "" {
		return nil, fmt.Errorf("%w: content is empty", ErrInvalidArgument)
	}
	if doc.ContentHash == "" {
		return nil, fmt.Errorf("%w: content hash is empty", ErrInvalidArgument)
	}

	id := doc.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	tags := doc.Tags
	if tags == nil {
		tags = []string{}
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO documents AS d (id, domain_id, title, content, tags, content_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (domain_id, content_hash) WHERE is_active DO UPDATE SET
			title = EXCLUDED.title,
			tags = EXCLUDED.tags,
			embedding = CASE WHEN d.content IS DISTINCT FROM EXCLUDED.content
				THEN NULL ELSE d.embedding END,
			embedding_model = CASE WHEN d.content IS DISTINCT FROM EXCLUDED.content
				THEN NULL ELSE d.embedding_model END,
			content = EXCLUDED.content,
			updated_at = CASE WHEN (d.title, d.content, d.tags) IS DISTINCT FROM
				(EXCLUDED.title, EXCLUDED.content, EXCLUDED.tags)
				THEN now() ELSE d.updated_at END
		RETURNING `+documentColumns,
		id.String(), doc.DomainID.String(), doc.Title, doc.Content, tags, doc.ContentHash)

	stored, err := scanDocument(row)
	if err != nil {
		return nil, fmt.Errorf("upserting document: %w", err)
	}

	s.logger.Debug("upserted document",
		"id", stored.ID,
		"domain_id", stored.DomainID,
		"content_length", len(stored.Content))
	return stored, nil
}

// AttachEmbedding patches the embedding vector into a stored document,
// completing the pending state.
func (s *Store) AttachEmbedding(ctx context.Context, id uuid.UUID, vec []float32, model string) error {
	if len(vec) != s.dim {
		return &DimensionError{Want: s.dim, Got: len(vec)}
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE documents
		SET embedding = $2, embedding_model = $3, updated_at = now()
		WHERE id = $1 AND is_active`,
		id.String(), pgvector.NewVector(vec), model)
	if err != nil {
		return fmt.Errorf("attaching embedding to %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	s.logger.Debug("attached embedding", "id", id, "model", model)
	return nil
}

// SemanticSearch runs nearest-neighbor search by cosine similarity
// (1 - cosine distance), restricted to active, embedded documents in
// the given domains owned by ownerUserID. Results with similarity below
// minSimilarity are dropped; ordering is similarity descending with
// most-recent updated_at breaking ties.
func (s *Store) SemanticSearch(ctx context.Context, ownerUserID string, domainIDs []uuid.UUID, queryVec []float32, topK int, minSimilarity float64) ([]Match, error) {
	if len(domainIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one domain id is required", ErrInvalidArgument)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", ErrInvalidArgument, topK)
	}
	if len(queryVec) != s.dim {
		return nil, &DimensionError{Want: s.dim, Got: len(queryVec)}
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+documentColumns+`, 1 - (d.embedding <=> $1) AS similarity
		FROM documents d
		JOIN domains dom ON dom.id = d.domain_id
		WHERE dom.owner_user_id = $2
		  AND d.domain_id = ANY($3::uuid[])
		  AND d.is_active
		  AND d.embedding IS NOT NULL
		  AND 1 - (d.embedding <=> $1) >= $4
		ORDER BY similarity DESC, d.updated_at DESC
		LIMIT $5`,
		pgvector.NewVector(queryVec), ownerUserID, uuidStrings(domainIDs), minSimilarity, topK)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	defer rows.Close()

	return collectMatches(rows)
}

// LexicalSearch runs full-text relevance ranking over title, content,
// and tags, with the same active/domain/ownership filters as
// SemanticSearch. Pending documents (nil embedding) participate, which
// is what keeps freshly ingested content findable before its provider
// call completes.
func (s *Store) LexicalSearch(ctx context.Context, ownerUserID string, domainIDs []uuid.UUID, queryText string, topK int) ([]Match, error) {
	if len(domainIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one domain id is required", ErrInvalidArgument)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", ErrInvalidArgument, topK)
	}
	if queryText == "" {
		return nil, fmt.Errorf("%w: query text is empty", ErrInvalidArgument)
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+documentColumns+`, ts_rank(d.search_tsv, q.query) AS rank
		FROM documents d
		JOIN domains dom ON dom.id = d.domain_id
		CROSS JOIN websearch_to_tsquery('english', $1) AS q(query)
		WHERE dom.owner_user_id = $2
		  AND d.domain_id = ANY($3::uuid[])
		  AND d.is_active
		  AND d.search_tsv @@ q.query
		ORDER BY rank DESC, d.updated_at DESC
		LIMIT $4`,
		queryText, ownerUserID, uuidStrings(domainIDs), topK)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	return collectMatches(rows)
}

// GetByID retrieves a document regardless of its active flag.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*Document, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+documentColumns+`
		FROM documents d
		WHERE d.id = $1`,
		id.String())

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting document %s: %w", id, err)
	}
	return doc, nil
}

// MarkInactive soft-deletes a document. Rows are never hard-deleted so
// embedding distances stay stable for concurrent related-document
// queries.
func (s *Store) MarkInactive(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE documents SET is_active = FALSE, updated_at = now()
		WHERE id = $1 AND is_active`,
		id.String())
	if err != nil {
		return fmt.Errorf("marking document %s inactive: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	s.logger.Debug("marked document inactive", "id", id)
	return nil
}

// ListPending returns active documents still awaiting an embedding,
// oldest first, for the retry pass.
func (s *Store) ListPending(ctx context.Context, limit int) ([]Document, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidArgument, limit)
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+documentColumns+`
		FROM documents d
		WHERE d.is_active AND d.embedding IS NULL
		ORDER BY d.created_at
		LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("listing pending documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning pending document: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing pending documents: %w", err)
	}
	return docs, nil
}

// CreateDomain creates a domain for an owner. Domain names are unique
// per owner; a clash returns ErrDomainExists rather than merging.
func (s *Store) CreateDomain(ctx context.Context, ownerUserID, name string) (*Domain, error) {
	if ownerUserID == "" || name == "" {
		return nil, fmt.Errorf("%w: owner and name are required", ErrInvalidArgument)
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO domains (id, name, owner_user_id)
		VALUES ($1, $2, $3)
		RETURNING id::text, name, owner_user_id, total_documents, total_queries, last_query_at, created_at`,
		uuid.New().String(), name, ownerUserID)

	dom, err := scanDomain(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, fmt.Errorf("%w: %q for user %s", ErrDomainExists, name, ownerUserID)
		}
		return nil, fmt.Errorf("creating domain %q: %w", name, err)
	}

	s.logger.Debug("created domain", "id", dom.ID, "name", name, "owner", ownerUserID)
	return dom, nil
}

// GetDomain retrieves a domain by id.
func (s *Store) GetDomain(ctx context.Context, id uuid.UUID) (*Domain, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id::text, name, owner_user_id, total_documents, total_queries, last_query_at, created_at
		FROM domains WHERE id = $1`,
		id.String())

	dom, err := scanDomain(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting domain %s: %w", id, err)
	}
	return dom, nil
}

// UpdateStats refreshes a domain's document count and records one
// served query against it. Called best-effort after each search; a
// failure here must never fail the search response.
func (s *Store) UpdateStats(ctx context.Context, domainID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE domains SET
			total_documents = (SELECT count(*) FROM documents WHERE domain_id = $1 AND is_active),
			total_queries = total_queries + 1,
			last_query_at = now()
		WHERE id = $1`,
		domainID.String())
	if err != nil {
		return fmt.Errorf("updating stats for domain %s: %w", domainID, err)
	}
	return nil
}

// RefreshDocumentCount recomputes a domain's active document count
// without touching its query stats. Called after ingestion writes.
func (s *Store) RefreshDocumentCount(ctx context.Context, domainID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE domains SET
			total_documents = (SELECT count(*) FROM documents WHERE domain_id = $1 AND is_active)
		WHERE id = $1`,
		domainID.String())
	if err != nil {
		return fmt.Errorf("refreshing document count for domain %s: %w", domainID, err)
	}
	return nil
}

func scanDomain(row scanner) (*Domain, error) {
	var (
		dom   Domain
		idStr string
	)
	if err := row.Scan(&idStr, &dom.Name, &dom.OwnerUserID,
		&dom.TotalDocuments, &dom.TotalQueries, &dom.LastQueryAt, &dom.CreatedAt); err != nil {
		return nil, err
	}

	var err error
	if dom.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("parsing domain id: %w", err)
	}
	return &dom, nil
}

func collectMatches(rows pgx.Rows) ([]Match, error) {
	var matches []Match
	for rows.Next() {
		var (
			doc       Document
			idStr     string
			domainStr string
			embedding *pgvector.Vector
			model     *string
			score     float64
		)
		if err := rows.Scan(&idStr, &domainStr, &doc.Title, &doc.Content, &doc.Tags,
			&doc.ContentHash, &embedding, &model, &doc.IsActive,
			&doc.CreatedAt, &doc.UpdatedAt, &score); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}

		var err error
		if doc.ID, err = uuid.Parse(idStr); err != nil {
			return nil, fmt.Errorf("parsing document id: %w", err)
		}
		if doc.DomainID, err = uuid.Parse(domainStr); err != nil {
			return nil, fmt.Errorf("parsing domain id: %w", err)
		}
		if embedding != nil {
			doc.Embedding = embedding.Slice()
		}
		if model != nil {
			doc.EmbeddingModel = *model
		}

		matches = append(matches, Match{Document: doc, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search results: %w", err)
	}
	return matches, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
