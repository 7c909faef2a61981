package knowledge

import (
	"time"

	"github.com/google/uuid"
)

// Document is a single knowledge item inside a domain.
//
// Embedding is nil until the ingestion pipeline attaches a vector; such
// documents are "pending" and visible to lexical search only.
type Document struct {
	ID             uuid.UUID
	DomainID       uuid.UUID
	Title          string
	Content        string
	Tags           []string
	ContentHash    string
	Embedding      []float32
	EmbeddingModel string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Pending reports whether the document still awaits its embedding.
func (d *Document) Pending() bool {
	return len(d.Embedding) == 0
}

// Domain is a namespace isolating one owner's documents from another's.
type Domain struct {
	ID             uuid.UUID
	Name           string
	OwnerUserID    string
	TotalDocuments int
	TotalQueries   int
	LastQueryAt    *time.Time
	CreatedAt      time.Time
}

// Match pairs a document with the score produced by one search path:
// cosine similarity for semantic search, ts_rank for lexical search.
type Match struct {
	Document Document
	Score    float64
}

// Resource identifies a quota-guarded resource class.
type Resource string

// Quota-guarded resources.
const (
	ResourceDocument Resource = "document"
	ResourceQuery    Resource = "query"
	ResourceDomain   Resource = "domain"
)

// Limits holds the per-user monthly ceilings. Limits are snapshotted
// into the quota row on first use in a period, which is what makes
// tiered plans per-user rather than global constants.
type Limits struct {
	MaxDocuments       int
	MaxQueriesPerMonth int
	MaxDomains         int
}

// QuotaRecord is the usage row for one (user, calendar month) pair.
// Counts only ever increase within a period; a new period starts a
// fresh row. Document deletion does not refund quota.
type QuotaRecord struct {
	UserID         string
	MonthYear      string // "2006-01"
	DocumentsCount int
	QueriesCount   int
	DomainsCount   int
	Limits         Limits
}

// QueryLogEntry records one served query. Immutable once written.
type QueryLogEntry struct {
	ID           uuid.UUID
	UserID       string
	DomainIDs    []uuid.UUID
	QueryText    string
	ResponseText string
	LatencyMS    int64
	CreatedAt    time.Time
}

// MonthKey returns the calendar-month quota period key for t in UTC.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
