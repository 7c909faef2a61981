package knowledge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// QueryLog records served queries for analytics. Entries are immutable
// once written; nothing in the system updates or deletes them.
//
// The searcher writes entries fire-and-forget, so Log failures are
// logged and swallowed at the call site rather than surfaced to users.
type QueryLog struct {
	db     DB
	logger *slog.Logger
}

// NewQueryLog creates a QueryLog.
func NewQueryLog(db DB, logger *slog.Logger) *QueryLog {
	if logger == nil {
		logger = slog.Default()
	}

	return &QueryLog{db: db, logger: logger}
}

// Log inserts one entry. A zero entry ID is assigned server-side.
func (q *QueryLog) Log(ctx context.Context, entry QueryLogEntry) error {
	if entry.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidArgument)
	}

	id := entry.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	_, err := q.db.Exec(ctx, `
		INSERT INTO query_logs (id, user_id, domain_ids, query_text, response_text, latency_ms)
		VALUES ($1, $2, $3::uuid[], $4, $5, $6)`,
		id.String(), entry.UserID, uuidStrings(entry.DomainIDs),
		entry.QueryText, entry.ResponseText, entry.LatencyMS)
	if err != nil {
		return fmt.Errorf("logging query: %w", err)
	}

	q.logger.Debug("logged query",
		"user_id", entry.UserID, "domains", len(entry.DomainIDs), "latency_ms", entry.LatencyMS)
	return nil
}

// RecentByUser returns the user's most recent entries, newest first.
func (q *QueryLog) RecentByUser(ctx context.Context, userID string, limit int) ([]QueryLogEntry, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidArgument)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidArgument, limit)
	}

	rows, err := q.db.Query(ctx, `
		SELECT id::text, user_id, domain_ids::text[], query_text, response_text, latency_ms, created_at
		FROM query_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing query log for user %s: %w", userID, err)
	}
	defer rows.Close()

	var entries []QueryLogEntry
	for rows.Next() {
		var (
			entry      QueryLogEntry
			idStr      string
			domainStrs []string
		)
		if err := rows.Scan(&idStr, &entry.UserID, &domainStrs,
			&entry.QueryText, &entry.ResponseText, &entry.LatencyMS, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning query log entry: %w", err)
		}

		if entry.ID, err = uuid.Parse(idStr); err != nil {
			return nil, fmt.Errorf("parsing query log id: %w", err)
		}
		entry.DomainIDs = make([]uuid.UUID, 0, len(domainStrs))
		for _, s := range domainStrs {
			domID, err := uuid.Parse(s)
			if err != nil {
				return nil, fmt.Errorf("parsing query log domain id: %w", err)
			}
			entry.DomainIDs = append(entry.DomainIDs, domID)
		}

		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing query log: %w", err)
	}
	return entries, nil
}
