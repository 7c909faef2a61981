package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
)

// counterColumn maps a resource to its usage/ceiling columns. Values
// are compile-time constants, never user input, so interpolating them
// into SQL is safe.
var counterColumns = map[Resource]struct{ count, limit string }{
	ResourceDocument: {"documents_count", "max_documents"},
	ResourceQuery:    {"queries_count", "max_queries_per_month"},
	ResourceDomain:   {"domains_count", "max_domains"},
}

// Ledger tracks and enforces per-user monthly resource ceilings.
//
// Reservation is a single conditional increment executed in the
// database, so concurrent reservations for the same user can never
// overshoot the ceiling, regardless of how many processes run the
// ingestion and query paths. There is no decrement: deleting documents
// does not refund quota, which closes the quota-cycling loophole.
type Ledger struct {
	db       DB
	defaults Limits
	logger   *slog.Logger
	now      func() time.Time // injectable for period-boundary tests
}

// NewLedger creates a Ledger. defaults are the ceilings snapshotted
// into a user's quota row on first use in a period; per-user plan
// overrides go through SetLimits.
func NewLedger(db DB, defaults Limits, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}

	return &Ledger{
		db:       db,
		defaults: defaults,
		logger:   logger,
		now:      time.Now,
	}
}

// Reserve atomically consumes one unit of the resource for the current
// calendar month. On success the updated record is returned. When the
// ceiling is reached it returns a *QuotaError carrying current usage
// and limit; the caller must not perform the guarded action.
func (l *Ledger) Reserve(ctx context.Context, userID string, resource Resource) (*QuotaRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidArgument)
	}
	cols, ok := counterColumns[resource]
	if !ok {
		return nil, fmt.Errorf("%w: unknown resource %q", ErrInvalidArgument, resource)
	}

	period := MonthKey(l.now())

	// Insert-or-increment in one statement. The WHERE clause on the
	// conflict update is what makes check-and-increment atomic: when
	// the counter is already at the ceiling the update matches no row
	// and nothing comes back.
	row := l.db.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO quota_usage AS q
			(user_id, month_year, %[1]s, max_documents, max_queries_per_month, max_domains)
		VALUES ($1, $2, 1, $3, $4, $5)
		ON CONFLICT (user_id, month_year) DO UPDATE
			SET %[1]s = q.%[1]s + 1
			WHERE q.%[1]s < q.%[2]s
		RETURNING user_id, month_year, documents_count, queries_count, domains_count,
			max_documents, max_queries_per_month, max_domains`,
		cols.count, cols.limit),
		userID, period,
		l.defaults.MaxDocuments, l.defaults.MaxQueriesPerMonth, l.defaults.MaxDomains)

	rec, err := scanQuotaRecord(row)
	if err == nil {
		l.logger.Debug("quota reserved",
			"user_id", userID, "resource", resource, "period", period)
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("reserving %s quota: %w", resource, err)
	}

	// Denied. Fetch the row to report usage detail to the caller.
	current, getErr := l.Get(ctx, userID)
	if getErr != nil {
		return nil, fmt.Errorf("reserving %s quota: denied, and fetching usage failed: %w", resource, getErr)
	}

	used, limit := current.usage(resource)
	l.logger.Info("quota denied",
		"user_id", userID, "resource", resource, "used", used, "limit", limit)
	return nil, &QuotaError{UserID: userID, Resource: resource, Used: used, Limit: limit}
}

// Get returns the user's quota record for the current calendar month.
// When the user has no usage yet this period, a zero-count record with
// the default ceilings is synthesized (and not persisted).
func (l *Ledger) Get(ctx context.Context, userID string) (*QuotaRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidArgument)
	}

	period := MonthKey(l.now())
	row := l.db.QueryRow(ctx, `
		SELECT user_id, month_year, documents_count, queries_count, domains_count,
			max_documents, max_queries_per_month, max_domains
		FROM quota_usage
		WHERE user_id = $1 AND month_year = $2`,
		userID, period)

	rec, err := scanQuotaRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &QuotaRecord{
				UserID:    userID,
				MonthYear: period,
				Limits:    l.defaults,
			}, nil
		}
		return nil, fmt.Errorf("getting quota for user %s: %w", userID, err)
	}
	return rec, nil
}

// SetLimits overrides the ceilings on the user's current-period row,
// creating it with zero counts if absent. This is the hook for tiered
// plans; counts are left untouched.
func (l *Ledger) SetLimits(ctx context.Context, userID string, limits Limits) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidArgument)
	}
	if limits.MaxDocuments < 1 || limits.MaxQueriesPerMonth < 1 || limits.MaxDomains < 1 {
		return fmt.Errorf("%w: ceilings must be positive", ErrInvalidArgument)
	}

	period := MonthKey(l.now())
	_, err := l.db.Exec(ctx, `
		INSERT INTO quota_usage (user_id, month_year, max_documents, max_queries_per_month, max_domains)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, month_year) DO UPDATE SET
			max_documents = EXCLUDED.max_documents,
			max_queries_per_month = EXCLUDED.max_queries_per_month,
			max_domains = EXCLUDED.max_domains`,
		userID, period, limits.MaxDocuments, limits.MaxQueriesPerMonth, limits.MaxDomains)
	if err != nil {
		return fmt.Errorf("setting limits for user %s: %w", userID, err)
	}

	l.logger.Info("quota limits updated", "user_id", userID, "period", period,
		"max_documents", limits.MaxDocuments,
		"max_queries_per_month", limits.MaxQueriesPerMonth,
		"max_domains", limits.MaxDomains)
	return nil
}

func (r *QuotaRecord) usage(resource Resource) (used, limit int) {
	switch resource {
	case ResourceDocument:
		return r.DocumentsCount, r.Limits.MaxDocuments
	case ResourceQuery:
		return r.QueriesCount, r.Limits.MaxQueriesPerMonth
	case ResourceDomain:
		return r.DomainsCount, r.Limits.MaxDomains
	default:
		return 0, 0
	}
}

func scanQuotaRecord(row scanner) (*QuotaRecord, error) {
	var rec QuotaRecord
	if err := row.Scan(&rec.UserID, &rec.MonthYear,
		&rec.DocumentsCount, &rec.QueriesCount, &rec.DomainsCount,
		&rec.Limits.MaxDocuments, &rec.Limits.MaxQueriesPerMonth, &rec.Limits.MaxDomains); err != nil {
		return nil, err
	}
	return &rec, nil
}
