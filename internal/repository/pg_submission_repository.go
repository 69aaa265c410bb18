package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/termsite/backend/internal/model"
)

// SubmissionRepository defines the persistence interface for the append-only
// contact submission audit log.
type SubmissionRepository interface {
	// Log appends one attempt row and populates a.ID and a.SubmittedAt.
	Log(ctx context.Context, a *model.SubmissionAttempt) error

	// CountSince counts attempts since the given instant whose client IP
	// matches clientIP or, when email is non-empty, whose email matches
	// email. The two keys are a set union: a row matching either counts
	// once.
	CountSince(ctx context.Context, clientIP, email string, since time.Time) (int, error)

	// PurgeOlderThan deletes all attempts submitted strictly before the
	// cutoff and returns the number of rows deleted.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// PgSubmissionRepository is the PostgreSQL implementation of SubmissionRepository.
type PgSubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewPgSubmissionRepository creates a PgSubmissionRepository backed by the given pool.
func NewPgSubmissionRepository(pool *pgxpool.Pool) *PgSubmissionRepository {
	return &PgSubmissionRepository{pool: pool}
}

// Ensure PgSubmissionRepository implements SubmissionRepository at compile time.
var _ SubmissionRepository = (*PgSubmissionRepository)(nil)

// Log inserts a new submission_attempts row. The user agent is truncated to
// the bounded column length before insert.
func (r *PgSubmissionRepository) Log(ctx context.Context, a *model.SubmissionAttempt) error {
	ua := model.TruncateUserAgent(a.UserAgent)
	return r.pool.QueryRow(ctx,
		`INSERT INTO submission_attempts (client_ip, email, outcome, user_agent)
		 VALUES ($1, NULLIF($2, ''), $3, $4)
		 RETURNING id, submitted_at`,
		a.ClientIP, a.Email, a.Outcome, ua,
	).Scan(&a.ID, &a.SubmittedAt)
}

// CountSince counts attempts in the trailing window matching the client IP
// or the email (union of both keys).
func (r *PgSubmissionRepository) CountSince(ctx context.Context, clientIP, email string, since time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM submission_attempts
		 WHERE submitted_at >= $1
		   AND (client_ip = $2 OR ($3 <> '' AND email = $3))`,
		since, clientIP, email,
	).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// PurgeOlderThan deletes attempts submitted before the cutoff.
func (r *PgSubmissionRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM submission_attempts WHERE submitted_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
