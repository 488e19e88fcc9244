package infrastructure

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/tripline/booking-system/approval-service/domain"
	"github.com/tripline/booking-system/shared/models"
)

// PostgresApprovalRepository implements ApprovalRepository using PostgreSQL
type PostgresApprovalRepository struct {
	db *sqlx.DB
}

// NewPostgresApprovalRepository creates a new PostgresApprovalRepository
func NewPostgresApprovalRepository(db *sqlx.DB) *PostgresApprovalRepository {
	return &PostgresApprovalRepository{db: db}
}

var _ domain.ApprovalRepository = (*PostgresApprovalRepository)(nil)

// postgresApproval represents an approval request in the database
type postgresApproval struct {
	ID            string     `db:"id"`
	CallbackToken string     `db:"callback_token"`
	SubjectRef    string     `db:"subject_ref"`
	RequestedBy   string     `db:"requested_by"`
	Status        string     `db:"status"`
	Decision      *string    `db:"decision"`
	Comments      *string    `db:"comments"`
	DecidedBy     *string    `db:"decided_by"`
	DecidedAt     *time.Time `db:"decided_at"`
	ExpiresAt     time.Time  `db:"expires_at"`
	TTLEpoch      int64      `db:"ttl_epoch"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

const approvalColumns = `
	id, callback_token, subject_ref, requested_by, status, decision,
	comments, decided_by, decided_at, expires_at, ttl_epoch,
	created_at, updated_at`

// Create persists a new approval request with status pending
func (r *PostgresApprovalRepository) Create(ctx context.Context, approval *domain.ApprovalRequest) error {
	query := `
		INSERT INTO approvals (
			id, callback_token, subject_ref, requested_by, status, decision,
			comments, decided_by, decided_at, expires_at, ttl_epoch,
			created_at, updated_at
		) VALUES (
			:id, :callback_token, :subject_ref, :requested_by, :status, :decision,
			:comments, :decided_by, :decided_at, :expires_at, :ttl_epoch,
			:created_at, :updated_at
		)`

	pgApproval := r.toPostgres(approval)

	return withStoreRetry(ctx, func() error {
		_, err := r.db.NamedExecContext(ctx, query, pgApproval)
		if err != nil {
			return classifyStoreError(err, "failed to insert approval")
		}
		return nil
	})
}

// FindByID finds an approval request by ID
func (r *PostgresApprovalRepository) FindByID(ctx context.Context, id models.ID) (*domain.ApprovalRequest, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals WHERE id = $1`

	var pgApproval postgresApproval
	err := withStoreRetry(ctx, func() error {
		if err := r.db.GetContext(ctx, &pgApproval, query, id.String()); err != nil {
			if err == sql.ErrNoRows {
				return domain.ErrNotFound
			}
			return classifyStoreError(err, "failed to find approval")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return r.toDomain(&pgApproval)
}

// Transition persists a terminal status. The write is conditional on the row
// still being pending, so of two concurrent decisions at most one lands; the
// loser is classified from the row it finds.
func (r *PostgresApprovalRepository) Transition(ctx context.Context, approval *domain.ApprovalRequest) error {
	query := `
		UPDATE approvals
		SET status = :status, decision = :decision, comments = :comments,
			decided_by = :decided_by, decided_at = :decided_at,
			updated_at = :updated_at
		WHERE id = :id AND status = 'pending'`

	pgApproval := r.toPostgres(approval)

	return withStoreRetry(ctx, func() error {
		res, err := r.db.NamedExecContext(ctx, query, pgApproval)
		if err != nil {
			return classifyStoreError(err, "failed to transition approval")
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "failed to read affected rows")
		}
		if affected == 1 {
			return nil
		}

		return r.classifyLostTransition(ctx, approval.ID)
	})
}

// classifyLostTransition re-reads the row a conditional update missed
func (r *PostgresApprovalRepository) classifyLostTransition(ctx context.Context, id models.ID) error {
	var status string
	err := r.db.GetContext(ctx, &status, `SELECT status FROM approvals WHERE id = $1`, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.ErrNotFound
		}
		return classifyStoreError(err, "failed to classify lost transition")
	}

	return &domain.AlreadyDecidedError{ApprovalID: id, Status: domain.ApprovalStatus(status)}
}

// FindPending lists pending approvals newest-first. Expiry is applied lazily
// at read time: rows past expires_at are filtered here, not by a sweep.
func (r *PostgresApprovalRepository) FindPending(ctx context.Context, limit int) ([]*domain.ApprovalRequest, error) {
	query := `
		SELECT ` + approvalColumns + `
		FROM approvals
		WHERE status = 'pending' AND expires_at > $1
		ORDER BY created_at DESC
		LIMIT $2`

	return r.queryApprovals(ctx, query, time.Now(), limit)
}

// FindExpiredPending lists pending approvals whose decision window passed
func (r *PostgresApprovalRepository) FindExpiredPending(ctx context.Context, limit int) ([]*domain.ApprovalRequest, error) {
	query := `
		SELECT ` + approvalColumns + `
		FROM approvals
		WHERE status = 'pending' AND expires_at <= $1
		ORDER BY created_at ASC
		LIMIT $2`

	return r.queryApprovals(ctx, query, time.Now(), limit)
}

func (r *PostgresApprovalRepository) queryApprovals(ctx context.Context, query string, args ...interface{}) ([]*domain.ApprovalRequest, error) {
	var rows []postgresApproval
	err := withStoreRetry(ctx, func() error {
		if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
			return classifyStoreError(err, "failed to query approvals")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	approvals := make([]*domain.ApprovalRequest, 0, len(rows))
	for i := range rows {
		approval, err := r.toDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		approvals = append(approvals, approval)
	}

	return approvals, nil
}

// classifyStoreError wraps a driver error, marking throttle-class failures so
// the retry helper attempts them again. Postgres signals resource pressure
// with class 53 codes and 57P03 (cannot_connect_now).
func classifyStoreError(err error, msg string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code.Class() == "53" || pqErr.Code == "57P03" {
			return &ThrottleError{Err: errors.Wrap(err, msg)}
		}
	}

	return errors.Wrap(err, msg)
}

// toPostgres converts domain approval to database representation
func (r *PostgresApprovalRepository) toPostgres(approval *domain.ApprovalRequest) *postgresApproval {
	pg := &postgresApproval{
		ID:            approval.ID.String(),
		CallbackToken: approval.CallbackToken,
		SubjectRef:    approval.SubjectRef,
		RequestedBy:   approval.RequestedBy,
		Status:        string(approval.Status),
		DecidedAt:     approval.DecidedAt,
		ExpiresAt:     approval.ExpiresAt,
		TTLEpoch:      approval.TTLEpoch,
		CreatedAt:     approval.Timestamps.CreatedAt,
		UpdatedAt:     approval.Timestamps.UpdatedAt,
	}

	if approval.Decision != "" {
		decision := string(approval.Decision)
		pg.Decision = &decision
	}
	if approval.Comments != "" {
		comments := approval.Comments
		pg.Comments = &comments
	}
	if approval.DecidedBy != "" {
		decidedBy := approval.DecidedBy
		pg.DecidedBy = &decidedBy
	}

	return pg
}

// toDomain converts database representation to domain approval
func (r *PostgresApprovalRepository) toDomain(pg *postgresApproval) (*domain.ApprovalRequest, error) {
	approval := &domain.ApprovalRequest{
		ID:            models.ID(pg.ID),
		CallbackToken: pg.CallbackToken,
		SubjectRef:    pg.SubjectRef,
		RequestedBy:   pg.RequestedBy,
		Status:        domain.ApprovalStatus(pg.Status),
		DecidedAt:     pg.DecidedAt,
		ExpiresAt:     pg.ExpiresAt,
		TTLEpoch:      pg.TTLEpoch,
	}
	approval.Timestamps.CreatedAt = pg.CreatedAt
	approval.Timestamps.UpdatedAt = pg.UpdatedAt

	if pg.Decision != nil {
		approval.Decision = domain.Decision(*pg.Decision)
	}
	if pg.Comments != nil {
		approval.Comments = *pg.Comments
	}
	if pg.DecidedBy != nil {
		approval.DecidedBy = *pg.DecidedBy
	}

	return approval, nil
}
