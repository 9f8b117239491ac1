package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/zenabi/tuzo/core"
	"github.com/zenabi/tuzo/core/ledger"
	"github.com/zenabi/tuzo/core/submission"
)

type submissionRow struct {
	ID              string            `db:"id"`
	QuestionID      string            `db:"question_id"`
	UserID          string            `db:"user_id"`
	Code            string            `db:"code"`
	Status          submission.Status `db:"status"`
	IsResubmission  bool              `db:"is_resubmission"`
	EffectivePoints int               `db:"effective_points"`
	CreatedAt       time.Time         `db:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at"`
}

func (r submissionRow) submission() submission.Submission {
	return submission.Submission{
		ID:              r.ID,
		QuestionID:      r.QuestionID,
		UserID:          r.UserID,
		Code:            r.Code,
		Status:          r.Status,
		IsResubmission:  r.IsResubmission,
		EffectivePoints: r.EffectivePoints,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

type submissionRepository struct {
	db *sqlx.DB
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(db *sqlx.DB) *submissionRepository {
	return &submissionRepository{db: db}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func (repo submissionRepository) CreateSubmission(ctx context.Context, sub submission.Submission) (submission.Submission, error) {
	sub.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO submission (id, question_id, user_id, code, status, is_resubmission, effective_points, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sub.ID, sub.QuestionID, sub.UserID, sub.Code, sub.Status, sub.IsResubmission, sub.EffectivePoints,
		sub.CreatedAt.UTC(), sub.UpdatedAt.UTC(),
	)
	if err != nil {
		// one row per (user, question), ever; rejected rows are updated in place
		if isUniqueViolation(err) {
			return submission.Submission{}, submission.ErrExists
		}
		return submission.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return sub, nil
}

func (repo submissionRepository) GetSubmissionByID(ctx context.Context, id string) (submission.Submission, error) {
	if _, err := uuid.Parse(id); err != nil {
		return submission.Submission{}, submission.ErrNotFound
	}
	var row submissionRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM submission WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return submission.Submission{}, submission.ErrNotFound
		}
		return submission.Submission{}, errors.Wrap(err, "finding submission by ID")
	}
	return row.submission(), nil
}

func (repo submissionRepository) GetOwnerSubmission(ctx context.Context, userID, questionID string) (submission.Submission, error) {
	var row submissionRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT * FROM submission WHERE user_id = $1 AND question_id = $2`, userID, questionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return submission.Submission{}, submission.ErrNotFound
		}
		return submission.Submission{}, errors.Wrap(err, "finding owner submission")
	}
	return row.submission(), nil
}

func (repo submissionRepository) ResubmitSubmission(ctx context.Context, sub submission.Submission) (submission.Submission, error) {
	var row submissionRow
	err := repo.db.GetContext(ctx, &row,
		`UPDATE submission
		 SET code = $2, status = $3, is_resubmission = TRUE, effective_points = $4, updated_at = $5
		 WHERE id = $1 AND status = $6
		 RETURNING *`,
		sub.ID, sub.Code, submission.StatusPending, sub.EffectivePoints, sub.UpdatedAt.UTC(), submission.StatusRejected,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			// row gone or not rejected; distinguish for the caller
			if _, getErr := repo.GetSubmissionByID(ctx, sub.ID); getErr != nil {
				return submission.Submission{}, getErr
			}
			return submission.Submission{}, submission.ErrNotRejected
		}
		return submission.Submission{}, errors.Wrap(err, "resubmitting submission")
	}
	return row.submission(), nil
}

// ApproveSubmission flips a pending submission to approved, credits the owner's
// wallet and records the earned ledger entry, all in one DB transaction. The
// guarded UPDATE makes concurrent approvals award at most once.
func (repo submissionRepository) ApproveSubmission(ctx context.Context, id, ledgerDesc string, now time.Time) (submission.Submission, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var row submissionRow
	err = tx.GetContext(ctx, &row,
		`UPDATE submission SET status = $2, updated_at = $3
		 WHERE id = $1 AND status = $4
		 RETURNING *`,
		id, submission.StatusApproved, now.UTC(), submission.StatusPending,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			if _, getErr := repo.GetSubmissionByID(ctx, id); getErr != nil {
				return submission.Submission{}, getErr
			}
			return submission.Submission{}, submission.ErrNotPending
		}
		return submission.Submission{}, errors.Wrap(err, "approving submission")
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE "user" SET wallet = wallet + $2, updated_at = $3 WHERE id = $1`,
		row.UserID, row.EffectivePoints, now.UTC(),
	)
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "crediting wallet")
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO "transaction" (id, user_id, type, amount, description, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.New().String(), row.UserID, ledger.TypeEarned, row.EffectivePoints, ledgerDesc,
		ledger.StatusCompleted, now.UTC(), now.UTC(),
	)
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "recording earned transaction")
	}

	if err = tx.Commit(); err != nil {
		return submission.Submission{}, errors.Wrap(err, "committing approval")
	}
	return row.submission(), nil
}

func (repo submissionRepository) RejectSubmission(ctx context.Context, id string, now time.Time) (submission.Submission, error) {
	var row submissionRow
	err := repo.db.GetContext(ctx, &row,
		`UPDATE submission SET status = $2, updated_at = $3 WHERE id = $1 RETURNING *`,
		id, submission.StatusRejected, now.UTC(),
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return submission.Submission{}, submission.ErrNotFound
		}
		return submission.Submission{}, errors.Wrap(err, "rejecting submission")
	}
	return row.submission(), nil
}

func (repo submissionRepository) QuerySubmissions(ctx context.Context, filter *submission.QueryFilter, ordering []core.DBOrdering) ([]submission.Submission, error) {
	query := `SELECT * FROM submission`
	clauses, args := submissionFilterClauses(filter)
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += orderByClause(ordering, "created_at DESC")

	var rows []submissionRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}

	subs := make([]submission.Submission, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, row.submission())
	}
	return subs, nil
}

func (repo submissionRepository) CountSubmissions(ctx context.Context, filter *submission.QueryFilter) (int, error) {
	query := `SELECT COUNT(*) FROM submission`
	clauses, args := submissionFilterClauses(filter)
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	var count int
	if err := repo.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, errors.Wrap(err, "counting submissions")
	}
	return count, nil
}

func submissionFilterClauses(filter *submission.QueryFilter) ([]string, []interface{}) {
	if filter == nil {
		return nil, nil
	}
	var clauses []string
	var args []interface{}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		clauses = append(clauses, "user_id = $"+itoa(len(args)))
	}
	if filter.QuestionID != "" {
		args = append(args, filter.QuestionID)
		clauses = append(clauses, "question_id = $"+itoa(len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		clauses = append(clauses, "status = $"+itoa(len(args)))
	}
	return clauses, args
}
