package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/zenabi/tuzo/core"
	"github.com/zenabi/tuzo/core/ledger"
	"github.com/zenabi/tuzo/core/user"
)

type transactionRow struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`
	Type        string    `db:"type"`
	Amount      int       `db:"amount"`
	Description string    `db:"description"`
	Status      string    `db:"status"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r transactionRow) transaction() ledger.Transaction {
	return ledger.Transaction{
		ID:          r.ID,
		UserID:      r.UserID,
		Type:        r.Type,
		Amount:      r.Amount,
		Description: r.Description,
		Status:      r.Status,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type transactionRepository struct {
	db *sqlx.DB
}

var _ ledger.Repository = (*transactionRepository)(nil) // interface compliance check

func NewTransactionRepository(db *sqlx.DB) *transactionRepository {
	return &transactionRepository{db: db}
}

func (repo transactionRepository) GetTransactionByID(ctx context.Context, id string) (ledger.Transaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return ledger.Transaction{}, ledger.ErrNotFound
	}
	var row transactionRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM "transaction" WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return ledger.Transaction{}, ledger.ErrNotFound
		}
		return ledger.Transaction{}, errors.Wrap(err, "finding transaction by ID")
	}
	return row.transaction(), nil
}

func (repo transactionRepository) QueryTransactions(ctx context.Context, filter *ledger.QueryFilter, ordering []core.DBOrdering) ([]ledger.Transaction, error) {
	query := `SELECT * FROM "transaction"`
	clauses, args := transactionFilterClauses(filter)
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += orderByClause(ordering, "created_at DESC")

	var rows []transactionRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying transactions")
	}

	txns := make([]ledger.Transaction, 0, len(rows))
	for _, row := range rows {
		txns = append(txns, row.transaction())
	}
	return txns, nil
}

func (repo transactionRepository) CountTransactions(ctx context.Context, filter *ledger.QueryFilter) (int, error) {
	query := `SELECT COUNT(*) FROM "transaction"`
	clauses, args := transactionFilterClauses(filter)
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	var count int
	if err := repo.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, errors.Wrap(err, "counting transactions")
	}
	return count, nil
}

// CreateClaim records a pending claim after checking the owner's available
// balance. The wallet row is locked so overlapping claims cannot both pass the
// check; amounts already requested but unresolved count against the balance.
func (repo transactionRepository) CreateClaim(ctx context.Context, userID string, amount int, desc string, now time.Time) (ledger.Transaction, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return ledger.Transaction{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var wallet int
	err = tx.GetContext(ctx, &wallet, `SELECT wallet FROM "user" WHERE id = $1 FOR UPDATE`, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return ledger.Transaction{}, user.ErrNotFound
		}
		return ledger.Transaction{}, errors.Wrap(err, "locking wallet")
	}

	var reserved int
	err = tx.GetContext(ctx, &reserved,
		`SELECT COALESCE(SUM(amount), 0) FROM "transaction" WHERE user_id = $1 AND type = $2 AND status = $3`,
		userID, ledger.TypeClaimRequested, ledger.StatusPending,
	)
	if err != nil {
		return ledger.Transaction{}, errors.Wrap(err, "summing pending claims")
	}

	if amount > wallet-reserved {
		return ledger.Transaction{}, ledger.ErrInsufficientFunds
	}

	txn := ledger.Transaction{
		ID:          uuid.New().String(),
		UserID:      userID,
		Type:        ledger.TypeClaimRequested,
		Amount:      amount,
		Description: desc,
		Status:      ledger.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO "transaction" (id, user_id, type, amount, description, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		txn.ID, txn.UserID, txn.Type, txn.Amount, txn.Description, txn.Status, now.UTC(), now.UTC(),
	)
	if err != nil {
		return ledger.Transaction{}, errors.Wrap(err, "inserting claim")
	}

	if err = tx.Commit(); err != nil {
		return ledger.Transaction{}, errors.Wrap(err, "committing claim")
	}
	return txn, nil
}

// ResolveClaimApproved flips a pending claim to claim_approved and debits the
// owner's wallet in one DB transaction. The guarded UPDATE makes concurrent
// resolutions debit at most once.
func (repo transactionRepository) ResolveClaimApproved(ctx context.Context, id string, now time.Time) (ledger.Transaction, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return ledger.Transaction{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	row, err := repo.resolveClaim(ctx, tx, id, ledger.TypeClaimApproved, ledger.StatusCompleted, now)
	if err != nil {
		return ledger.Transaction{}, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE "user" SET wallet = wallet - $2, updated_at = $3 WHERE id = $1`,
		row.UserID, row.Amount, now.UTC(),
	)
	if err != nil {
		return ledger.Transaction{}, errors.Wrap(err, "debiting wallet")
	}

	if err = tx.Commit(); err != nil {
		return ledger.Transaction{}, errors.Wrap(err, "committing claim approval")
	}
	return row.transaction(), nil
}

func (repo transactionRepository) ResolveClaimRejected(ctx context.Context, id string, now time.Time) (ledger.Transaction, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return ledger.Transaction{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	row, err := repo.resolveClaim(ctx, tx, id, ledger.TypeClaimRejected, ledger.StatusRejected, now)
	if err != nil {
		return ledger.Transaction{}, err
	}

	if err = tx.Commit(); err != nil {
		return ledger.Transaction{}, errors.Wrap(err, "committing claim rejection")
	}
	return row.transaction(), nil
}

func (repo transactionRepository) resolveClaim(ctx context.Context, tx *sqlx.Tx, id, newType, newStatus string, now time.Time) (transactionRow, error) {
	var row transactionRow
	err := tx.GetContext(ctx, &row,
		`UPDATE "transaction" SET type = $2, status = $3, updated_at = $4
		 WHERE id = $1 AND type = $5 AND status = $6
		 RETURNING *`,
		id, newType, newStatus, now.UTC(), ledger.TypeClaimRequested, ledger.StatusPending,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			// row gone or already resolved; distinguish for the caller
			if _, getErr := repo.GetTransactionByID(ctx, id); getErr != nil {
				return transactionRow{}, getErr
			}
			return transactionRow{}, ledger.ErrClaimResolved
		}
		return transactionRow{}, errors.Wrap(err, "resolving claim")
	}
	return row, nil
}

func transactionFilterClauses(filter *ledger.QueryFilter) ([]string, []interface{}) {
	if filter == nil {
		return nil, nil
	}
	var clauses []string
	var args []interface{}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		clauses = append(clauses, "user_id = $"+itoa(len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		clauses = append(clauses, "type = $"+itoa(len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		clauses = append(clauses, "status = $"+itoa(len(args)))
	}
	return clauses, args
}
