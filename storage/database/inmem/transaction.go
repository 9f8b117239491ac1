package inmemdb

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/zenabi/tuzo/core"
	"github.com/zenabi/tuzo/core/ledger"
	"github.com/zenabi/tuzo/core/user"
)

type transactionRepository struct {
	db *DB
}

var _ ledger.Repository = (*transactionRepository)(nil)

func NewTransactionRepository(db *DB) *transactionRepository {
	return &transactionRepository{db: db}
}

func (repo *transactionRepository) GetTransactionByID(ctx context.Context, id string) (ledger.Transaction, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if txn, ok := repo.db.transactions[id]; ok {
		return *txn, nil
	}
	return ledger.Transaction{}, ledger.ErrNotFound
}

func (repo *transactionRepository) QueryTransactions(ctx context.Context, filter *ledger.QueryFilter, ordering []core.DBOrdering) ([]ledger.Transaction, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	txns := make([]ledger.Transaction, 0)
	for _, id := range repo.db.txnOrder {
		txn := repo.db.transactions[id]
		if filter != nil && !matchesTransactionFilter(*txn, filter) {
			continue
		}
		txns = append(txns, *txn)
	}

	// insertion order is creation order; only the direction matters
	if descending(ordering, true) {
		for i, j := 0, len(txns)-1; i < j; i, j = i+1, j-1 {
			txns[i], txns[j] = txns[j], txns[i]
		}
	}
	return txns, nil
}

func (repo *transactionRepository) CountTransactions(ctx context.Context, filter *ledger.QueryFilter) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var count int
	for _, txn := range repo.db.transactions {
		if filter == nil || matchesTransactionFilter(*txn, filter) {
			count++
		}
	}
	return count, nil
}

func (repo *transactionRepository) CreateClaim(ctx context.Context, userID string, amount int, desc string, now time.Time) (ledger.Transaction, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	usr, ok := repo.db.users[userID]
	if !ok {
		return ledger.Transaction{}, user.ErrNotFound
	}

	// amounts already requested but unresolved count against the balance
	var reserved int
	for _, txn := range repo.db.transactions {
		if txn.UserID == userID && txn.IsPendingClaim() {
			reserved += txn.Amount
		}
	}
	if amount > usr.Wallet-reserved {
		return ledger.Transaction{}, ledger.ErrInsufficientFunds
	}

	txn := &ledger.Transaction{
		ID:          uuid.New().String(),
		UserID:      userID,
		Type:        ledger.TypeClaimRequested,
		Amount:      amount,
		Description: desc,
		Status:      ledger.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	repo.db.transactions[txn.ID] = txn
	repo.db.txnOrder = append(repo.db.txnOrder, txn.ID)
	return *txn, nil
}

func (repo *transactionRepository) ResolveClaimApproved(ctx context.Context, id string, now time.Time) (ledger.Transaction, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	txn, ok := repo.db.transactions[id]
	if !ok {
		return ledger.Transaction{}, ledger.ErrNotFound
	}
	if !txn.IsPendingClaim() {
		return ledger.Transaction{}, ledger.ErrClaimResolved
	}
	usr, ok := repo.db.users[txn.UserID]
	if !ok {
		return ledger.Transaction{}, user.ErrNotFound
	}

	txn.Type = ledger.TypeClaimApproved
	txn.Status = ledger.StatusCompleted
	txn.UpdatedAt = now
	usr.Wallet -= txn.Amount
	usr.UpdatedAt = now
	return *txn, nil
}

func (repo *transactionRepository) ResolveClaimRejected(ctx context.Context, id string, now time.Time) (ledger.Transaction, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	txn, ok := repo.db.transactions[id]
	if !ok {
		return ledger.Transaction{}, ledger.ErrNotFound
	}
	if !txn.IsPendingClaim() {
		return ledger.Transaction{}, ledger.ErrClaimResolved
	}

	txn.Type = ledger.TypeClaimRejected
	txn.Status = ledger.StatusRejected
	txn.UpdatedAt = now
	return *txn, nil
}

func matchesTransactionFilter(txn ledger.Transaction, filter *ledger.QueryFilter) bool {
	if filter.UserID != "" && txn.UserID != filter.UserID {
		return false
	}
	if filter.Type != "" && txn.Type != filter.Type {
		return false
	}
	if filter.Status != "" && txn.Status != filter.Status {
		return false
	}
	return true
}
