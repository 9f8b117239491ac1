package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/zenabi/tuzo/core"
	"github.com/zenabi/tuzo/core/ledger"
	"github.com/zenabi/tuzo/core/submission"
	"github.com/zenabi/tuzo/core/user"
)

type submissionRepository struct {
	db *DB
}

var _ submission.Repository = (*submissionRepository)(nil)

func NewSubmissionRepository(db *DB) *submissionRepository {
	return &submissionRepository{db: db}
}

func (repo *submissionRepository) CreateSubmission(ctx context.Context, sub submission.Submission) (submission.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	// one row per (user, question), ever; rejected rows are updated in place
	for _, existing := range repo.db.submissions {
		if existing.UserID == sub.UserID && existing.QuestionID == sub.QuestionID {
			return submission.Submission{}, submission.ErrExists
		}
	}

	sub.ID = uuid.New().String()
	repo.db.submissions[sub.ID] = &sub
	return sub, nil
}

func (repo *submissionRepository) GetSubmissionByID(ctx context.Context, id string) (submission.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if sub, ok := repo.db.submissions[id]; ok {
		return *sub, nil
	}
	return submission.Submission{}, submission.ErrNotFound
}

func (repo *submissionRepository) GetOwnerSubmission(ctx context.Context, userID, questionID string) (submission.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, sub := range repo.db.submissions {
		if sub.UserID == userID && sub.QuestionID == questionID {
			return *sub, nil
		}
	}
	return submission.Submission{}, submission.ErrNotFound
}

func (repo *submissionRepository) ResubmitSubmission(ctx context.Context, sub submission.Submission) (submission.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.submissions[sub.ID]
	if !ok {
		return submission.Submission{}, submission.ErrNotFound
	}
	if orig.Status != submission.StatusRejected {
		return submission.Submission{}, submission.ErrNotRejected
	}

	orig.Code = sub.Code
	orig.Status = submission.StatusPending
	orig.IsResubmission = true
	orig.EffectivePoints = sub.EffectivePoints
	orig.UpdatedAt = sub.UpdatedAt
	return *orig, nil
}

func (repo *submissionRepository) ApproveSubmission(ctx context.Context, id, ledgerDesc string, now time.Time) (submission.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	sub, ok := repo.db.submissions[id]
	if !ok {
		return submission.Submission{}, submission.ErrNotFound
	}
	if sub.Status != submission.StatusPending {
		return submission.Submission{}, submission.ErrNotPending
	}
	usr, ok := repo.db.users[sub.UserID]
	if !ok {
		return submission.Submission{}, user.ErrNotFound
	}

	sub.Status = submission.StatusApproved
	sub.UpdatedAt = now
	usr.Wallet += sub.EffectivePoints
	usr.UpdatedAt = now

	txn := &ledger.Transaction{
		ID:          uuid.New().String(),
		UserID:      sub.UserID,
		Type:        ledger.TypeEarned,
		Amount:      sub.EffectivePoints,
		Description: ledgerDesc,
		Status:      ledger.StatusCompleted,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	repo.db.transactions[txn.ID] = txn
	repo.db.txnOrder = append(repo.db.txnOrder, txn.ID)
	return *sub, nil
}

func (repo *submissionRepository) RejectSubmission(ctx context.Context, id string, now time.Time) (submission.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	sub, ok := repo.db.submissions[id]
	if !ok {
		return submission.Submission{}, submission.ErrNotFound
	}
	sub.Status = submission.StatusRejected
	sub.UpdatedAt = now
	return *sub, nil
}

func (repo *submissionRepository) QuerySubmissions(ctx context.Context, filter *submission.QueryFilter, ordering []core.DBOrdering) ([]submission.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	subs := make([]submission.Submission, 0)
	for _, sub := range repo.db.submissions {
		if filter != nil && !matchesSubmissionFilter(*sub, filter) {
			continue
		}
		subs = append(subs, *sub)
	}

	desc := descending(ordering, true)
	sort.Slice(subs, func(i, j int) bool {
		if desc {
			return subs[i].CreatedAt.After(subs[j].CreatedAt)
		}
		return subs[i].CreatedAt.Before(subs[j].CreatedAt)
	})
	return subs, nil
}

func (repo *submissionRepository) CountSubmissions(ctx context.Context, filter *submission.QueryFilter) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var count int
	for _, sub := range repo.db.submissions {
		if filter == nil || matchesSubmissionFilter(*sub, filter) {
			count++
		}
	}
	return count, nil
}

func matchesSubmissionFilter(sub submission.Submission, filter *submission.QueryFilter) bool {
	if filter.UserID != "" && sub.UserID != filter.UserID {
		return false
	}
	if filter.QuestionID != "" && sub.QuestionID != filter.QuestionID {
		return false
	}
	if filter.Status != "" && sub.Status != filter.Status {
		return false
	}
	return true
}
