// Package badge derives the per-actor pending counters shown in the UI.
// It only reads; counts may drift between queries and that is acceptable.
package badge

import (
	"context"

	"github.com/pkg/errors"

	"github.com/zenabi/tuzo/core/ledger"
	"github.com/zenabi/tuzo/core/submission"
	"github.com/zenabi/tuzo/core/user"
)

type (
	AdminBadges struct {
		PendingSubmissions int `json:"pending_submissions"`
		PendingClaims      int `json:"pending_claims"`
	}

	LearnerBadges struct {
		Wallet             int `json:"wallet"`
		PendingSubmissions int `json:"pending_submissions"`
	}

	SubmissionCounter interface {
		CountSubmissions(ctx context.Context, filter *submission.QueryFilter) (int, error)
	}

	TransactionCounter interface {
		CountTransactions(ctx context.Context, filter *ledger.QueryFilter) (int, error)
	}

	UserGetter interface {
		GetUserByID(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		submissions  SubmissionCounter
		transactions TransactionCounter
		users        UserGetter
	}
)

func NewService(submissions SubmissionCounter, transactions TransactionCounter, users UserGetter) *Service {
	return &Service{
		submissions:  submissions,
		transactions: transactions,
		users:        users,
	}
}

func (svc *Service) Admin(ctx context.Context) (AdminBadges, error) {
	subs, err := svc.submissions.CountSubmissions(ctx, &submission.QueryFilter{Status: submission.StatusPending})
	if err != nil {
		return AdminBadges{}, errors.Wrap(err, "counting pending submissions")
	}
	claims, err := svc.transactions.CountTransactions(ctx, ledger.PendingClaimsFilter(""))
	if err != nil {
		return AdminBadges{}, errors.Wrap(err, "counting pending claims")
	}
	return AdminBadges{PendingSubmissions: subs, PendingClaims: claims}, nil
}

func (svc *Service) Learner(ctx context.Context, userID string) (LearnerBadges, error) {
	usr, err := svc.users.GetUserByID(ctx, userID)
	if err != nil {
		return LearnerBadges{}, errors.Wrap(err, "finding learner")
	}
	subs, err := svc.submissions.CountSubmissions(ctx, &submission.QueryFilter{UserID: userID, Status: submission.StatusPending})
	if err != nil {
		return LearnerBadges{}, errors.Wrap(err, "counting pending submissions")
	}
	return LearnerBadges{Wallet: usr.Wallet, PendingSubmissions: subs}, nil
}
