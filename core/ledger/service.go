package ledger

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/zenabi/tuzo/core"
	"github.com/zenabi/tuzo/core/user"
)

var (
	ErrNotFound = errors.New("transaction not found")
	// ErrClaimResolved is returned by the claim resolution repository calls
	// when the pending guard fails; the engine absorbs it as a no-op.
	ErrClaimResolved = errors.New("claim is already resolved")
	// ErrInsufficientFunds is returned when a claim exceeds the spendable
	// balance (wallet minus already-pending claims).
	ErrInsufficientFunds = errors.New("claim amount exceeds available balance")
)

type (
	Repository interface {
		GetTransactionByID(ctx context.Context, id string) (Transaction, error)
		QueryTransactions(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Transaction, error)
		CountTransactions(ctx context.Context, filter *QueryFilter) (int, error)
		// CreateClaim appends a pending claim_requested entry after checking,
		// atomically, that amount fits the owner's available balance: wallet
		// minus the sum of already-pending claims. The wallet itself is not
		// debited. ErrInsufficientFunds when the check fails.
		CreateClaim(ctx context.Context, userID string, amount int, desc string, now time.Time) (Transaction, error)
		// ResolveClaimApproved resolves a pending claim to
		// claim_approved/completed and debits the owner's wallet, as one
		// atomic unit. ErrClaimResolved when the pending guard fails.
		ResolveClaimApproved(ctx context.Context, id string, now time.Time) (Transaction, error)
		// ResolveClaimRejected resolves a pending claim to
		// claim_rejected/rejected; no wallet effect.
		ResolveClaimRejected(ctx context.Context, id string, now time.Time) (Transaction, error)
	}

	UserGetter interface {
		GetUserByID(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		repo    Repository
		users   UserGetter
		mailSvc core.EmailService
		conf    *core.Config
	}
)

func NewService(repo Repository, users UserGetter, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		repo:    repo,
		users:   users,
		mailSvc: mailSvc,
		conf:    conf,
	}
}

// RequestClaim appends a pending cash-out request for the actor. The wallet
// stays untouched until an admin resolves the claim, but the amount is held
// against the available balance so overlapping requests cannot jointly
// exceed it.
func (svc *Service) RequestClaim(ctx context.Context, actor core.Actor, cr ClaimRequest) (Transaction, error) {
	if cr.Amount <= 0 {
		return Transaction{}, core.NewValidationError(
			errors.New("claim amount must be positive"),
			core.FieldError{Field: "amount", Error: "claim amount must be positive"},
		)
	}

	desc := fmt.Sprintf("Claim request for %d points", cr.Amount)
	txn, err := svc.repo.CreateClaim(ctx, actor.ID, cr.Amount, desc, time.Now().UTC())
	if err != nil {
		if errors.Cause(err) == ErrInsufficientFunds {
			return Transaction{}, core.NewValidationError(
				ErrInsufficientFunds,
				core.FieldError{Field: "amount", Error: ErrInsufficientFunds.Error()},
			)
		}
		return Transaction{}, err
	}
	return txn, nil
}

// ApproveClaim resolves a pending claim and debits the owner's wallet, as one
// atomic unit. Resolving an already-resolved claim is a no-op, so the wallet
// is debited exactly once no matter how many admins click.
func (svc *Service) ApproveClaim(ctx context.Context, actor core.Actor, id string) (Transaction, error) {
	txn, err := svc.repo.ResolveClaimApproved(ctx, id, time.Now().UTC())
	if err != nil {
		if errors.Cause(err) == ErrClaimResolved {
			return svc.repo.GetTransactionByID(ctx, id)
		}
		return Transaction{}, err
	}

	svc.notifyResolved(ctx, txn, fmt.Sprintf(
		"Your claim for %d points was approved and deducted from your wallet.", txn.Amount,
	))
	return txn, nil
}

// RejectClaim resolves a pending claim as rejected; no wallet effect.
func (svc *Service) RejectClaim(ctx context.Context, actor core.Actor, id string) (Transaction, error) {
	txn, err := svc.repo.ResolveClaimRejected(ctx, id, time.Now().UTC())
	if err != nil {
		if errors.Cause(err) == ErrClaimResolved {
			return svc.repo.GetTransactionByID(ctx, id)
		}
		return Transaction{}, err
	}

	svc.notifyResolved(ctx, txn, fmt.Sprintf(
		"Your claim for %d points was rejected. The points remain in your wallet.", txn.Amount,
	))
	return txn, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Transaction, error) {
	return svc.repo.GetTransactionByID(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Transaction, error) {
	return svc.repo.QueryTransactions(ctx, filter, ordering)
}

func (svc *Service) Count(ctx context.Context, filter *QueryFilter) (int, error) {
	return svc.repo.CountTransactions(ctx, filter)
}

func (svc *Service) notifyResolved(ctx context.Context, txn Transaction, body string) {
	usr, err := svc.users.GetUserByID(ctx, txn.UserID)
	if err != nil {
		return // notification only; the claim is already resolved
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: "Your claim was reviewed",
		Body:    body,
	})
}
