package submission

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/zenabi/tuzo/core"
	"github.com/zenabi/tuzo/core/catalog"
	"github.com/zenabi/tuzo/core/user"
)

var (
	ErrNotFound = errors.New("submission not found")
	// ErrExists is returned by Repository.CreateSubmission when the learner
	// already holds a submission for the question.
	ErrExists = errors.New("submission already exists")
	// ErrNotPending is returned by Repository.ApproveSubmission when the
	// pending guard fails; the engine absorbs it as a no-op.
	ErrNotPending = errors.New("submission is not pending")
	// ErrNotRejected is returned by Repository.ResubmitSubmission when the
	// rejected guard fails.
	ErrNotRejected = errors.New("submission is not rejected")
)

type (
	Repository interface {
		// CreateSubmission inserts the submission, enforcing uniqueness per
		// (user, question); ErrExists on conflict.
		CreateSubmission(ctx context.Context, sub Submission) (Submission, error)
		GetSubmissionByID(ctx context.Context, id string) (Submission, error)
		GetOwnerSubmission(ctx context.Context, userID, questionID string) (Submission, error)
		// ResubmitSubmission replaces code/points on a rejected submission and
		// re-opens it for review, guarded on status=rejected as one atomic unit.
		ResubmitSubmission(ctx context.Context, sub Submission) (Submission, error)
		// ApproveSubmission performs the approval effect as a single atomic
		// unit: flips status pending->approved, credits the owner's wallet
		// with the effective points and appends the matching `earned` ledger
		// entry. ErrNotPending when the guard fails; no partial effects.
		ApproveSubmission(ctx context.Context, id, ledgerDesc string, now time.Time) (Submission, error)
		// RejectSubmission sets status=rejected unconditionally.
		RejectSubmission(ctx context.Context, id string, now time.Time) (Submission, error)
		QuerySubmissions(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Submission, error)
		CountSubmissions(ctx context.Context, filter *QueryFilter) (int, error)
	}

	QuestionGetter interface {
		GetQuestionByID(ctx context.Context, id string) (catalog.Question, error)
	}

	UserGetter interface {
		GetUserByID(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		repo      Repository
		questions QuestionGetter
		users     UserGetter
		mailSvc   core.EmailService
		conf      *core.Config
	}
)

func NewService(repo Repository, questions QuestionGetter, users UserGetter, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		repo:      repo,
		questions: questions,
		users:     users,
		mailSvc:   mailSvc,
		conf:      conf,
	}
}

// Submit creates the actor's submission for a question, or re-opens their
// rejected one at half the question's points. Submitting while a pending or
// approved submission exists is a no-op returning the existing record.
func (svc *Service) Submit(ctx context.Context, actor core.Actor, data NewSubmission) (Submission, error) {
	q, err := svc.questions.GetQuestionByID(ctx, data.QuestionID)
	if err != nil {
		return Submission{}, err
	}

	now := time.Now().UTC()
	existing, err := svc.repo.GetOwnerSubmission(ctx, actor.ID, q.ID)
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			return Submission{}, errors.Wrap(err, "finding existing submission")
		}
		sub := Submission{
			QuestionID:      q.ID,
			UserID:          actor.ID,
			Code:            data.Code,
			Status:          StatusPending,
			EffectivePoints: q.Points,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		sub, err = svc.repo.CreateSubmission(ctx, sub)
		if errors.Cause(err) == ErrExists {
			// lost a race against a concurrent first submission
			return svc.repo.GetOwnerSubmission(ctx, actor.ID, q.ID)
		}
		return sub, err
	}

	if existing.IsRejected() {
		existing.Code = data.Code
		existing.Status = StatusPending
		existing.IsResubmission = true
		existing.EffectivePoints = q.Points / 2
		existing.UpdatedAt = now
		sub, err := svc.repo.ResubmitSubmission(ctx, existing)
		if errors.Cause(err) == ErrNotRejected {
			// a concurrent resubmission beat us; surface the current record
			return svc.repo.GetOwnerSubmission(ctx, actor.ID, q.ID)
		}
		return sub, err
	}

	// duplicate submission attempt; never a second record
	return existing, nil
}

// Approve transitions a pending submission to approved, credits the learner's
// wallet and appends the `earned` ledger entry, all as one atomic unit.
// Approving a non-pending submission is a no-op, so concurrent admin clicks
// award at most once.
func (svc *Service) Approve(ctx context.Context, actor core.Actor, id string) (Submission, error) {
	sub, err := svc.repo.GetSubmissionByID(ctx, id)
	if err != nil {
		return Submission{}, err
	}

	q, err := svc.questions.GetQuestionByID(ctx, sub.QuestionID)
	if err != nil {
		return Submission{}, errors.Wrap(err, "finding submitted question")
	}
	desc := fmt.Sprintf("Earned for: %s", q.Title)
	if sub.IsResubmission {
		desc += " (resubmission)"
	}

	sub, err = svc.repo.ApproveSubmission(ctx, id, desc, time.Now().UTC())
	if err != nil {
		if errors.Cause(err) == ErrNotPending {
			return svc.repo.GetSubmissionByID(ctx, id)
		}
		return Submission{}, err
	}

	svc.notifyReviewed(ctx, sub, fmt.Sprintf(
		"Good news! Your solution to %q was approved and %d points were credited to your wallet.",
		q.Title, sub.EffectivePoints,
	))
	return sub, nil
}

// Reject marks the submission rejected; no ledger effect. Rejecting an
// already-rejected submission is a no-op side-effect-wise, and exactly one
// resubmission at half points becomes possible.
func (svc *Service) Reject(ctx context.Context, actor core.Actor, id string) (Submission, error) {
	orig, err := svc.repo.GetSubmissionByID(ctx, id)
	if err != nil {
		return Submission{}, err
	}

	sub, err := svc.repo.RejectSubmission(ctx, id, time.Now().UTC())
	if err != nil {
		return Submission{}, err
	}

	if !orig.IsRejected() {
		q, qErr := svc.questions.GetQuestionByID(ctx, sub.QuestionID)
		if qErr == nil {
			svc.notifyReviewed(ctx, sub, fmt.Sprintf(
				"Your solution to %q was not approved. You may resubmit once, for half the points.",
				q.Title,
			))
		}
	}
	return sub, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Submission, error) {
	return svc.repo.GetSubmissionByID(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Submission, error) {
	return svc.repo.QuerySubmissions(ctx, filter, ordering)
}

func (svc *Service) Count(ctx context.Context, filter *QueryFilter) (int, error) {
	return svc.repo.CountSubmissions(ctx, filter)
}

func (svc *Service) notifyReviewed(ctx context.Context, sub Submission, body string) {
	usr, err := svc.users.GetUserByID(ctx, sub.UserID)
	if err != nil {
		return // notification only; the review already happened
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: "Your submission was reviewed",
		Body:    body,
	})
}
