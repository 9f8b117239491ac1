package badge_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenabi/tuzo/core"
	"github.com/zenabi/tuzo/core/badge"
	"github.com/zenabi/tuzo/core/catalog"
	"github.com/zenabi/tuzo/core/ledger"
	"github.com/zenabi/tuzo/core/submission"
	"github.com/zenabi/tuzo/core/user"
	inmemdb "github.com/zenabi/tuzo/storage/database/inmem"
)

type nopMail struct{}

func (nopMail) SendMessages(...*core.EmailMessage) {}

func TestService_Badges(t *testing.T) {
	ctx := context.Background()
	db := inmemdb.Open()

	usrRepo := inmemdb.NewUserRepository(db)
	catRepo := inmemdb.NewCatalogRepository(db)
	subRepo := inmemdb.NewSubmissionRepository(db)
	txnRepo := inmemdb.NewTransactionRepository(db)

	subSvc := submission.NewService(subRepo, catRepo, usrRepo, nopMail{}, &core.Config{})
	ledgerSvc := ledger.NewService(txnRepo, usrRepo, nopMail{}, &core.Config{})
	svc := badge.NewService(subRepo, txnRepo, usrRepo)
	admin := core.Actor{ID: "a1", Name: "Boss", Role: core.RoleAdmin}

	neo, err := usrRepo.CreateUser(ctx, user.User{Name: "Neo", Email: "neo@test.cd", Role: user.RoleLearner, IsActive: true})
	require.NoError(t, err)
	tri, err := usrRepo.CreateUser(ctx, user.User{Name: "Trinity", Email: "tri@test.cd", Role: user.RoleLearner, IsActive: true})
	require.NoError(t, err)

	topic, err := catRepo.CreateTopic(ctx, catalog.Topic{Title: "Maps"})
	require.NoError(t, err)
	q1, err := catRepo.CreateQuestion(ctx, catalog.Question{TopicID: topic.ID, Title: "Q1", Description: "d", Points: 10})
	require.NoError(t, err)
	q2, err := catRepo.CreateQuestion(ctx, catalog.Question{TopicID: topic.ID, Title: "Q2", Description: "d", Points: 20})
	require.NoError(t, err)

	// empty state
	adminBadges, err := svc.Admin(ctx)
	require.NoError(t, err)
	assert.Equal(t, badge.AdminBadges{}, adminBadges)

	// neo: one approved (credits 10), one pending; tri: one pending
	s1, err := subSvc.Submit(ctx, neo.Actor(), submission.NewSubmission{QuestionID: q1.ID, Code: "x"})
	require.NoError(t, err)
	_, err = subSvc.Approve(ctx, admin, s1.ID)
	require.NoError(t, err)
	_, err = subSvc.Submit(ctx, neo.Actor(), submission.NewSubmission{QuestionID: q2.ID, Code: "x"})
	require.NoError(t, err)
	_, err = subSvc.Submit(ctx, tri.Actor(), submission.NewSubmission{QuestionID: q1.ID, Code: "x"})
	require.NoError(t, err)

	// neo holds one pending claim
	_, err = ledgerSvc.RequestClaim(ctx, neo.Actor(), ledger.ClaimRequest{Amount: 5})
	require.NoError(t, err)

	adminBadges, err = svc.Admin(ctx)
	require.NoError(t, err)
	assert.Equal(t, badge.AdminBadges{PendingSubmissions: 2, PendingClaims: 1}, adminBadges)

	neoBadges, err := svc.Learner(ctx, neo.ID)
	require.NoError(t, err)
	assert.Equal(t, badge.LearnerBadges{Wallet: 10, PendingSubmissions: 1}, neoBadges)

	triBadges, err := svc.Learner(ctx, tri.ID)
	require.NoError(t, err)
	assert.Equal(t, badge.LearnerBadges{Wallet: 0, PendingSubmissions: 1}, triBadges)

	_, err = svc.Learner(ctx, "nope")
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))
}
