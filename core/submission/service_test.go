package submission_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenabi/tuzo/core"
	"github.com/zenabi/tuzo/core/catalog"
	"github.com/zenabi/tuzo/core/ledger"
	"github.com/zenabi/tuzo/core/submission"
	"github.com/zenabi/tuzo/core/user"
	inmemdb "github.com/zenabi/tuzo/storage/database/inmem"
)

type mailRecorder struct {
	mu   sync.Mutex
	sent []core.EmailMessage
}

func (m *mailRecorder) SendMessages(messages ...*core.EmailMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range messages {
		m.sent = append(m.sent, *msg)
	}
}

func (m *mailRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type testEnv struct {
	svc      *submission.Service
	usrRepo  user.Repository
	txnRepo  ledger.Repository
	mail     *mailRecorder
	learner  user.User
	question catalog.Question
}

func newTestEnv(t *testing.T, points int) *testEnv {
	t.Helper()
	ctx := context.Background()
	db := inmemdb.Open()

	usrRepo := inmemdb.NewUserRepository(db)
	catRepo := inmemdb.NewCatalogRepository(db)
	subRepo := inmemdb.NewSubmissionRepository(db)
	txnRepo := inmemdb.NewTransactionRepository(db)

	learner, err := usrRepo.CreateUser(ctx, user.User{
		Name: "Neo", Email: "neo@test.cd", Role: user.RoleLearner, IsActive: true,
	})
	require.NoError(t, err)

	topic, err := catRepo.CreateTopic(ctx, catalog.Topic{Title: "Slices"})
	require.NoError(t, err)
	q, err := catRepo.CreateQuestion(ctx, catalog.Question{
		TopicID: topic.ID, Title: "Reverse a slice", Description: "in place", Points: points,
	})
	require.NoError(t, err)

	mail := new(mailRecorder)
	return &testEnv{
		svc:      submission.NewService(subRepo, catRepo, usrRepo, mail, &core.Config{AppName: "Tuzo"}),
		usrRepo:  usrRepo,
		txnRepo:  txnRepo,
		mail:     mail,
		learner:  learner,
		question: q,
	}
}

func (env *testEnv) wallet(t *testing.T) int {
	t.Helper()
	usr, err := env.usrRepo.GetUserByID(context.Background(), env.learner.ID)
	require.NoError(t, err)
	return usr.Wallet
}

func (env *testEnv) earnedTxns(t *testing.T) []ledger.Transaction {
	t.Helper()
	txns, err := env.txnRepo.QueryTransactions(context.Background(), &ledger.QueryFilter{
		UserID: env.learner.ID, Type: ledger.TypeEarned,
	}, nil)
	require.NoError(t, err)
	return txns
}

func TestService_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("first submission is pending at full points", func(t *testing.T) {
		env := newTestEnv(t, 10)

		sub, err := env.svc.Submit(ctx, env.learner.Actor(), submission.NewSubmission{
			QuestionID: env.question.ID, Code: "func Reverse() {}",
		})
		require.NoError(t, err)
		assert.Equal(t, submission.StatusPending, sub.Status)
		assert.Equal(t, 10, sub.EffectivePoints)
		assert.False(t, sub.IsResubmission)
	})

	t.Run("unknown question", func(t *testing.T) {
		env := newTestEnv(t, 10)

		_, err := env.svc.Submit(ctx, env.learner.Actor(), submission.NewSubmission{
			QuestionID: "nope", Code: "x",
		})
		assert.Equal(t, catalog.ErrQuestionNotFound, err)
	})

	t.Run("duplicate submission is a no-op returning the existing record", func(t *testing.T) {
		env := newTestEnv(t, 10)

		first, err := env.svc.Submit(ctx, env.learner.Actor(), submission.NewSubmission{
			QuestionID: env.question.ID, Code: "v1",
		})
		require.NoError(t, err)

		second, err := env.svc.Submit(ctx, env.learner.Actor(), submission.NewSubmission{
			QuestionID: env.question.ID, Code: "v2",
		})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "v1", second.Code, "pending submission must not be overwritten")

		count, err := env.svc.Count(ctx, &submission.QueryFilter{UserID: env.learner.ID})
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("resubmission after rejection is worth half the points", func(t *testing.T) {
		env := newTestEnv(t, 9)
		admin := core.Actor{ID: "a1", Name: "Boss", Role: core.RoleAdmin}

		first, err := env.svc.Submit(ctx, env.learner.Actor(), submission.NewSubmission{
			QuestionID: env.question.ID, Code: "v1",
		})
		require.NoError(t, err)
		_, err = env.svc.Reject(ctx, admin, first.ID)
		require.NoError(t, err)

		resub, err := env.svc.Submit(ctx, env.learner.Actor(), submission.NewSubmission{
			QuestionID: env.question.ID, Code: "v2",
		})
		require.NoError(t, err)
		assert.Equal(t, first.ID, resub.ID, "resubmission reuses the record")
		assert.Equal(t, submission.StatusPending, resub.Status)
		assert.True(t, resub.IsResubmission)
		assert.Equal(t, 4, resub.EffectivePoints, "floor of 9/2")
		assert.Equal(t, "v2", resub.Code)
	})
}

func TestService_Approve(t *testing.T) {
	ctx := context.Background()
	admin := core.Actor{ID: "a1", Name: "Boss", Role: core.RoleAdmin}

	t.Run("credits wallet and appends one earned entry", func(t *testing.T) {
		env := newTestEnv(t, 10)

		sub, err := env.svc.Submit(ctx, env.learner.Actor(), submission.NewSubmission{
			QuestionID: env.question.ID, Code: "v1",
		})
		require.NoError(t, err)

		approved, err := env.svc.Approve(ctx, admin, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, submission.StatusApproved, approved.Status)

		assert.Equal(t, 10, env.wallet(t))
		txns := env.earnedTxns(t)
		require.Len(t, txns, 1)
		assert.Equal(t, 10, txns[0].Amount)
		assert.Equal(t, ledger.StatusCompleted, txns[0].Status)
		assert.Equal(t, "Earned for: Reverse a slice", txns[0].Description)
		assert.Equal(t, 1, env.mail.count())
	})

	t.Run("second approval is a no-op", func(t *testing.T) {
		env := newTestEnv(t, 10)

		sub, err := env.svc.Submit(ctx, env.learner.Actor(), submission.NewSubmission{
			QuestionID: env.question.ID, Code: "v1",
		})
		require.NoError(t, err)

		_, err = env.svc.Approve(ctx, admin, sub.ID)
		require.NoError(t, err)
		again, err := env.svc.Approve(ctx, admin, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, submission.StatusApproved, again.Status)

		assert.Equal(t, 10, env.wallet(t))
		assert.Len(t, env.earnedTxns(t), 1)
		assert.Equal(t, 1, env.mail.count(), "no duplicate notification")
	})

	t.Run("concurrent approvals award at most once", func(t *testing.T) {
		env := newTestEnv(t, 10)

		sub, err := env.svc.Submit(ctx, env.learner.Actor(), submission.NewSubmission{
			QuestionID: env.question.ID, Code: "v1",
		})
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := env.svc.Approve(ctx, admin, sub.ID)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		assert.Equal(t, 10, env.wallet(t))
		assert.Len(t, env.earnedTxns(t), 1)
	})

	t.Run("unknown submission", func(t *testing.T) {
		env := newTestEnv(t, 10)
		_, err := env.svc.Approve(ctx, admin, "nope")
		assert.Equal(t, submission.ErrNotFound, err)
	})
}

func TestService_Reject(t *testing.T) {
	ctx := context.Background()
	admin := core.Actor{ID: "a1", Name: "Boss", Role: core.RoleAdmin}

	t.Run("marks rejected without ledger effect", func(t *testing.T) {
		env := newTestEnv(t, 10)

		sub, err := env.svc.Submit(ctx, env.learner.Actor(), submission.NewSubmission{
			QuestionID: env.question.ID, Code: "v1",
		})
		require.NoError(t, err)

		rejected, err := env.svc.Reject(ctx, admin, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, submission.StatusRejected, rejected.Status)
		assert.Equal(t, 0, env.wallet(t))
		assert.Empty(t, env.earnedTxns(t))
		assert.Equal(t, 1, env.mail.count())
	})

	t.Run("repeat rejection sends no second notification", func(t *testing.T) {
		env := newTestEnv(t, 10)

		sub, err := env.svc.Submit(ctx, env.learner.Actor(), submission.NewSubmission{
			QuestionID: env.question.ID, Code: "v1",
		})
		require.NoError(t, err)

		_, err = env.svc.Reject(ctx, admin, sub.ID)
		require.NoError(t, err)
		_, err = env.svc.Reject(ctx, admin, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, env.mail.count())
	})
}

func TestService_ReviewLifecycle(t *testing.T) {
	ctx := context.Background()
	admin := core.Actor{ID: "a1", Name: "Boss", Role: core.RoleAdmin}
	env := newTestEnv(t, 10)

	sub, err := env.svc.Submit(ctx, env.learner.Actor(), submission.NewSubmission{
		QuestionID: env.question.ID, Code: "v1",
	})
	require.NoError(t, err)

	_, err = env.svc.Reject(ctx, admin, sub.ID)
	require.NoError(t, err)

	resub, err := env.svc.Submit(ctx, env.learner.Actor(), submission.NewSubmission{
		QuestionID: env.question.ID, Code: "v2",
	})
	require.NoError(t, err)

	approved, err := env.svc.Approve(ctx, admin, resub.ID)
	require.NoError(t, err)
	assert.Equal(t, submission.StatusApproved, approved.Status)

	assert.Equal(t, 5, env.wallet(t), "resubmission awards half the points")
	txns := env.earnedTxns(t)
	require.Len(t, txns, 1)
	assert.Equal(t, "Earned for: Reverse a slice (resubmission)", txns[0].Description)
}
