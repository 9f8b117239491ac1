package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/zenabi/tuzo/apps/api/echo"
	"github.com/zenabi/tuzo/core"
	"github.com/zenabi/tuzo/core/badge"
	"github.com/zenabi/tuzo/core/catalog"
	"github.com/zenabi/tuzo/core/chat"
	"github.com/zenabi/tuzo/core/ledger"
	"github.com/zenabi/tuzo/core/submission"
	"github.com/zenabi/tuzo/core/user"
	inmemdb "github.com/zenabi/tuzo/storage/database/inmem"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type nopMail struct{}

func (*nopMail) SendMessages(...*core.EmailMessage) {}

type testEnv struct {
	server  echoapi.Server
	conf    *core.Config
	usrRepo user.Repository
	catRepo catalog.Repository
	subSvc  *submission.Service
	admin   user.User
	learner user.User
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	conf := &core.Config{
		TestMode:  true,
		AppName:   "Tuzo",
		SecretKey: "test-secret",
		Server:    core.ServerConfig{JWTExpirationDelta: time.Hour},
	}

	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	catRepo := inmemdb.NewCatalogRepository(db)
	subRepo := inmemdb.NewSubmissionRepository(db)
	txnRepo := inmemdb.NewTransactionRepository(db)
	chatRepo := inmemdb.NewChatRepository(db)

	mail := new(nopMail)
	usrSvc := user.NewService(usrRepo)
	subSvc := submission.NewService(subRepo, catRepo, usrRepo, mail, conf)

	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator, conf)

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:          conf,
		Logger:        nopLogger{},
		UserSvc:       usrSvc,
		CatalogSvc:    catalog.NewService(catRepo),
		SubmissionSvc: subSvc,
		LedgerSvc:     ledger.NewService(txnRepo, usrRepo, mail, conf),
		BadgeSvc:      badge.NewService(subRepo, txnRepo, usrRepo),
		ChatHub:       chat.NewHub(chatRepo, nopLogger{}),
		Validate:      validate,
		Translator:    translator,
	})

	admin := createUser(t, ctx, usrRepo, "Boss", "boss@test.cd", user.RoleAdmin)
	learner := createUser(t, ctx, usrRepo, "Neo", "neo@test.cd", user.RoleLearner)

	return &testEnv{
		server:  server,
		conf:    conf,
		usrRepo: usrRepo,
		catRepo: catRepo,
		subSvc:  subSvc,
		admin:   admin,
		learner: learner,
	}
}

func createUser(t *testing.T, ctx context.Context, repo user.Repository, name, email, role string) user.User {
	t.Helper()
	usr := user.User{Name: name, Email: email, Role: role, IsActive: true}
	require.NoError(t, usr.SetPassword("s3cr3t-w0rd"))
	usr, err := repo.CreateUser(ctx, usr)
	require.NoError(t, err)
	return usr
}

func (env *testEnv) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := echoapi.GenerateToken(echoapi.GetUserClaims(usr, env.conf), env.conf)
	require.NoError(t, err)
	return token
}

func (env *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func (env *testEnv) seedQuestion(t *testing.T, points int) catalog.Question {
	t.Helper()
	ctx := context.Background()
	topic, err := env.catRepo.CreateTopic(ctx, catalog.Topic{Title: "Slices"})
	require.NoError(t, err)
	q, err := env.catRepo.CreateQuestion(ctx, catalog.Question{
		TopicID: topic.ID, Title: "Reverse a slice", Description: "in place", Points: points,
	})
	require.NoError(t, err)
	return q
}

func TestAPI_Auth(t *testing.T) {
	env := setup(t)

	t.Run("anonymous requests are rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/badges", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("login returns a usable token", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/users/login", "", map[string]string{
			"email": "neo@test.cd", "password": "s3cr3t-w0rd",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			Token string `json:"token"`
		}
		decodeInto(t, rec, &resp)
		require.NotEmpty(t, resp.Token)

		rec = env.do(t, http.MethodGet, "/v1/badges", resp.Token, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/users/login", "", map[string]string{
			"email": "neo@test.cd", "password": "nope-nope",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAPI_ReviewFlow(t *testing.T) {
	env := setup(t)
	q := env.seedQuestion(t, 10)
	adminToken := env.token(t, env.admin)
	learnerToken := env.token(t, env.learner)

	// learner submits
	rec := env.do(t, http.MethodPost, "/v1/submissions", learnerToken, map[string]string{
		"question_id": q.ID, "code": "func Reverse() {}",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sub submission.Submission
	decodeInto(t, rec, &sub)
	assert.Equal(t, submission.StatusPending, sub.Status)

	// learners cannot review
	rec = env.do(t, http.MethodPost, "/v1/submissions/"+sub.ID+"/approve", learnerToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// admin sees it pending
	rec = env.do(t, http.MethodGet, "/v1/submissions?status=pending", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var subs []submission.Submission
	decodeInto(t, rec, &subs)
	require.Len(t, subs, 1)

	// admin approves; learner wallet is credited
	rec = env.do(t, http.MethodPost, "/v1/submissions/"+sub.ID+"/approve", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeInto(t, rec, &sub)
	assert.Equal(t, submission.StatusApproved, sub.Status)

	var badges badge.LearnerBadges
	rec = env.do(t, http.MethodGet, "/v1/badges", learnerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeInto(t, rec, &badges)
	assert.Equal(t, badge.LearnerBadges{Wallet: 10, PendingSubmissions: 0}, badges)

	// the earned entry shows in the learner's ledger
	rec = env.do(t, http.MethodGet, "/v1/transactions", learnerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var txns []ledger.Transaction
	decodeInto(t, rec, &txns)
	require.Len(t, txns, 1)
	assert.Equal(t, ledger.TypeEarned, txns[0].Type)
}

func TestAPI_SubmissionVisibility(t *testing.T) {
	env := setup(t)
	q := env.seedQuestion(t, 10)
	ctx := context.Background()

	other := createUser(t, ctx, env.usrRepo, "Trinity", "tri@test.cd", user.RoleLearner)
	sub, err := env.subSvc.Submit(ctx, other.Actor(), submission.NewSubmission{QuestionID: q.ID, Code: "x"})
	require.NoError(t, err)

	// a learner cannot see someone else's submission...
	rec := env.do(t, http.MethodGet, "/v1/submissions/"+sub.ID, env.token(t, env.learner), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// ...nor its chat
	rec = env.do(t, http.MethodGet, "/v1/submissions/"+sub.ID+"/chat", env.token(t, env.learner), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// admins and the owner can
	rec = env.do(t, http.MethodGet, "/v1/submissions/"+sub.ID, env.token(t, env.admin), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, "/v1/submissions/"+sub.ID, env.token(t, other), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// learner queries only ever return their own records
	rec = env.do(t, http.MethodGet, "/v1/submissions?user_id="+other.ID, env.token(t, env.learner), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var subs []submission.Submission
	decodeInto(t, rec, &subs)
	assert.Empty(t, subs)
}

func TestAPI_ClaimFlow(t *testing.T) {
	env := setup(t)
	q := env.seedQuestion(t, 50)
	ctx := context.Background()
	adminToken := env.token(t, env.admin)
	learnerToken := env.token(t, env.learner)

	sub, err := env.subSvc.Submit(ctx, env.learner.Actor(), submission.NewSubmission{QuestionID: q.ID, Code: "x"})
	require.NoError(t, err)
	_, err = env.subSvc.Approve(ctx, env.admin.Actor(), sub.ID)
	require.NoError(t, err)

	// over-claim is refused with a field error
	rec := env.do(t, http.MethodPost, "/v1/claims", learnerToken, map[string]int{"amount": 60})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var fldErrs map[string]string
	decodeInto(t, rec, &fldErrs)
	assert.Contains(t, fldErrs, "amount")

	rec = env.do(t, http.MethodPost, "/v1/claims", learnerToken, map[string]int{"amount": 30})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var claim ledger.Transaction
	decodeInto(t, rec, &claim)
	assert.Equal(t, ledger.StatusPending, claim.Status)

	// learners cannot resolve claims
	rec = env.do(t, http.MethodPost, "/v1/claims/"+claim.ID+"/approve", learnerToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/claims/"+claim.ID+"/approve", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeInto(t, rec, &claim)
	assert.Equal(t, ledger.TypeClaimApproved, claim.Type)

	var badges badge.LearnerBadges
	rec = env.do(t, http.MethodGet, "/v1/badges", learnerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeInto(t, rec, &badges)
	assert.Equal(t, 20, badges.Wallet)
}

func TestAPI_Chat(t *testing.T) {
	env := setup(t)
	q := env.seedQuestion(t, 10)
	ctx := context.Background()
	learnerToken := env.token(t, env.learner)

	sub, err := env.subSvc.Submit(ctx, env.learner.Actor(), submission.NewSubmission{QuestionID: q.ID, Code: "x"})
	require.NoError(t, err)

	// REST send + history
	rec := env.do(t, http.MethodPost, "/v1/submissions/"+sub.ID+"/chat", learnerToken, map[string]string{
		"message": "is a hint available?",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/v1/submissions/"+sub.ID+"/chat", learnerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var msgs []chat.Message
	decodeInto(t, rec, &msgs)
	require.Len(t, msgs, 1)
	assert.Equal(t, "is a hint available?", msgs[0].Body)
	assert.Equal(t, "Neo", msgs[0].Sender)

	// empty messages are refused
	rec = env.do(t, http.MethodPost, "/v1/submissions/"+sub.ID+"/chat", learnerToken, map[string]string{
		"message": "   ",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_ChatWebsocket(t *testing.T) {
	env := setup(t)
	q := env.seedQuestion(t, 10)
	ctx := context.Background()

	sub, err := env.subSvc.Submit(ctx, env.learner.Actor(), submission.NewSubmission{QuestionID: q.ID, Code: "x"})
	require.NoError(t, err)

	srv := httptest.NewServer(env.server)
	defer srv.Close()

	wsURL := fmt.Sprintf("%s/v1/submissions/%s/chat/ws?token=%s",
		strings.Replace(srv.URL, "http", "ws", 1), sub.ID, env.token(t, env.learner))

	learnerConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer func() { _ = learnerConn.Close() }()

	adminURL := fmt.Sprintf("%s/v1/submissions/%s/chat/ws?token=%s",
		strings.Replace(srv.URL, "http", "ws", 1), sub.ID, env.token(t, env.admin))
	adminConn, _, err := websocket.DefaultDialer.Dial(adminURL, nil)
	require.NoError(t, err)
	defer func() { _ = adminConn.Close() }()

	// the dial returns before the server side joins the channel
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, learnerConn.WriteJSON(map[string]string{"message": "any hints?"}))

	deadline := time.Now().Add(2 * time.Second)
	for _, conn := range []*websocket.Conn{learnerConn, adminConn} {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var msg chat.Message
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, "any hints?", msg.Body)
		assert.Equal(t, "Neo", msg.Sender)
		assert.Equal(t, core.RoleLearner, msg.SenderRole)
	}
}

func TestAPI_CatalogAdminOnly(t *testing.T) {
	env := setup(t)
	learnerToken := env.token(t, env.learner)
	adminToken := env.token(t, env.admin)

	rec := env.do(t, http.MethodPost, "/v1/topics", learnerToken, map[string]string{"title": "Maps"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/topics", adminToken, map[string]string{"title": "Maps"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var topic catalog.Topic
	decodeInto(t, rec, &topic)

	rec = env.do(t, http.MethodPost, "/v1/questions", adminToken, map[string]interface{}{
		"topic_id": topic.ID, "title": "Q1", "description": "d", "points": 0,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "points must be positive")

	rec = env.do(t, http.MethodPost, "/v1/questions", adminToken, map[string]interface{}{
		"topic_id": topic.ID, "title": "Q1", "description": "d", "points": 10,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// learners can browse
	rec = env.do(t, http.MethodGet, "/v1/topics/"+topic.ID+"/questions", learnerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var questions []catalog.Question
	decodeInto(t, rec, &questions)
	assert.Len(t, questions, 1)
}
