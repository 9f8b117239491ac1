package catalog

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/zenabi/tuzo/core"
)

var (
	ErrTopicNotFound    = errors.New("topic not found")
	ErrQuestionNotFound = errors.New("question not found")
)

type (
	Repository interface {
		CreateTopic(ctx context.Context, topic Topic) (Topic, error)
		GetTopicByID(ctx context.Context, id string) (Topic, error)
		QueryTopics(ctx context.Context, ordering []core.DBOrdering) ([]Topic, error)
		CountTopics(ctx context.Context) (int, error)
		// DeleteTopic removes the topic, its questions and their submissions.
		DeleteTopic(ctx context.Context, id string) error

		CreateQuestion(ctx context.Context, question Question) (Question, error)
		GetQuestionByID(ctx context.Context, id string) (Question, error)
		QueryQuestions(ctx context.Context, topicID string, ordering []core.DBOrdering) ([]Question, error)
		CountQuestions(ctx context.Context, topicID string) (int, error)
		// DeleteQuestion removes the question and its submissions.
		DeleteQuestion(ctx context.Context, id string) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) CreateTopic(ctx context.Context, nt NewTopic) (Topic, error) {
	now := time.Now().UTC()
	return svc.repo.CreateTopic(ctx, Topic{Title: nt.Title, CreatedAt: now, UpdatedAt: now})
}

func (svc *Service) GetTopicByID(ctx context.Context, id string) (Topic, error) {
	return svc.repo.GetTopicByID(ctx, id)
}

func (svc *Service) QueryTopics(ctx context.Context, ordering []core.DBOrdering) ([]Topic, error) {
	return svc.repo.QueryTopics(ctx, ordering)
}

func (svc *Service) CountTopics(ctx context.Context) (int, error) {
	return svc.repo.CountTopics(ctx)
}

func (svc *Service) DeleteTopic(ctx context.Context, id string) error {
	return svc.repo.DeleteTopic(ctx, id)
}

func (svc *Service) CreateQuestion(ctx context.Context, actor core.Actor, nq NewQuestion) (Question, error) {
	if _, err := svc.repo.GetTopicByID(ctx, nq.TopicID); err != nil {
		return Question{}, err
	}
	now := time.Now().UTC()
	q := Question{
		TopicID:     nq.TopicID,
		Title:       nq.Title,
		Description: nq.Description,
		Points:      nq.Points,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateQuestion(ctx, q)
}

func (svc *Service) GetQuestionByID(ctx context.Context, id string) (Question, error) {
	return svc.repo.GetQuestionByID(ctx, id)
}

func (svc *Service) QueryQuestions(ctx context.Context, topicID string, ordering []core.DBOrdering) ([]Question, error) {
	return svc.repo.QueryQuestions(ctx, topicID, ordering)
}

func (svc *Service) CountQuestions(ctx context.Context, topicID string) (int, error) {
	return svc.repo.CountQuestions(ctx, topicID)
}

func (svc *Service) DeleteQuestion(ctx context.Context, id string) error {
	return svc.repo.DeleteQuestion(ctx, id)
}
