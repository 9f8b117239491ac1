package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/zenabi/tuzo/core"
	"github.com/zenabi/tuzo/core/catalog"
)

type catalogRepository struct {
	db *DB
}

var _ catalog.Repository = (*catalogRepository)(nil)

func NewCatalogRepository(db *DB) *catalogRepository {
	return &catalogRepository{db: db}
}

func (repo *catalogRepository) CreateTopic(ctx context.Context, topic catalog.Topic) (catalog.Topic, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	topic.ID = uuid.New().String()
	repo.db.topics[topic.ID] = &topic
	return topic, nil
}

func (repo *catalogRepository) GetTopicByID(ctx context.Context, id string) (catalog.Topic, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if topic, ok := repo.db.topics[id]; ok {
		return *topic, nil
	}
	return catalog.Topic{}, catalog.ErrTopicNotFound
}

func (repo *catalogRepository) QueryTopics(ctx context.Context, ordering []core.DBOrdering) ([]catalog.Topic, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	topics := make([]catalog.Topic, 0, len(repo.db.topics))
	for _, topic := range repo.db.topics {
		topics = append(topics, *topic)
	}

	desc := descending(ordering, true)
	sort.Slice(topics, func(i, j int) bool {
		if desc {
			return topics[i].CreatedAt.After(topics[j].CreatedAt)
		}
		return topics[i].CreatedAt.Before(topics[j].CreatedAt)
	})
	return topics, nil
}

func (repo *catalogRepository) CountTopics(ctx context.Context) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return len(repo.db.topics), nil
}

func (repo *catalogRepository) DeleteTopic(ctx context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for qID, q := range repo.db.questions {
		if q.TopicID == id {
			repo.deleteQuestionLocked(qID)
		}
	}
	delete(repo.db.topics, id)
	return nil
}

func (repo *catalogRepository) CreateQuestion(ctx context.Context, question catalog.Question) (catalog.Question, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	question.ID = uuid.New().String()
	repo.db.questions[question.ID] = &question
	return question, nil
}

func (repo *catalogRepository) GetQuestionByID(ctx context.Context, id string) (catalog.Question, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if q, ok := repo.db.questions[id]; ok {
		return *q, nil
	}
	return catalog.Question{}, catalog.ErrQuestionNotFound
}

func (repo *catalogRepository) QueryQuestions(ctx context.Context, topicID string, ordering []core.DBOrdering) ([]catalog.Question, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	questions := make([]catalog.Question, 0)
	for _, q := range repo.db.questions {
		if topicID == "" || q.TopicID == topicID {
			questions = append(questions, *q)
		}
	}

	desc := descending(ordering, true)
	sort.Slice(questions, func(i, j int) bool {
		if desc {
			return questions[i].CreatedAt.After(questions[j].CreatedAt)
		}
		return questions[i].CreatedAt.Before(questions[j].CreatedAt)
	})
	return questions, nil
}

func (repo *catalogRepository) CountQuestions(ctx context.Context, topicID string) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var count int
	for _, q := range repo.db.questions {
		if topicID == "" || q.TopicID == topicID {
			count++
		}
	}
	return count, nil
}

func (repo *catalogRepository) DeleteQuestion(ctx context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.deleteQuestionLocked(id)
	return nil
}

// deleteQuestionLocked removes a question and cascades to its submissions.
// Callers must hold the write lock.
func (repo *catalogRepository) deleteQuestionLocked(id string) {
	for sID, sub := range repo.db.submissions {
		if sub.QuestionID == id {
			delete(repo.db.submissions, sID)
		}
	}
	delete(repo.db.questions, id)
}
