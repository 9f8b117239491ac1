package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/zenabi/tuzo/core/chat"
)

type chatRepository struct {
	db *DB
}

var _ chat.Repository = (*chatRepository)(nil)

func NewChatRepository(db *DB) *chatRepository {
	return &chatRepository{db: db}
}

func (repo *chatRepository) CreateMessage(ctx context.Context, msg chat.Message) (chat.Message, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	msg.ID = uuid.New().String()
	repo.db.messages = append(repo.db.messages, &msg)
	return msg, nil
}

func (repo *chatRepository) QueryMessages(ctx context.Context, submissionID string) ([]chat.Message, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	// insertion order is creation order
	msgs := make([]chat.Message, 0)
	for _, msg := range repo.db.messages {
		if msg.SubmissionID == submissionID {
			msgs = append(msgs, *msg)
		}
	}
	return msgs, nil
}
