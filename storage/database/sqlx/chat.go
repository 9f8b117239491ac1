package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/zenabi/tuzo/core/chat"
)

type chatMessageRow struct {
	ID           string    `db:"id"`
	SubmissionID string    `db:"submission_id"`
	Sender       string    `db:"sender"`
	SenderRole   string    `db:"sender_role"`
	Body         string    `db:"body"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r chatMessageRow) message() chat.Message {
	return chat.Message{
		ID:           r.ID,
		SubmissionID: r.SubmissionID,
		Sender:       r.Sender,
		SenderRole:   r.SenderRole,
		Body:         r.Body,
		CreatedAt:    r.CreatedAt,
	}
}

type chatRepository struct {
	db *sqlx.DB
}

var _ chat.Repository = (*chatRepository)(nil) // interface compliance check

func NewChatRepository(db *sqlx.DB) *chatRepository {
	return &chatRepository{db: db}
}

func (repo chatRepository) CreateMessage(ctx context.Context, msg chat.Message) (chat.Message, error) {
	msg.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO chat_message (id, submission_id, sender, sender_role, body, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.SubmissionID, msg.Sender, msg.SenderRole, msg.Body, msg.CreatedAt.UTC(),
	)
	if err != nil {
		return chat.Message{}, errors.Wrap(err, "inserting chat message")
	}
	return msg, nil
}

func (repo chatRepository) QueryMessages(ctx context.Context, submissionID string) ([]chat.Message, error) {
	var rows []chatMessageRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM chat_message WHERE submission_id = $1 ORDER BY created_at, id`, submissionID)
	if err != nil {
		return nil, errors.Wrap(err, "querying chat messages")
	}

	msgs := make([]chat.Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, row.message())
	}
	return msgs, nil
}
