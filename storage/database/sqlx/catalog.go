package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/zenabi/tuzo/core"
	"github.com/zenabi/tuzo/core/catalog"
)

type topicRow struct {
	ID        string    `db:"id"`
	Title     string    `db:"title"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r topicRow) topic() catalog.Topic {
	return catalog.Topic{ID: r.ID, Title: r.Title, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
}

type questionRow struct {
	ID          string      `db:"id"`
	TopicID     string      `db:"topic_id"`
	Title       string      `db:"title"`
	Description string      `db:"description"`
	Points      int         `db:"points"`
	CreatedBy   null.String `db:"created_by"` // kept NULL when the author account is gone
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func (r questionRow) question() catalog.Question {
	return catalog.Question{
		ID:          r.ID,
		TopicID:     r.TopicID,
		Title:       r.Title,
		Description: r.Description,
		Points:      r.Points,
		CreatedBy:   r.CreatedBy.String,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type catalogRepository struct {
	db *sqlx.DB
}

var _ catalog.Repository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(db *sqlx.DB) *catalogRepository {
	return &catalogRepository{db: db}
}

func (repo catalogRepository) CreateTopic(ctx context.Context, topic catalog.Topic) (catalog.Topic, error) {
	topic.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO topic (id, title, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		topic.ID, topic.Title, topic.CreatedAt.UTC(), topic.UpdatedAt.UTC(),
	)
	if err != nil {
		return catalog.Topic{}, errors.Wrap(err, "inserting topic")
	}
	return topic, nil
}

func (repo catalogRepository) GetTopicByID(ctx context.Context, id string) (catalog.Topic, error) {
	if _, err := uuid.Parse(id); err != nil {
		return catalog.Topic{}, catalog.ErrTopicNotFound
	}
	var row topicRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM topic WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return catalog.Topic{}, catalog.ErrTopicNotFound
		}
		return catalog.Topic{}, errors.Wrap(err, "finding topic by ID")
	}
	return row.topic(), nil
}

func (repo catalogRepository) QueryTopics(ctx context.Context, ordering []core.DBOrdering) ([]catalog.Topic, error) {
	var rows []topicRow
	query := `SELECT * FROM topic` + orderByClause(ordering, "created_at DESC")
	if err := repo.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying topics")
	}

	topics := make([]catalog.Topic, 0, len(rows))
	for _, row := range rows {
		topics = append(topics, row.topic())
	}
	return topics, nil
}

func (repo catalogRepository) CountTopics(ctx context.Context) (int, error) {
	var count int
	if err := repo.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM topic`); err != nil {
		return 0, errors.Wrap(err, "counting topics")
	}
	return count, nil
}

func (repo catalogRepository) DeleteTopic(ctx context.Context, id string) error {
	// questions and their submissions go with it (ON DELETE CASCADE)
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM topic WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting topic")
	}
	return nil
}

func (repo catalogRepository) CreateQuestion(ctx context.Context, question catalog.Question) (catalog.Question, error) {
	question.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO question (id, topic_id, title, description, points, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		question.ID, question.TopicID, question.Title, question.Description, question.Points,
		null.NewString(question.CreatedBy, question.CreatedBy != ""),
		question.CreatedAt.UTC(), question.UpdatedAt.UTC(),
	)
	if err != nil {
		return catalog.Question{}, errors.Wrap(err, "inserting question")
	}
	return question, nil
}

func (repo catalogRepository) GetQuestionByID(ctx context.Context, id string) (catalog.Question, error) {
	if _, err := uuid.Parse(id); err != nil {
		return catalog.Question{}, catalog.ErrQuestionNotFound
	}
	var row questionRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM question WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return catalog.Question{}, catalog.ErrQuestionNotFound
		}
		return catalog.Question{}, errors.Wrap(err, "finding question by ID")
	}
	return row.question(), nil
}

func (repo catalogRepository) QueryQuestions(ctx context.Context, topicID string, ordering []core.DBOrdering) ([]catalog.Question, error) {
	query := `SELECT * FROM question`
	var args []interface{}
	if topicID != "" {
		query += " WHERE topic_id = $1"
		args = append(args, topicID)
	}
	query += orderByClause(ordering, "created_at DESC")

	var rows []questionRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}

	questions := make([]catalog.Question, 0, len(rows))
	for _, row := range rows {
		questions = append(questions, row.question())
	}
	return questions, nil
}

func (repo catalogRepository) CountQuestions(ctx context.Context, topicID string) (int, error) {
	query := `SELECT COUNT(*) FROM question`
	var args []interface{}
	if topicID != "" {
		query += " WHERE topic_id = $1"
		args = append(args, topicID)
	}

	var count int
	if err := repo.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, errors.Wrap(err, "counting questions")
	}
	return count, nil
}

func (repo catalogRepository) DeleteQuestion(ctx context.Context, id string) error {
	// submissions go with it (ON DELETE CASCADE)
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM question WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting question")
	}
	return nil
}
