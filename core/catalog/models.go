package catalog

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/zenabi/tuzo/core"
)

type Topic struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// Question is a coding exercise under a Topic. Its point value is snapshotted
// onto submissions at submit time; editing it never changes past awards.
type Question struct {
	ID          string    `json:"id"`
	TopicID     string    `json:"topic_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Points      int       `json:"points"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

type NewTopic struct {
	Title string `json:"title" validate:"required"`
}

func (nt *NewTopic) Validate(validate *validator.Validate) error {
	nt.Title = core.CleanString(nt.Title)
	return validate.Struct(nt)
}

type NewQuestion struct {
	TopicID     string `json:"topic_id" validate:"required"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
	Points      int    `json:"points" validate:"required,gt=0"`
}

func (nq *NewQuestion) Validate(validate *validator.Validate) error {
	nq.Title = core.CleanString(nq.Title)
	nq.Description = core.CleanString(nq.Description)
	return validate.Struct(nq)
}
