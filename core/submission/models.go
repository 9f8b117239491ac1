package submission

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/zenabi/tuzo/core"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Submission is a learner's answer to a Question. A learner holds at most one
// non-rejected Submission per Question; a rejected one is superseded in place
// by a resubmission worth half the question's points.
type Submission struct {
	ID              string    `json:"id"`
	QuestionID      string    `json:"question_id"`
	UserID          string    `json:"user_id"`
	Code            string    `json:"code"`
	Status          Status    `json:"status"`
	IsResubmission  bool      `json:"is_resubmission"`
	EffectivePoints int       `json:"effective_points"` // snapshot of the award, taken at submit time
	CreatedAt       time.Time `json:"created_at"`       // UTC
	UpdatedAt       time.Time `json:"updated_at"`       // UTC
}

func (s *Submission) IsPending() bool  { return s.Status == StatusPending }
func (s *Submission) IsApproved() bool { return s.Status == StatusApproved }
func (s *Submission) IsRejected() bool { return s.Status == StatusRejected }

type NewSubmission struct {
	QuestionID string `json:"question_id" validate:"required"`
	Code       string `json:"code" validate:"required"`
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error {
	ns.Code = core.CleanString(ns.Code)
	return validate.Struct(ns)
}

type QueryFilter struct {
	UserID     string `query:"user_id"`
	QuestionID string `query:"question_id"`
	Status     Status `query:"status"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.UserID == "" && qf.QuestionID == "" && qf.Status == ""
}
