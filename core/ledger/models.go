package ledger

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Transaction types
const (
	TypeEarned         = "earned"
	TypeClaimRequested = "claim_requested"
	TypeClaimApproved  = "claim_approved"
	TypeClaimRejected  = "claim_rejected"
)

// Transaction statuses
const (
	StatusCompleted = "completed"
	StatusPending   = "pending"
	StatusRejected  = "rejected"
)

// Transaction is an append-only ledger entry. The single exception to
// immutability is a claim_requested entry, which resolves in place to
// claim_approved/claim_rejected exactly once.
type Transaction struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Type        string    `json:"type"`
	Amount      int       `json:"amount"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

func (t *Transaction) IsPendingClaim() bool {
	return t.Type == TypeClaimRequested && t.Status == StatusPending
}

type ClaimRequest struct {
	Amount int `json:"amount" validate:"required,gt=0"`
}

func (cr ClaimRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(cr)
}

type QueryFilter struct {
	UserID string `query:"user_id"`
	Type   string `query:"type"`
	Status string `query:"status"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.UserID == "" && qf.Type == "" && qf.Status == ""
}

// PendingClaimsFilter matches unresolved claim requests.
func PendingClaimsFilter(userID string) *QueryFilter {
	return &QueryFilter{UserID: userID, Type: TypeClaimRequested, Status: StatusPending}
}
