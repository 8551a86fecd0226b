// Package verification tracks admin review of stock transactions recorded
// by non-admin staff. One record exists per qualifying transaction; the
// sync job creates them lazily and admins move them through review.
package verification

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status of a verification record.
type Status string

const (
	StatusNotVerified        Status = "not_verified"
	StatusVerified           Status = "verified"
	StatusNeedsClarification Status = "needs_clarification"
)

// Record is the review state for one transaction.
type Record struct {
	ID         uuid.UUID  `json:"id"`
	TxnID      uuid.UUID  `json:"txn_id"`
	TxnType    string     `json:"txn_type"`
	TxnAt      time.Time  `json:"txn_at"`
	CreatedBy  string     `json:"created_by"`
	Status     Status     `json:"status"`
	Note       string     `json:"note,omitempty"`
	VerifierID string     `json:"verifier_id,omitempty"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ErrRecordNotFound means no verification record exists for the transaction.
var ErrRecordNotFound = errors.New("verification: record not found")

// InvalidTransitionError reports a review move the workflow forbids.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("verification: cannot move %s to %s", e.From, e.To)
}

// canTransition encodes the review workflow. Verified is terminal and a
// record never silently returns to not_verified.
func canTransition(from, to Status) bool {
	switch from {
	case StatusNotVerified, StatusNeedsClarification:
		return to == StatusVerified || to == StatusNeedsClarification
	default:
		return false
	}
}
