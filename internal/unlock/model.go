package unlock

import (
	"errors"
	"strings"

	"github.com/tutorconnect/coin_ledger/internal/ledger"
)

var (
	ErrInvalidPurpose = errors.New("invalid purpose")
	ErrInvalidCost    = errors.New("coins must be a positive amount")
	ErrTargetRequired = errors.New("target_id is required")
	ErrPriceMismatch  = errors.New("coins do not match the price of this unlock")
	ErrTargetNotFound = errors.New("target not found")
)

// aliases maps legacy purpose tags sent by older clients.
var aliases = map[string]string{
	"message_unlock": ledger.PurposeMessageTutor,
}

// NormalizePurpose trims and canonicalises a purpose tag.
func NormalizePurpose(purpose string) (string, error) {
	p := strings.ToLower(strings.TrimSpace(purpose))
	if canonical, ok := aliases[p]; ok {
		p = canonical
	}
	switch p {
	case ledger.PurposeContactTutor, ledger.PurposeViewRequirement, ledger.PurposeMessageTutor:
		return p, nil
	}
	return "", ErrInvalidPurpose
}

// SpendInput is a request to unlock one target.
type SpendInput struct {
	AccountID string
	Cost      int64
	Purpose   string
	TargetID  string
}

// SpendResult is the outcome of a spend. Replayed is set when the target was
// already unlocked and nothing was debited.
type SpendResult struct {
	Granted          bool
	Replayed         bool
	RemainingBalance int64
	EntryID          string
	Payload          any
}

// TutorAccess summarises what an account has unlocked for one tutor.
type TutorAccess struct {
	HasMessageAccess bool  `json:"has_message_access"`
	HasContactAccess bool  `json:"has_contact_access"`
	CurrentCoins     int64 `json:"current_coins"`
}
