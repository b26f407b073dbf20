package wallet

import (
	"errors"
	"time"
)

// ErrBalanceDrift reports that the materialized balance no longer equals the
// sum of the account's completed entries.
var ErrBalanceDrift = errors.New("balance drift detected")

// Wallet is the account view served to the frontend.
type Wallet struct {
	Coins        int64         `json:"coins"`
	Transactions []Transaction `json:"transactions"`
}

// Transaction is one ledger entry as rendered in the wallet history.
type Transaction struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Coins       int64      `json:"coins"`
	Purpose     string     `json:"purpose,omitempty"`
	TargetID    string     `json:"target_id,omitempty"`
	Status      string     `json:"status"`
	Reason      string     `json:"reason,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Reconciliation is the outcome of replaying an account's entries.
type Reconciliation struct {
	AccountID    string `json:"account_id"`
	Materialized int64  `json:"materialized"`
	Replayed     int64  `json:"replayed"`
	Entries      int    `json:"entries"`
}

// Drift is the signed difference between the stored and replayed balances.
func (r Reconciliation) Drift() int64 {
	return r.Materialized - r.Replayed
}
