package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrAccountNotFound indicates the referenced account has never been created.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountInactive indicates the account was soft-deleted and accepts no new entries.
	ErrAccountInactive = errors.New("account inactive")

	// ErrInsufficientCoins occurs when a debit would drive the balance below zero.
	ErrInsufficientCoins = errors.New("insufficient coins")

	// ErrEntryNotFound indicates the entry identifier is unknown.
	ErrEntryNotFound = errors.New("ledger entry not found")

	// ErrEntryNotPending is returned when a status transition is requested on an
	// entry that already reached the opposite terminal state.
	ErrEntryNotPending = errors.New("ledger entry not pending")

	// ErrAlreadyGranted indicates a completed spend already unlocked the target.
	// The existing entry is returned alongside it and nothing was debited.
	ErrAlreadyGranted = errors.New("target already unlocked")

	// ErrOrderNotFound indicates the purchase order identifier is unknown.
	ErrOrderNotFound = errors.New("purchase order not found")

	// ErrOrderSettled indicates the order was already verified and credited.
	ErrOrderSettled = errors.New("purchase order already verified")

	// ErrOrderNotPending indicates the order failed or expired and can no longer be settled.
	ErrOrderNotPending = errors.New("purchase order not pending")

	// ErrConcurrentModification is surfaced only when storage retries are exhausted.
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrInvalidEntry reports an append request that violates the entry shape rules.
	ErrInvalidEntry = errors.New("invalid ledger entry")
)

// Kind classifies a ledger entry.
type Kind string

const (
	KindPurchase Kind = "purchase"
	KindSpend    Kind = "spend"
)

// Status is the lifecycle state of a ledger entry.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Purpose tags recognised by the marketplace.
const (
	PurposePurchase        = "purchase"
	PurposeContactTutor    = "contact_tutor"
	PurposeViewRequirement = "view_requirement"
	PurposeMessageTutor    = "message_tutor"
)

// OrderStatus is the lifecycle state of a purchase order.
type OrderStatus string

const (
	OrderPending  OrderStatus = "pending"
	OrderVerified OrderStatus = "verified"
	OrderFailed   OrderStatus = "failed"
	OrderExpired  OrderStatus = "expired"
)

// Account holds the materialized coin balance of a registered user.
type Account struct {
	ID        string
	Role      string
	Balance   int64
	Active    bool
	CreatedAt time.Time
}

// Entry is an immutable balance-affecting record. Only Status, Reason and
// CompletedAt change, and only once.
type Entry struct {
	ID          string
	AccountID   string
	Delta       int64
	Kind        Kind
	Purpose     string
	TargetID    string
	Status      Status
	ExternalRef string
	Reason      string
	CreatedAt   time.Time
	CompletedAt time.Time
}

// Grant records that an account unlocked one gated target.
type Grant struct {
	AccountID string
	Purpose   string
	TargetID  string
	EntryID   string
	GrantedAt time.Time
}

// Order is a coin purchase awaiting gateway confirmation.
type Order struct {
	ID             string
	AccountID      string
	Coins          int64
	Price          decimal.Decimal
	Currency       string
	GatewayOrderID string
	PaymentID      string
	EntryID        string
	Status         OrderStatus
	Reason         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AppendInput describes a new ledger entry.
type AppendInput struct {
	AccountID   string
	Delta       int64
	Kind        Kind
	Purpose     string
	TargetID    string
	ExternalRef string
}

// Store defines the contract implemented by ledger backends. Every method that
// moves a balance does so in the same atomic unit as the status transition
// that justifies it.
type Store interface {
	EnsureAccount(ctx context.Context, id, role string) error
	Account(ctx context.Context, id string) (Account, error)
	Deactivate(ctx context.Context, id string) error
	Balance(ctx context.Context, accountID string) (int64, error)

	Append(ctx context.Context, in AppendInput) (Entry, error)
	Complete(ctx context.Context, entryID string) (Entry, error)
	Fail(ctx context.Context, entryID, reason string) (Entry, error)
	Entry(ctx context.Context, entryID string) (Entry, error)
	Entries(ctx context.Context, accountID string, limit int) ([]Entry, error)

	Grant(ctx context.Context, accountID, purpose, targetID string) (Grant, error)
	Grants(ctx context.Context, accountID string) ([]Grant, error)

	CreateOrder(ctx context.Context, order Order, in AppendInput) (Order, error)
	Order(ctx context.Context, id string) (Order, error)
	SettleOrder(ctx context.Context, id, paymentID string) (Order, int64, error)
	FailOrder(ctx context.Context, id, reason string) (Order, error)
	ExpireOrders(ctx context.Context, cutoff time.Time) ([]Order, error)
}

// ErrGrantNotFound is returned by Grant when the target was never unlocked.
var ErrGrantNotFound = errors.New("grant not found")

func validateAppend(in AppendInput) error {
	if in.AccountID == "" {
		return errors.Join(ErrInvalidEntry, errors.New("account id is required"))
	}
	switch in.Kind {
	case KindSpend:
		if in.Delta >= 0 {
			return errors.Join(ErrInvalidEntry, errors.New("spend delta must be negative"))
		}
		if in.Purpose == "" || in.TargetID == "" {
			return errors.Join(ErrInvalidEntry, errors.New("spend requires purpose and target"))
		}
	case KindPurchase:
		if in.Delta <= 0 {
			return errors.Join(ErrInvalidEntry, errors.New("purchase delta must be positive"))
		}
	default:
		return errors.Join(ErrInvalidEntry, errors.New("unknown entry kind"))
	}
	return nil
}
