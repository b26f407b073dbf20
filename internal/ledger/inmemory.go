package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type grantKey struct {
	account string
	purpose string
	target  string
}

type inMemoryLedger struct {
	mu        sync.RWMutex
	now       func() time.Time
	accounts  map[string]Account
	entries   map[string]Entry
	byAccount map[string][]string
	grants    map[grantKey]Grant
	orders    map[string]Order
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests
// and development mode.
func NewInMemory() Store {
	return &inMemoryLedger{
		now:       func() time.Time { return time.Now().UTC() },
		accounts:  make(map[string]Account),
		entries:   make(map[string]Entry),
		byAccount: make(map[string][]string),
		grants:    make(map[grantKey]Grant),
		orders:    make(map[string]Order),
	}
}

func (l *inMemoryLedger) EnsureAccount(_ context.Context, id, role string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.accounts[id]; !exists {
		l.accounts[id] = Account{ID: id, Role: role, Active: true, CreatedAt: l.now()}
	}
	return nil
}

func (l *inMemoryLedger) Account(_ context.Context, id string) (Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return acc, nil
}

func (l *inMemoryLedger) Deactivate(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	acc.Active = false
	l.accounts[id] = acc
	return nil
}

func (l *inMemoryLedger) Balance(_ context.Context, accountID string) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[accountID]
	if !ok {
		return 0, ErrAccountNotFound
	}
	return acc.Balance, nil
}

func (l *inMemoryLedger) Append(_ context.Context, in AppendInput) (Entry, error) {
	if err := validateAppend(in); err != nil {
		return Entry{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.appendLocked(in)
}

func (l *inMemoryLedger) appendLocked(in AppendInput) (Entry, error) {
	acc, ok := l.accounts[in.AccountID]
	if !ok {
		return Entry{}, ErrAccountNotFound
	}
	if !acc.Active {
		return Entry{}, ErrAccountInactive
	}

	now := l.now()
	entry := Entry{
		ID:          uuid.NewString(),
		AccountID:   in.AccountID,
		Delta:       in.Delta,
		Kind:        in.Kind,
		Purpose:     in.Purpose,
		TargetID:    in.TargetID,
		Status:      StatusPending,
		ExternalRef: in.ExternalRef,
		CreatedAt:   now,
	}

	if in.Kind == KindSpend {
		key := grantKey{account: in.AccountID, purpose: in.Purpose, target: in.TargetID}
		if grant, exists := l.grants[key]; exists {
			return l.entries[grant.EntryID], ErrAlreadyGranted
		}
		if acc.Balance+in.Delta < 0 {
			return Entry{}, ErrInsufficientCoins
		}
		entry.Status = StatusCompleted
		entry.CompletedAt = now
		acc.Balance += in.Delta
		l.accounts[acc.ID] = acc
		l.grants[key] = Grant{
			AccountID: in.AccountID,
			Purpose:   in.Purpose,
			TargetID:  in.TargetID,
			EntryID:   entry.ID,
			GrantedAt: now,
		}
	}

	l.entries[entry.ID] = entry
	l.byAccount[in.AccountID] = append(l.byAccount[in.AccountID], entry.ID)
	return entry, nil
}

func (l *inMemoryLedger) Complete(_ context.Context, entryID string) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.completeLocked(entryID)
}

func (l *inMemoryLedger) completeLocked(entryID string) (Entry, error) {
	entry, ok := l.entries[entryID]
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	switch entry.Status {
	case StatusCompleted:
		return entry, nil
	case StatusFailed:
		return entry, ErrEntryNotPending
	}

	acc, ok := l.accounts[entry.AccountID]
	if !ok {
		return Entry{}, ErrAccountNotFound
	}
	if acc.Balance+entry.Delta < 0 {
		return Entry{}, ErrInsufficientCoins
	}
	acc.Balance += entry.Delta
	entry.Status = StatusCompleted
	entry.CompletedAt = l.now()
	l.accounts[acc.ID] = acc
	l.entries[entry.ID] = entry
	return entry, nil
}

func (l *inMemoryLedger) Fail(_ context.Context, entryID, reason string) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failLocked(entryID, reason)
}

func (l *inMemoryLedger) failLocked(entryID, reason string) (Entry, error) {
	entry, ok := l.entries[entryID]
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	switch entry.Status {
	case StatusFailed:
		return entry, nil
	case StatusCompleted:
		return entry, ErrEntryNotPending
	}
	entry.Status = StatusFailed
	entry.Reason = reason
	entry.CompletedAt = l.now()
	l.entries[entry.ID] = entry
	return entry, nil
}

func (l *inMemoryLedger) Entry(_ context.Context, entryID string) (Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	entry, ok := l.entries[entryID]
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	return entry, nil
}

func (l *inMemoryLedger) Entries(_ context.Context, accountID string, limit int) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, ok := l.accounts[accountID]; !ok {
		return nil, ErrAccountNotFound
	}
	ids := l.byAccount[accountID]
	out := make([]Entry, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		out = append(out, l.entries[ids[i]])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (l *inMemoryLedger) Grant(_ context.Context, accountID, purpose, targetID string) (Grant, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	grant, ok := l.grants[grantKey{account: accountID, purpose: purpose, target: targetID}]
	if !ok {
		return Grant{}, ErrGrantNotFound
	}
	return grant, nil
}

func (l *inMemoryLedger) Grants(_ context.Context, accountID string) ([]Grant, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Grant
	for key, grant := range l.grants {
		if key.account == accountID {
			out = append(out, grant)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GrantedAt.Before(out[j].GrantedAt) })
	return out, nil
}

func (l *inMemoryLedger) CreateOrder(_ context.Context, order Order, in AppendInput) (Order, error) {
	in.Kind = KindPurchase
	if err := validateAppend(in); err != nil {
		return Order{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, err := l.appendLocked(in)
	if err != nil {
		return Order{}, err
	}
	now := l.now()
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	order.AccountID = in.AccountID
	order.EntryID = entry.ID
	order.Status = OrderPending
	order.CreatedAt = now
	order.UpdatedAt = now
	l.orders[order.ID] = order
	return order, nil
}

func (l *inMemoryLedger) Order(_ context.Context, id string) (Order, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	order, ok := l.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

func (l *inMemoryLedger) SettleOrder(_ context.Context, id, paymentID string) (Order, int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	order, ok := l.orders[id]
	if !ok {
		return Order{}, 0, ErrOrderNotFound
	}
	switch order.Status {
	case OrderVerified:
		return order, l.accounts[order.AccountID].Balance, ErrOrderSettled
	case OrderFailed, OrderExpired:
		return order, l.accounts[order.AccountID].Balance, ErrOrderNotPending
	}

	if _, err := l.completeLocked(order.EntryID); err != nil {
		return Order{}, 0, err
	}
	order.Status = OrderVerified
	order.PaymentID = paymentID
	order.UpdatedAt = l.now()
	l.orders[id] = order
	return order, l.accounts[order.AccountID].Balance, nil
}

func (l *inMemoryLedger) FailOrder(_ context.Context, id, reason string) (Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeOrderLocked(id, OrderFailed, reason)
}

func (l *inMemoryLedger) closeOrderLocked(id string, status OrderStatus, reason string) (Order, error) {
	order, ok := l.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	switch order.Status {
	case OrderVerified:
		return order, ErrOrderSettled
	case OrderFailed, OrderExpired:
		return order, nil
	}
	if _, err := l.failLocked(order.EntryID, reason); err != nil {
		return Order{}, err
	}
	order.Status = status
	order.Reason = reason
	order.UpdatedAt = l.now()
	l.orders[id] = order
	return order, nil
}

func (l *inMemoryLedger) ExpireOrders(_ context.Context, cutoff time.Time) ([]Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var expired []Order
	for id, order := range l.orders {
		if order.Status != OrderPending || !order.CreatedAt.Before(cutoff) {
			continue
		}
		closed, err := l.closeOrderLocked(id, OrderExpired, "payment window elapsed")
		if err != nil {
			return expired, err
		}
		expired = append(expired, closed)
	}
	return expired, nil
}
