package ledger

import (
	"time"

	"github.com/google/uuid"
)

// SeedBalance is a test helper that credits an in-memory account through a
// completed purchase entry, so replaying the ledger still matches the balance.
func SeedBalance(l Store, accountID string, amount int64) {
	mem, ok := l.(*inMemoryLedger)
	if !ok {
		return
	}
	mem.mu.Lock()
	defer mem.mu.Unlock()

	acc, exists := mem.accounts[accountID]
	if !exists {
		acc = Account{ID: accountID, Active: true, CreatedAt: mem.now()}
	}
	acc.Balance += amount
	mem.accounts[accountID] = acc

	now := mem.now()
	entry := Entry{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		Delta:       amount,
		Kind:        KindPurchase,
		Purpose:     PurposePurchase,
		Status:      StatusCompleted,
		ExternalRef: "seed",
		CreatedAt:   now,
		CompletedAt: now,
	}
	mem.entries[entry.ID] = entry
	mem.byAccount[accountID] = append(mem.byAccount[accountID], entry.ID)
}

// SetClock overrides the time source of an in-memory ledger.
func SetClock(l Store, now func() time.Time) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.now = now
	}
}
