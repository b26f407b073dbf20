package wallet

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tutorconnect/coin_ledger/internal/ledger"
)

// HistoryLimit is the number of entries returned with the wallet view.
const HistoryLimit = 50

// Service projects ledger state into balances and wallet views.
type Service struct {
	ledger ledger.Store
	logger *slog.Logger
}

// NewService builds a wallet service instance.
func NewService(store ledger.Store, logger *slog.Logger) *Service {
	return &Service{ledger: store, logger: logger}
}

// Balance returns the materialized balance of the account.
func (s *Service) Balance(ctx context.Context, accountID string) (int64, error) {
	return s.ledger.Balance(ctx, accountID)
}

// Wallet returns the balance together with the most recent entries.
func (s *Service) Wallet(ctx context.Context, accountID string) (Wallet, error) {
	coins, err := s.ledger.Balance(ctx, accountID)
	if err != nil {
		return Wallet{}, err
	}
	entries, err := s.ledger.Entries(ctx, accountID, HistoryLimit)
	if err != nil {
		return Wallet{}, err
	}
	txs := make([]Transaction, 0, len(entries))
	for _, e := range entries {
		txs = append(txs, toTransaction(e))
	}
	return Wallet{Coins: coins, Transactions: txs}, nil
}

// Reconcile replays every completed entry of the account and compares the sum
// with the materialized balance. A mismatch is reported as ErrBalanceDrift.
func (s *Service) Reconcile(ctx context.Context, accountID string) (Reconciliation, error) {
	balance, err := s.ledger.Balance(ctx, accountID)
	if err != nil {
		return Reconciliation{}, err
	}
	entries, err := s.ledger.Entries(ctx, accountID, 0)
	if err != nil {
		return Reconciliation{}, err
	}
	rec := Reconciliation{AccountID: accountID, Materialized: balance, Entries: len(entries)}
	for _, e := range entries {
		if e.Status == ledger.StatusCompleted {
			rec.Replayed += e.Delta
		}
	}
	if rec.Drift() != 0 {
		if s.logger != nil {
			s.logger.Error("balance drift",
				slog.String("account_id", accountID),
				slog.Int64("materialized", rec.Materialized),
				slog.Int64("replayed", rec.Replayed),
			)
		}
		return rec, fmt.Errorf("%w: account %s stores %d, entries sum to %d",
			ErrBalanceDrift, accountID, rec.Materialized, rec.Replayed)
	}
	return rec, nil
}

func toTransaction(e ledger.Entry) Transaction {
	tx := Transaction{
		ID:        e.ID,
		Type:      string(e.Kind),
		Coins:     e.Delta,
		Purpose:   e.Purpose,
		TargetID:  e.TargetID,
		Status:    string(e.Status),
		Reason:    e.Reason,
		CreatedAt: e.CreatedAt,
	}
	if e.Kind == ledger.KindPurchase && e.Status == ledger.StatusPending {
		tx.Type = "purchase_pending"
	}
	if !e.CompletedAt.IsZero() {
		completed := e.CompletedAt
		tx.CompletedAt = &completed
	}
	return tx
}
