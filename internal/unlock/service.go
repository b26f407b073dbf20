package unlock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tutorconnect/coin_ledger/internal/access"
	"github.com/tutorconnect/coin_ledger/internal/keylock"
	"github.com/tutorconnect/coin_ledger/internal/ledger"
	"github.com/tutorconnect/coin_ledger/internal/metrics"
	"github.com/tutorconnect/coin_ledger/internal/notification"
)

// Service runs the gated-unlock protocol: at most one debit per
// (account, purpose, target), and payloads only after the debit commits.
type Service struct {
	ledger    ledger.Store
	access    *access.Checker
	prices    map[string]int64
	revealers map[string]Revealer
	notifier  notification.Notifier
	logger    *slog.Logger
	locks     *keylock.Map
}

// NewService constructs an unlock service. Purposes missing from prices accept
// any positive cost; purposes missing from revealers unlock without a payload.
func NewService(store ledger.Store, checker *access.Checker, prices map[string]int64, revealers map[string]Revealer, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{
		ledger:    store,
		access:    checker,
		prices:    prices,
		revealers: revealers,
		notifier:  notifier,
		logger:    logger,
		locks:     keylock.New(),
	}
}

// Prices returns the configured coin price per purpose.
func (s *Service) Prices() map[string]int64 {
	out := make(map[string]int64, len(s.prices))
	for k, v := range s.prices {
		out[k] = v
	}
	return out
}

// Spend unlocks the target for the account, debiting cost coins unless the
// account already holds a grant for it.
func (s *Service) Spend(ctx context.Context, in SpendInput) (SpendResult, error) {
	purpose, err := s.validate(&in)
	if err != nil {
		metrics.SpendTotal.WithLabelValues(metricPurpose(purpose), "invalid").Inc()
		return SpendResult{}, err
	}

	unlock := s.locks.Lock(in.AccountID + "|" + purpose + "|" + in.TargetID)
	defer unlock()

	granted, err := s.access.HasAccess(ctx, in.AccountID, purpose, in.TargetID)
	if err != nil {
		metrics.SpendTotal.WithLabelValues(purpose, "error").Inc()
		return SpendResult{}, err
	}
	if granted {
		return s.replay(ctx, in, "")
	}

	if r, ok := s.revealers[purpose]; ok {
		if err := r.Check(ctx, in.TargetID); err != nil {
			metrics.SpendTotal.WithLabelValues(purpose, "invalid").Inc()
			return SpendResult{}, err
		}
	}

	entry, err := s.ledger.Append(ctx, ledger.AppendInput{
		AccountID: in.AccountID,
		Delta:     -in.Cost,
		Kind:      ledger.KindSpend,
		Purpose:   purpose,
		TargetID:  in.TargetID,
	})
	switch {
	case errors.Is(err, ledger.ErrAlreadyGranted):
		s.access.Record(ctx, in.AccountID, purpose, in.TargetID)
		return s.replay(ctx, in, entry.ID)
	case errors.Is(err, ledger.ErrInsufficientCoins):
		metrics.SpendTotal.WithLabelValues(purpose, "insufficient").Inc()
		balance, berr := s.ledger.Balance(ctx, in.AccountID)
		if berr != nil {
			if s.logger != nil {
				s.logger.Warn("unlock.spend balance unavailable",
					slog.String("account_id", in.AccountID),
					slog.Any("error", berr),
				)
			}
			return SpendResult{}, fmt.Errorf("read balance: %w", berr)
		}
		return SpendResult{RemainingBalance: balance}, err
	case err != nil:
		metrics.SpendTotal.WithLabelValues(purpose, "error").Inc()
		return SpendResult{}, err
	}

	s.access.Record(ctx, in.AccountID, purpose, in.TargetID)
	metrics.SpendTotal.WithLabelValues(purpose, "granted").Inc()
	metrics.CoinsDebited.Add(float64(in.Cost))

	balance, err := s.ledger.Balance(ctx, in.AccountID)
	if err != nil {
		return SpendResult{}, err
	}
	res := SpendResult{Granted: true, RemainingBalance: balance, EntryID: entry.ID}
	res.Payload = s.reveal(ctx, purpose, in.TargetID)

	s.notify(ctx, notification.Message{
		Kind:        notification.KindCoinsSpent,
		Destination: in.AccountID,
		Body:        fmt.Sprintf("Spent %d coins on %s %s", in.Cost, purpose, in.TargetID),
		Coins:       in.Cost,
		Reference:   entry.ID,
	})
	if s.logger != nil {
		s.logger.Info("unlock.spend completed",
			slog.String("account_id", in.AccountID),
			slog.String("purpose", purpose),
			slog.String("target_id", in.TargetID),
			slog.Int64("cost", in.Cost),
			slog.Int64("remaining", balance),
			slog.String("entry_id", entry.ID),
		)
	}
	return res, nil
}

// HasAccess reports whether the account already unlocked the target.
func (s *Service) HasAccess(ctx context.Context, accountID, purpose, targetID string) (bool, error) {
	p, err := NormalizePurpose(purpose)
	if err != nil {
		return false, err
	}
	return s.access.HasAccess(ctx, accountID, p, targetID)
}

// RebuildAccess repopulates the account's cached grants from the ledger.
func (s *Service) RebuildAccess(ctx context.Context, accountID string) (int, error) {
	return s.access.Rebuild(ctx, accountID)
}

// Access reports the message and contact unlocks the account holds for a tutor.
func (s *Service) Access(ctx context.Context, accountID, tutorID string) (TutorAccess, error) {
	coins, err := s.ledger.Balance(ctx, accountID)
	if err != nil {
		return TutorAccess{}, err
	}
	msg, err := s.access.HasAccess(ctx, accountID, ledger.PurposeMessageTutor, tutorID)
	if err != nil {
		return TutorAccess{}, err
	}
	contact, err := s.access.HasAccess(ctx, accountID, ledger.PurposeContactTutor, tutorID)
	if err != nil {
		return TutorAccess{}, err
	}
	return TutorAccess{HasMessageAccess: msg, HasContactAccess: contact, CurrentCoins: coins}, nil
}

func (s *Service) validate(in *SpendInput) (string, error) {
	purpose, err := NormalizePurpose(in.Purpose)
	if err != nil {
		return "", err
	}
	in.Purpose = purpose
	in.TargetID = strings.TrimSpace(in.TargetID)
	if in.AccountID == "" {
		return purpose, ledger.ErrAccountNotFound
	}
	if in.TargetID == "" {
		return purpose, ErrTargetRequired
	}
	if in.Cost <= 0 {
		return purpose, ErrInvalidCost
	}
	if price, ok := s.prices[purpose]; ok && price != in.Cost {
		return purpose, fmt.Errorf("%w: %s costs %d coins", ErrPriceMismatch, purpose, price)
	}
	return purpose, nil
}

func (s *Service) replay(ctx context.Context, in SpendInput, entryID string) (SpendResult, error) {
	balance, err := s.ledger.Balance(ctx, in.AccountID)
	if err != nil {
		return SpendResult{}, err
	}
	metrics.SpendTotal.WithLabelValues(in.Purpose, "replayed").Inc()
	return SpendResult{
		Granted:          true,
		Replayed:         true,
		RemainingBalance: balance,
		EntryID:          entryID,
		Payload:          s.reveal(ctx, in.Purpose, in.TargetID),
	}, nil
}

// reveal never fails the spend: the grant is committed, and a replay of the
// same spend returns the payload for free once the owner is reachable.
func (s *Service) reveal(ctx context.Context, purpose, targetID string) any {
	r, ok := s.revealers[purpose]
	if !ok {
		return nil
	}
	payload, err := r.Reveal(ctx, targetID)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("unlock payload unavailable",
				slog.String("purpose", purpose),
				slog.String("target_id", targetID),
				slog.Any("error", err),
			)
		}
		return nil
	}
	return payload
}

func (s *Service) notify(ctx context.Context, msg notification.Message) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, msg); err != nil && s.logger != nil {
		s.logger.Warn("notification failed", slog.String("kind", msg.Kind), slog.Any("error", err))
	}
}

func metricPurpose(p string) string {
	if p == "" {
		return "unknown"
	}
	return p
}
