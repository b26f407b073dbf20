package purchase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tutorconnect/coin_ledger/internal/catalog"
	"github.com/tutorconnect/coin_ledger/internal/keylock"
	"github.com/tutorconnect/coin_ledger/internal/ledger"
	"github.com/tutorconnect/coin_ledger/internal/metrics"
	"github.com/tutorconnect/coin_ledger/internal/notification"
)

var (
	ErrPaymentVerificationFailed = errors.New("invalid payment signature")
	ErrOrderNotOwned             = errors.New("order belongs to another account")
	ErrOrderClosed               = errors.New("order is no longer payable")
)

// Options configures a purchase service.
type Options struct {
	// KeySecret is the gateway secret signatures are computed with.
	KeySecret string
	// Mock settles every purchase immediately. Refused in production by config.
	Mock bool
	// PendingTTL is how long an order may wait for its payment callback.
	PendingTTL time.Duration
}

// Service coordinates coin purchases between the ledger and the payment gateway.
type Service struct {
	ledger   ledger.Store
	catalog  catalog.Catalog
	gateway  Gateway
	opts     Options
	notifier notification.Notifier
	logger   *slog.Logger
	locks    *keylock.Map
	now      func() time.Time
}

// NewService prepares a purchase service. A nil gateway falls back to MockGateway.
func NewService(store ledger.Store, cat catalog.Catalog, gateway Gateway, opts Options, notifier notification.Notifier, logger *slog.Logger) *Service {
	if gateway == nil {
		gateway = MockGateway{}
	}
	return &Service{
		ledger:   store,
		catalog:  cat,
		gateway:  gateway,
		opts:     opts,
		notifier: notifier,
		logger:   logger,
		locks:    keylock.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// InitiateResult is either a checkout (gateway mode) or an immediate credit (mock mode).
type InitiateResult struct {
	Checkout *CheckoutResponse
	Mock     *MockPurchaseResponse
}

// Packages lists the coin packages on sale.
func (s *Service) Packages() []catalog.Package {
	return s.catalog.Sorted()
}

// InitiatePurchase opens a pending order and its pending ledger entry for the
// package, then hands back what the client needs to pay.
func (s *Service) InitiatePurchase(ctx context.Context, accountID string, coins int64) (InitiateResult, error) {
	pkg, err := s.catalog.Package(coins)
	if err != nil {
		metrics.PurchaseTotal.WithLabelValues("initiate", "invalid").Inc()
		return InitiateResult{}, err
	}
	if _, err := s.ledger.Account(ctx, accountID); err != nil {
		return InitiateResult{}, err
	}

	orderID := uuid.NewString()
	gwOrder, err := s.gateway.CreateOrder(ctx, OrderRequest{
		Receipt:     orderID,
		AmountMinor: pkg.MinorUnits(),
		Currency:    catalog.Currency,
		AccountID:   accountID,
		Coins:       pkg.Coins,
	})
	if err != nil {
		metrics.PurchaseTotal.WithLabelValues("initiate", "gateway_error").Inc()
		return InitiateResult{}, err
	}

	order, err := s.ledger.CreateOrder(ctx, ledger.Order{
		ID:             orderID,
		Coins:          pkg.Coins,
		Price:          pkg.Price,
		Currency:       catalog.Currency,
		GatewayOrderID: gwOrder.ID,
	}, ledger.AppendInput{
		AccountID:   accountID,
		Delta:       pkg.Coins,
		Purpose:     ledger.PurposePurchase,
		ExternalRef: gwOrder.ID,
	})
	if err != nil {
		metrics.PurchaseTotal.WithLabelValues("initiate", "error").Inc()
		return InitiateResult{}, err
	}
	metrics.PurchaseTotal.WithLabelValues("initiate", "ok").Inc()

	if s.opts.Mock {
		settled, balance, err := s.ledger.SettleOrder(ctx, order.ID, "pay_mock_"+uuid.NewString())
		if err != nil {
			return InitiateResult{}, err
		}
		s.credited(ctx, settled)
		return InitiateResult{Mock: &MockPurchaseResponse{
			Message:       "Coins purchased successfully (Mock Mode)",
			CoinsAdded:    settled.Coins,
			NewBalance:    balance,
			TransactionID: settled.ID,
		}}, nil
	}

	if s.logger != nil {
		s.logger.Info("purchase.initiate completed",
			slog.String("account_id", accountID),
			slog.String("order_id", order.ID),
			slog.String("gateway_order_id", gwOrder.ID),
			slog.Int64("coins", pkg.Coins),
			slog.String("price", pkg.Price.StringFixed(2)),
		)
	}
	return InitiateResult{Checkout: &CheckoutResponse{
		OrderID:       gwOrder.ID,
		Amount:        pkg.MinorUnits(),
		Currency:      catalog.Currency,
		KeyID:         s.gateway.KeyID(),
		TransactionID: order.ID,
	}}, nil
}

// VerifyInput is the gateway callback relayed by the client.
type VerifyInput struct {
	AccountID      string
	OrderID        string
	GatewayOrderID string
	PaymentID      string
	Signature      string
}

// VerifyResult reports the credit applied by a verification. Replayed is set
// when the order had already been verified and nothing was credited.
type VerifyResult struct {
	Verified   bool
	Replayed   bool
	CoinsAdded int64
	NewBalance int64
}

// VerifyPurchase checks the gateway signature and, on match, credits the order
// exactly once. A mismatch fails a pending order and never credits.
func (s *Service) VerifyPurchase(ctx context.Context, in VerifyInput) (VerifyResult, error) {
	if in.OrderID == "" {
		return VerifyResult{}, ledger.ErrOrderNotFound
	}
	unlock := s.locks.Lock(in.OrderID)
	defer unlock()

	order, err := s.ledger.Order(ctx, in.OrderID)
	if err != nil {
		return VerifyResult{}, err
	}
	if order.AccountID != in.AccountID {
		metrics.PurchaseTotal.WithLabelValues("verify", "not_owned").Inc()
		return VerifyResult{}, ErrOrderNotOwned
	}

	if in.GatewayOrderID != order.GatewayOrderID ||
		!VerifySignature(order.GatewayOrderID, in.PaymentID, in.Signature, s.opts.KeySecret) {
		metrics.PurchaseTotal.WithLabelValues("verify", "bad_signature").Inc()
		if order.Status == ledger.OrderPending {
			if _, err := s.ledger.FailOrder(ctx, order.ID, "signature mismatch"); err != nil && !errors.Is(err, ledger.ErrOrderSettled) {
				return VerifyResult{}, err
			}
			s.notify(ctx, notification.Message{
				Kind:        notification.KindPaymentFailed,
				Destination: order.AccountID,
				Body:        fmt.Sprintf("Payment for %d coins could not be verified", order.Coins),
				Coins:       order.Coins,
				Reference:   order.ID,
			})
		}
		if s.logger != nil {
			s.logger.Warn("purchase.verify signature mismatch",
				slog.String("account_id", in.AccountID),
				slog.String("order_id", order.ID),
				slog.String("status", string(order.Status)),
			)
		}
		return VerifyResult{}, ErrPaymentVerificationFailed
	}

	settled, balance, err := s.ledger.SettleOrder(ctx, order.ID, in.PaymentID)
	switch {
	case errors.Is(err, ledger.ErrOrderSettled):
		metrics.PurchaseTotal.WithLabelValues("verify", "replayed").Inc()
		return VerifyResult{Verified: true, Replayed: true, CoinsAdded: settled.Coins, NewBalance: balance}, nil
	case errors.Is(err, ledger.ErrOrderNotPending):
		metrics.PurchaseTotal.WithLabelValues("verify", "closed").Inc()
		return VerifyResult{}, fmt.Errorf("%w: order %s is %s", ErrOrderClosed, settled.ID, settled.Status)
	case err != nil:
		metrics.PurchaseTotal.WithLabelValues("verify", "error").Inc()
		return VerifyResult{}, err
	}

	metrics.PurchaseTotal.WithLabelValues("verify", "ok").Inc()
	s.credited(ctx, settled)
	if s.logger != nil {
		s.logger.Info("purchase.verify completed",
			slog.String("account_id", settled.AccountID),
			slog.String("order_id", settled.ID),
			slog.String("payment_id", in.PaymentID),
			slog.Int64("coins", settled.Coins),
			slog.Int64("balance", balance),
		)
	}
	return VerifyResult{Verified: true, CoinsAdded: settled.Coins, NewBalance: balance}, nil
}

// ExpireStale closes pending orders older than the payment window. Their
// entries fail; nothing is credited.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	ttl := s.opts.PendingTTL
	if ttl <= 0 {
		return 0, nil
	}
	expired, err := s.ledger.ExpireOrders(ctx, s.now().Add(-ttl))
	for _, o := range expired {
		metrics.OrdersExpired.Inc()
		s.notify(ctx, notification.Message{
			Kind:        notification.KindOrderExpired,
			Destination: o.AccountID,
			Body:        fmt.Sprintf("Purchase of %d coins expired before payment", o.Coins),
			Coins:       o.Coins,
			Reference:   o.ID,
		})
	}
	if len(expired) > 0 && s.logger != nil {
		s.logger.Info("purchase.expire completed", slog.Int("orders", len(expired)))
	}
	return len(expired), err
}

func (s *Service) credited(ctx context.Context, order ledger.Order) {
	metrics.CoinsCredited.Add(float64(order.Coins))
	s.notify(ctx, notification.Message{
		Kind:        notification.KindCoinsPurchased,
		Destination: order.AccountID,
		Body:        fmt.Sprintf("%d coins added to your wallet", order.Coins),
		Coins:       order.Coins,
		Reference:   order.ID,
	})
}

func (s *Service) notify(ctx context.Context, msg notification.Message) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, msg); err != nil && s.logger != nil {
		s.logger.Warn("notification failed", slog.String("kind", msg.Kind), slog.Any("error", err))
	}
}
