package notification

import (
    "context"
    "log/slog"
    "time"
)

const (
    // KindCoinsPurchased is emitted when a purchase order is verified and credited.
    KindCoinsPurchased = "coins.purchased"
    // KindCoinsSpent is emitted when an unlock debits coins.
    KindCoinsSpent = "coins.spent"
    // KindOrderExpired is emitted when the sweeper closes an abandoned order.
    KindOrderExpired = "order.expired"
    // KindPaymentFailed is emitted when a gateway signature does not verify.
    KindPaymentFailed = "payment.failed"
)

// Message describes a ledger event delivered downstream.
type Message struct {
    Kind        string    `json:"kind"`
    Destination string    `json:"account_id"`
    Body        string    `json:"body"`
    Coins       int64     `json:"coins,omitempty"`
    Reference   string    `json:"reference,omitempty"`
    OccurredAt  time.Time `json:"occurred_at"`
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
    Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the structured logger. It is the
// fallback when no broker is configured.
type LoggerNotifier struct {
    logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
    return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
    if n == nil || n.logger == nil {
        return nil
    }
    n.logger.Info("notification",
        "kind", message.Kind,
        "destination", message.Destination,
        "coins", message.Coins,
        "reference", message.Reference,
        "body", message.Body,
    )
    return nil
}
