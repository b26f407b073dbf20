package purchase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	razorpay "github.com/razorpay/razorpay-go"
)

// Gateway represents a connector to an external payment processor.
type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (GatewayOrder, error)
	KeyID() string
}

// OrderRequest asks the gateway for an order handle.
type OrderRequest struct {
	Receipt     string
	AmountMinor int64
	Currency    string
	AccountID   string
	Coins       int64
}

// GatewayOrder is the gateway's handle for a pending payment.
type GatewayOrder struct {
	ID     string
	Status string
}

// orderCreator is the subset of the Razorpay orders resource used here.
type orderCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// RazorpayGateway creates orders through the Razorpay Orders API.
type RazorpayGateway struct {
	keyID  string
	orders orderCreator
}

// NewRazorpayGateway builds a gateway authenticated with the key pair.
func NewRazorpayGateway(keyID, keySecret string) *RazorpayGateway {
	client := razorpay.NewClient(keyID, keySecret)
	return &RazorpayGateway{keyID: keyID, orders: client.Order}
}

// CreateOrder registers an auto-captured order for the amount in paise.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, req OrderRequest) (GatewayOrder, error) {
	if err := ctx.Err(); err != nil {
		return GatewayOrder{}, err
	}
	body, err := g.orders.Create(map[string]interface{}{
		"amount":          req.AmountMinor,
		"currency":        req.Currency,
		"receipt":         req.Receipt,
		"payment_capture": 1,
		"notes": map[string]interface{}{
			"user_id": req.AccountID,
			"coins":   req.Coins,
		},
	}, nil)
	if err != nil {
		return GatewayOrder{}, fmt.Errorf("razorpay order create: %w", err)
	}
	id, _ := body["id"].(string)
	if id == "" {
		return GatewayOrder{}, errors.New("razorpay order create: response has no id")
	}
	status, _ := body["status"].(string)
	return GatewayOrder{ID: id, Status: status}, nil
}

// KeyID is the public key the checkout widget needs.
func (g *RazorpayGateway) KeyID() string {
	return g.keyID
}

// MockGateway issues synthetic order ids without any network call.
type MockGateway struct{}

// CreateOrder returns a synthetic order handle.
func (MockGateway) CreateOrder(_ context.Context, _ OrderRequest) (GatewayOrder, error) {
	return GatewayOrder{ID: "order_mock_" + uuid.NewString(), Status: "created"}, nil
}

// KeyID returns a placeholder public key.
func (MockGateway) KeyID() string {
	return "rzp_mock"
}
