package purchase

import (
	"context"
	"errors"
	"testing"
)

type fakeOrders struct {
	got  map[string]interface{}
	resp map[string]interface{}
	err  error
}

func (f *fakeOrders) Create(data map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	f.got = data
	return f.resp, f.err
}

func TestRazorpayGatewayCreateOrder(t *testing.T) {
	orders := &fakeOrders{resp: map[string]interface{}{"id": "order_Rz1", "status": "created"}}
	gw := &RazorpayGateway{keyID: "rzp_test_key", orders: orders}

	got, err := gw.CreateOrder(context.Background(), OrderRequest{
		Receipt: "txn-1", AmountMinor: 20_000, Currency: "INR", AccountID: "acc-1", Coins: 100,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if got.ID != "order_Rz1" || got.Status != "created" {
		t.Fatalf("unexpected order %+v", got)
	}
	if orders.got["amount"] != int64(20_000) || orders.got["currency"] != "INR" || orders.got["receipt"] != "txn-1" {
		t.Fatalf("unexpected request %v", orders.got)
	}
	notes, _ := orders.got["notes"].(map[string]interface{})
	if notes["user_id"] != "acc-1" || notes["coins"] != int64(100) {
		t.Fatalf("unexpected notes %v", notes)
	}
	if gw.KeyID() != "rzp_test_key" {
		t.Fatalf("unexpected key id %s", gw.KeyID())
	}
}

func TestRazorpayGatewayErrors(t *testing.T) {
	boom := errors.New("bad request")
	tests := []struct {
		name   string
		orders *fakeOrders
	}{
		{"api error", &fakeOrders{err: boom}},
		{"missing id", &fakeOrders{resp: map[string]interface{}{"status": "created"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &RazorpayGateway{keyID: "k", orders: tt.orders}
			if _, err := gw.CreateOrder(context.Background(), OrderRequest{AmountMinor: 100}); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
