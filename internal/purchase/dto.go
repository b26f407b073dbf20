package purchase

// PurchaseRequest selects a coin package.
type PurchaseRequest struct {
	Package int64 `json:"package"`
}

// VerifyRequest relays the gateway's checkout callback.
type VerifyRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
	TransactionID     string `json:"transaction_id"`
}

// CheckoutResponse carries the parameters the checkout widget needs.
type CheckoutResponse struct {
	OrderID       string `json:"order_id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	KeyID         string `json:"key_id"`
	TransactionID string `json:"transaction_id"`
}

// MockPurchaseResponse is returned when purchases settle without a gateway.
type MockPurchaseResponse struct {
	Message       string `json:"message"`
	CoinsAdded    int64  `json:"coins_added"`
	NewBalance    int64  `json:"new_balance"`
	TransactionID string `json:"transaction_id"`
}

// VerifyResponse reports a verified purchase.
type VerifyResponse struct {
	Message    string `json:"message"`
	CoinsAdded int64  `json:"coins_added"`
	NewBalance int64  `json:"new_balance"`
	Replayed   bool   `json:"already_verified"`
}
