package purchase

import "testing"

func TestSignatureKnownVector(t *testing.T) {
	const want = "15656b40fea6f2159b578efa459e969de9f5e223fb8a08393e274ac578d9d005"
	if got := Sign("order_ABC", "pay_XYZ", "test_secret"); got != want {
		t.Fatalf("Sign() = %s, want %s", got, want)
	}
}

func TestVerifySignature(t *testing.T) {
	good := Sign("order_ABC", "pay_XYZ", "test_secret")
	tests := []struct {
		name      string
		orderID   string
		paymentID string
		signature string
		secret    string
		want      bool
	}{
		{"valid", "order_ABC", "pay_XYZ", good, "test_secret", true},
		{"other payment", "order_ABC", "pay_OTHER", good, "test_secret", false},
		{"other order", "order_DEF", "pay_XYZ", good, "test_secret", false},
		{"wrong secret", "order_ABC", "pay_XYZ", good, "other_secret", false},
		{"uppercase hex", "order_ABC", "pay_XYZ", "15656B40FEA6F2159B578EFA459E969DE9F5E223FB8A08393E274AC578D9D005", "test_secret", false},
		{"empty signature", "order_ABC", "pay_XYZ", "", "test_secret", false},
		{"empty secret", "order_ABC", "pay_XYZ", Sign("order_ABC", "pay_XYZ", ""), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifySignature(tt.orderID, tt.paymentID, tt.signature, tt.secret); got != tt.want {
				t.Fatalf("VerifySignature() = %v, want %v", got, tt.want)
			}
		})
	}
}
