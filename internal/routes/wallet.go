package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tutorconnect/coin_ledger/internal/purchase"
	"github.com/tutorconnect/coin_ledger/internal/unlock"
	"github.com/tutorconnect/coin_ledger/internal/wallet"
)

// RegisterWalletRoutes wires the authenticated coin endpoints.
func RegisterWalletRoutes(r fiber.Router, w *wallet.Handler, u *unlock.Handler, p *purchase.Handler) {
	r.Get("/wallet", w.Get)
	r.Get("/wallet/reconcile", w.Reconcile)
	r.Post("/wallet/spend", u.Spend)
	r.Post("/wallet/purchase", p.Purchase)
	r.Post("/wallet/verify-payment", p.Verify)
	r.Get("/check-tutor-access/:tutorId", u.TutorAccess)
	r.Post("/unlocks/rebuild", u.RebuildAccess)
	r.Get("/unlocks/:purpose/:targetId", u.HasAccess)
}
