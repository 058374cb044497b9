package http

import (
	"log/slog"
	"net/http"

	"github.com/Strob0t/linkshop/internal/service"
)

// paymentWebhook is the payload of a signed payment notification.
type paymentWebhook struct {
	TenantSlug string `json:"tenant_slug"`
	OrderID    string `json:"order_id"`
}

// PaymentWebhook handles POST /api/webhooks/payment. The signature is
// checked by middleware; the notification is applied once and failures are
// returned to the gateway as-is.
func (h *Handlers) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[paymentWebhook](w, r)
	if !ok {
		return
	}
	if req.TenantSlug == "" || req.OrderID == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "tenant_slug and order_id are required")
		return
	}
	t, err := h.Tenants.ResolveSlug(r.Context(), req.TenantSlug)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	o, err := h.Orders.ConfirmPayment(r.Context(), t.ID, req.OrderID, service.ActorPaymentGateway)
	if err != nil {
		slog.WarnContext(r.Context(), "payment webhook rejected", "tenant", t.Slug, "order_id", req.OrderID, "error", err)
		writeDomainError(w, r, err)
		return
	}
	slog.InfoContext(r.Context(), "payment confirmed by gateway", "tenant", t.Slug, "order", o.OrderNumber)
	writeJSON(w, http.StatusOK, o)
}
