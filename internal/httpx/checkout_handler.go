package httpx

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/AydinMate/wedding-admin/internal/orders"
)

const maxWebhookBody = 65536

// CheckoutHandler serves the public storefront and the payment provider callback.
type CheckoutHandler struct {
	Checkout    *orders.Checkout
	Reconciler  *orders.PaymentReconciler
	CORSOrigins []string
}

type checkoutReq struct {
	ProductHires   []orders.CheckoutItem `json:"productHires"`
	DropoffAddress string                `json:"dropoffAddress"`
	IsDelivery     orders.Flag           `json:"isDelivery"`
	HireDate       orders.Date           `json:"hireDate"`
}

type checkoutResp struct {
	URL string `json:"url"`
}

func (h *CheckoutHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(cors(h.CORSOrigins))
		r.Options("/{storeId}/checkout", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, struct{}{})
		})
		r.Post("/{storeId}/checkout", h.checkout)
	})
	r.Post("/webhook", h.webhook)
}

func (h *CheckoutHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	url, err := h.Checkout.Start(r.Context(), orders.CheckoutInput{
		StoreID:        chi.URLParam(r, "storeId"),
		Items:          req.ProductHires,
		DropoffAddress: req.DropoffAddress,
		IsDelivery:     bool(req.IsDelivery),
		HireDate:       req.HireDate.Time,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checkoutResp{URL: url})
}

func (h *CheckoutHandler) webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, r, errors.Wrap(err, "read webhook body"))
		return
	}
	outcome, err := h.Reconciler.Handle(r.Context(), body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, orders.ErrSignature) {
			log.WithError(err).Warn("webhook rejected")
			http.Error(w, "Webhook Error: "+err.Error(), http.StatusBadRequest)
			return
		}
		writeError(w, r, err)
		return
	}
	log.WithField("outcome", outcome).Debug("webhook acknowledged")
	w.WriteHeader(http.StatusOK)
}
