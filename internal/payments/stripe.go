package payments

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/AydinMate/wedding-admin/internal/orders"
)

const metadataOrderID = "orderId"

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
	StoreURL      string
}

// Stripe creates hosted checkout sessions and verifies webhook deliveries.
type Stripe struct {
	cfg        StripeConfig
	newSession func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

func NewStripe(cfg StripeConfig) *Stripe {
	sc := &session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: cfg.SecretKey}
	return &Stripe{cfg: cfg, newSession: sc.New}
}

func (s *Stripe) CreateCheckoutSession(ctx context.Context, req orders.SessionRequest) (string, error) {
	params := s.sessionParams(req)
	params.Context = ctx
	sess, err := s.newSession(params)
	if err != nil {
		return "", errors.Wrap(err, "stripe checkout session")
	}
	return sess.URL, nil
}

func (s *Stripe) sessionParams(req orders.SessionRequest) *stripe.CheckoutSessionParams {
	base := strings.TrimRight(s.cfg.StoreURL, "/")
	params := &stripe.CheckoutSessionParams{
		Mode:                     stripe.String(string(stripe.CheckoutSessionModePayment)),
		BillingAddressCollection: stripe.String(string(stripe.CheckoutSessionBillingAddressCollectionRequired)),
		PhoneNumberCollection: &stripe.CheckoutSessionPhoneNumberCollectionParams{
			Enabled: stripe.Bool(true),
		},
		SuccessURL: stripe.String(base + "/cart?success=1"),
		CancelURL:  stripe.String(base + "/cart?canceled=1"),
	}
	for _, li := range req.LineItems {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(li.Quantity),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(s.cfg.Currency),
				UnitAmount: stripe.Int64(li.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(li.Name),
				},
			},
		})
	}
	params.AddMetadata(metadataOrderID, req.OrderID)
	return params
}

// VerifyEvent checks the Stripe-Signature header against the raw body and
// decodes completed checkout sessions. Errors are signature or configuration
// failures only: a signed session that cannot be decoded comes back without an
// order id so the delivery is acknowledged instead of retried forever.
func (s *Stripe) VerifyEvent(payload []byte, signature string) (*orders.PaymentEvent, error) {
	if s.cfg.WebhookSecret == "" {
		return nil, errors.New("webhook secret is not configured")
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signature, s.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, errors.Wrap(err, "verify signature")
	}

	out := &orders.PaymentEvent{ID: ev.ID, Type: string(ev.Type)}
	if out.Type != orders.EventCheckoutCompleted || ev.Data == nil {
		return out, nil
	}
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &cs); err != nil {
		log.WithError(err).WithField("event_id", ev.ID).Error("undecodable checkout session")
		return out, nil
	}
	out.OrderID = cs.Metadata[metadataOrderID]
	if cd := cs.CustomerDetails; cd != nil {
		out.CustomerName = cd.Name
		out.Email = cd.Email
		out.Phone = cd.Phone
		if a := cd.Address; a != nil {
			out.Address = orders.Address{
				Line1:      a.Line1,
				Line2:      a.Line2,
				City:       a.City,
				State:      a.State,
				PostalCode: a.PostalCode,
				Country:    a.Country,
			}
		}
	}
	return out, nil
}
