package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sambatesdesign/ChimpLink/internal/event"
	"github.com/sambatesdesign/ChimpLink/internal/platform/metrics"
	"github.com/sambatesdesign/ChimpLink/internal/stripe"
	"github.com/sambatesdesign/ChimpLink/internal/sync"
)

// CustomerFetcher looks up payment-processor customers.
type CustomerFetcher interface {
	GetCustomer(ctx context.Context, id string) (*stripe.Customer, error)
}

// StripeDispatcher handles payment-processor events. These carry no profile
// payload, so it resolves the customer via the API and runs tag-only syncs.
type StripeDispatcher struct {
	engine    Syncer
	customers CustomerFetcher
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

func NewStripeDispatcher(engine Syncer, customers CustomerFetcher, logger *slog.Logger, m *metrics.Metrics) *StripeDispatcher {
	return &StripeDispatcher{engine: engine, customers: customers, logger: logger, metrics: m}
}

type stripeCharge struct {
	Metadata map[string]string `json:"metadata"`
}

type stripeEnvelope struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			Customer string            `json:"customer"`
			Metadata map[string]string `json:"metadata"`
			Charges  struct {
				Data []stripeCharge `json:"data"`
			} `json:"charges"`
		} `json:"object"`
	} `json:"data"`
}

// Dispatch handles one raw payment-processor delivery. Events that do not
// carry a membership correlation id are acknowledged and dropped; they belong
// to payments made outside the membership platform.
func (d *StripeDispatcher) Dispatch(ctx context.Context, raw []byte) error {
	var env stripeEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode payment webhook body: %w", err)
	}
	kind := event.Classify(env.Type)
	d.metrics.IncEventReceived("stripe", env.Type)

	if !kind.AddsPaymentFailedTag() && !kind.RemovesPaymentFailedTag() {
		d.logger.Debug("no handler for payment event, ignoring", "event", env.Type)
		return nil
	}

	memberID := env.Data.Object.Metadata["member_id"]
	if memberID == "" && strings.HasPrefix(env.Type, "payment_intent.") {
		// Payment intents surface the correlation id on their first charge.
		if charges := env.Data.Object.Charges.Data; len(charges) > 0 {
			memberID = charges[0].Metadata["member_id"]
		}
	}
	if memberID == "" {
		d.logger.Info("payment event without member id, skipping", "event", env.Type)
		return nil
	}

	customerID := env.Data.Object.Customer
	if customerID == "" {
		d.logger.Warn("payment event without customer id, skipping", "event", env.Type, "member_id", memberID)
		return nil
	}
	customer, err := d.customers.GetCustomer(ctx, customerID)
	if err != nil {
		d.logger.Error("fetching payment customer failed", "event", env.Type, "customer_id", customerID, "error", err)
		return nil
	}
	if customer.Email == "" {
		d.logger.Warn("payment customer has no email, skipping", "event", env.Type, "customer_id", customerID)
		return nil
	}

	// The synthetic member carries no id on purpose: payment events must
	// never move the identity cache, and tag-only syncs key off the email.
	first, last, _ := strings.Cut(customer.Name, " ")
	member := &event.Member{
		Email:     customer.Email,
		FirstName: first,
		LastName:  last,
	}
	d.engine.Sync(ctx, member, nil, kind, sync.Options{TagOnly: true, Payload: json.RawMessage(raw)})
	return nil
}
