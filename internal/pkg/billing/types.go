package billing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vitrine-app/vitrine/internal/pkg/entitlements"
	"github.com/vitrine-app/vitrine/internal/pkg/env"
)

// Event types dispatched by the reconciler. Anything else is acknowledged as
// a no-op for forward compatibility.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

const (
	SubscriptionStatusActive            = "active"
	SubscriptionStatusTrialing          = "trialing"
	SubscriptionStatusPastDue           = "past_due"
	SubscriptionStatusCanceled          = "canceled"
	SubscriptionStatusIncompleteExpired = "incomplete_expired"
	SubscriptionStatusUnpaid            = "unpaid"
)

// Metadata is the provider-side metadata echo attached to checkout sessions
// and subscriptions at creation time.
type Metadata struct {
	UserID string `json:"user_id"`
	Plan   string `json:"plan"`
}

// Subscription is the provider's subscription object, reduced to the fields
// the reconciler needs.
type Subscription struct {
	ID                string   `json:"id"`
	Customer          string   `json:"customer"`
	Status            string   `json:"status"`
	CancelAtPeriodEnd bool     `json:"cancel_at_period_end"`
	Metadata          Metadata `json:"metadata"`
	Items             struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// PriceID returns the price identifier of the first subscription item.
func (s *Subscription) PriceID() string {
	if len(s.Items.Data) == 0 {
		return ""
	}
	return s.Items.Data[0].Price.ID
}

// SubscriptionRef is either a bare subscription id or an expanded
// subscription object, depending on whether the caller asked for expansion.
type SubscriptionRef struct {
	ID     string
	Object *Subscription
}

func (r *SubscriptionRef) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*r = SubscriptionRef{}
		return nil
	}
	if trimmed[0] == '"' {
		return json.Unmarshal(trimmed, &r.ID)
	}
	var sub Subscription
	if err := json.Unmarshal(trimmed, &sub); err != nil {
		return err
	}
	r.Object = &sub
	r.ID = sub.ID
	return nil
}

func (r SubscriptionRef) MarshalJSON() ([]byte, error) {
	if r.Object != nil {
		return json.Marshal(r.Object)
	}
	if r.ID != "" {
		return json.Marshal(r.ID)
	}
	return []byte("null"), nil
}

// CheckoutSession is the provider's checkout session object.
type CheckoutSession struct {
	ID           string          `json:"id"`
	URL          string          `json:"url"`
	Customer     string          `json:"customer"`
	Metadata     Metadata        `json:"metadata"`
	Subscription SubscriptionRef `json:"subscription"`
}

// Event is a signed webhook envelope. Data.Object carries the event-specific
// payload and is decoded lazily based on Type.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// ParseEvent decodes a webhook payload into an event envelope.
func ParseEvent(payload []byte) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}
	if strings.TrimSpace(evt.Type) == "" {
		return nil, fmt.Errorf("webhook payload missing event type")
	}
	return &evt, nil
}

// CheckoutSession decodes the event payload as a checkout session.
func (e *Event) CheckoutSession() (*CheckoutSession, error) {
	var cs CheckoutSession
	if err := json.Unmarshal(e.Data.Object, &cs); err != nil {
		return nil, fmt.Errorf("invalid checkout session payload: %w", err)
	}
	return &cs, nil
}

// Subscription decodes the event payload as a subscription.
func (e *Event) Subscription() (*Subscription, error) {
	var sub Subscription
	if err := json.Unmarshal(e.Data.Object, &sub); err != nil {
		return nil, fmt.Errorf("invalid subscription payload: %w", err)
	}
	return &sub, nil
}

// PriceTable maps provider price identifiers to internal plans. Static
// configuration, loaded once at startup.
type PriceTable map[string]entitlements.Plan

// NewPriceTableFromEnv reads the price identifiers for the paid tiers.
func NewPriceTableFromEnv() PriceTable {
	table := PriceTable{}
	if id := strings.TrimSpace(env.GetEnv("BILLING_PRICE_ID_PRO", "")); id != "" {
		table[id] = entitlements.PlanPro
	}
	if id := strings.TrimSpace(env.GetEnv("BILLING_PRICE_ID_PREMIUM", "")); id != "" {
		table[id] = entitlements.PlanPremium
	}
	return table
}

// PlanFor resolves a price identifier to an internal plan.
func (t PriceTable) PlanFor(priceID string) (entitlements.Plan, bool) {
	plan, ok := t[strings.TrimSpace(priceID)]
	return plan, ok
}

// PriceFor resolves a plan to its provider price identifier.
func (t PriceTable) PriceFor(plan entitlements.Plan) (string, bool) {
	for id, p := range t {
		if p == plan {
			return id, true
		}
	}
	return "", false
}
