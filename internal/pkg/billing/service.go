package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/vitrine-app/vitrine/app/models"
	"github.com/vitrine-app/vitrine/internal/pkg/apperr"
	"github.com/vitrine-app/vitrine/internal/pkg/entitlements"
	"github.com/vitrine-app/vitrine/internal/pkg/env"
)

// Service reconciles local subscription state against provider webhook events
// and serves the authenticated billing operations.
type Service struct {
	repo     Repository
	provider Provider
	prices   PriceTable

	successURL string
	cancelURL  string
}

// NewService wires the reconciler from its dependencies.
func NewService(repo Repository, provider Provider, prices PriceTable) *Service {
	return &Service{
		repo:       repo,
		provider:   provider,
		prices:     prices,
		successURL: env.GetEnv("BILLING_SUCCESS_URL", "http://localhost:3000/billing/success"),
		cancelURL:  env.GetEnv("BILLING_CANCEL_URL", "http://localhost:3000/billing/cancel"),
	}
}

// RecordWebhookEvent persists the delivery for auditing and deduplication.
// It returns false only when the provider event id was already processed to
// completion: a retry of a delivery that failed or timed out mid-processing
// must run the handlers again, so those report true like a fresh delivery.
func (s *Service) RecordWebhookEvent(evt *Event, payload []byte, signatureValid bool) (bool, error) {
	eventID := s.eventID(evt, payload)
	created, err := s.repo.CreateWebhookEventIfNotExists(&models.BillingWebhookEvent{
		ProviderEventID: eventID,
		EventType:       evt.Type,
		PayloadJSON:     string(payload),
		SignatureValid:  signatureValid,
	})
	if err != nil || created {
		return created, err
	}

	stored, err := s.repo.GetWebhookEvent(eventID)
	if err != nil {
		return false, err
	}
	if stored.ProcessedAt == nil || stored.ProcessingError != "" {
		// The earlier delivery never finished (handler error, or a timeout
		// between insert and processing). The provider is retrying exactly
		// because of that, so let the handlers run again.
		log.Warnf("billing: reprocessing webhook %s after incomplete delivery", eventID)
		return true, nil
	}
	return false, nil
}

// MarkWebhookProcessed records the processing outcome on the stored event.
func (s *Service) MarkWebhookProcessed(evt *Event, payload []byte, processingErr error) {
	eventID := s.eventID(evt, payload)
	if err := s.repo.MarkWebhookProcessed(eventID, processingErr); err != nil {
		log.Errorf("billing: failed to mark webhook %s processed: %v", eventID, err)
	}
}

// eventID returns the provider event id, hashing the payload when the
// envelope carries none (some providers omit it on test deliveries) so
// replays still collapse onto one row.
func (s *Service) eventID(evt *Event, payload []byte) string {
	if id := strings.TrimSpace(evt.ID); id != "" {
		return id
	}
	sum := sha256.Sum256(payload)
	return "payload-" + hex.EncodeToString(sum[:])
}

// HandleEvent dispatches a verified, deduplicated webhook event. Unknown
// event types are acknowledged without action.
func (s *Service) HandleEvent(ctx context.Context, evt *Event) error {
	switch evt.Type {
	case EventCheckoutCompleted:
		return s.handleCheckoutCompleted(ctx, evt)
	case EventSubscriptionCreated:
		return s.handleSubscriptionCreated(evt)
	case EventSubscriptionUpdated:
		return s.handleSubscriptionUpdated(evt)
	case EventSubscriptionDeleted:
		return s.handleSubscriptionDeleted(evt)
	default:
		log.Debugf("billing: ignoring webhook event type %s", evt.Type)
		return nil
	}
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, evt *Event) error {
	session, err := evt.CheckoutSession()
	if err != nil {
		return err
	}

	userID := strings.TrimSpace(session.Metadata.UserID)
	if userID == "" {
		log.Warnf("billing: checkout session %s completed without user_id metadata, skipping", session.ID)
		return nil
	}

	sub, err := s.resolveSubscription(ctx, session)
	if err != nil {
		return err
	}

	plan := s.resolvePlan(session, sub)
	fields := map[string]interface{}{
		"plan": string(plan),
	}
	if customer := strings.TrimSpace(session.Customer); customer != "" {
		fields["billing_customer_id"] = customer
	}
	if sub != nil {
		fields["billing_subscription_id"] = sub.ID
		if fields["billing_customer_id"] == nil && strings.TrimSpace(sub.Customer) != "" {
			fields["billing_customer_id"] = sub.Customer
		}
	}

	if err := s.repo.UpdateUserBilling(userID, fields); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			log.Warnf("billing: checkout session %s references unknown user %s", session.ID, userID)
			return nil
		}
		return err
	}
	log.Infof("billing: user %s upgraded to plan %s via checkout %s", userID, plan, session.ID)
	return nil
}

// resolveSubscription finds the subscription behind a completed checkout,
// trying the cheapest sources first.
func (s *Service) resolveSubscription(ctx context.Context, session *CheckoutSession) (*Subscription, error) {
	if session.Subscription.Object != nil {
		return session.Subscription.Object, nil
	}
	if id := strings.TrimSpace(session.Subscription.ID); id != "" {
		sub, err := s.provider.GetSubscription(ctx, id)
		if err == nil {
			return sub, nil
		}
		if !errors.Is(err, ErrProviderNotFound) {
			return nil, err
		}
	}
	if id := strings.TrimSpace(session.ID); id != "" && s.provider != nil {
		expanded, err := s.provider.GetCheckoutSession(ctx, id)
		if err == nil && expanded.Subscription.Object != nil {
			return expanded.Subscription.Object, nil
		}
		if err != nil && !errors.Is(err, ErrProviderNotFound) {
			log.Warnf("billing: failed to re-fetch checkout session %s: %v", id, err)
		}
	}
	if customer := strings.TrimSpace(session.Customer); customer != "" {
		subs, err := s.provider.ListActiveSubscriptions(ctx, customer)
		if err != nil {
			if errors.Is(err, ErrProviderNotFound) {
				return nil, nil
			}
			return nil, err
		}
		if len(subs) > 0 {
			return &subs[0], nil
		}
	}
	return nil, nil
}

// resolvePlan picks the plan for a completed checkout. Metadata wins over the
// price table, which wins over the default.
func (s *Service) resolvePlan(session *CheckoutSession, sub *Subscription) entitlements.Plan {
	if raw := session.Metadata.Plan; entitlements.KnownPlan(raw) {
		return entitlements.NormalizePlan(raw)
	}
	if sub != nil {
		if raw := sub.Metadata.Plan; entitlements.KnownPlan(raw) {
			return entitlements.NormalizePlan(raw)
		}
		if plan, ok := s.prices.PlanFor(sub.PriceID()); ok {
			return plan
		}
	}
	log.Warnf("billing: could not resolve plan for checkout %s, defaulting to %s", session.ID, entitlements.PlanPro)
	return entitlements.PlanPro
}

func (s *Service) handleSubscriptionCreated(evt *Event) error {
	sub, err := evt.Subscription()
	if err != nil {
		return err
	}
	userID := strings.TrimSpace(sub.Metadata.UserID)
	if userID == "" {
		log.Warnf("billing: subscription %s created without user_id metadata, waiting for checkout event", sub.ID)
		return nil
	}

	var plan entitlements.Plan
	if raw := sub.Metadata.Plan; entitlements.KnownPlan(raw) {
		plan = entitlements.NormalizePlan(raw)
	} else if mapped, ok := s.prices.PlanFor(sub.PriceID()); ok {
		plan = mapped
	} else {
		log.Warnf("billing: could not resolve plan for subscription %s, defaulting to %s", sub.ID, entitlements.PlanPro)
		plan = entitlements.PlanPro
	}

	fields := map[string]interface{}{
		"plan":                    string(plan),
		"billing_subscription_id": sub.ID,
	}
	if customer := strings.TrimSpace(sub.Customer); customer != "" {
		fields["billing_customer_id"] = customer
	}
	if err := s.repo.UpdateUserBilling(userID, fields); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			log.Warnf("billing: subscription %s references unknown user %s", sub.ID, userID)
			return nil
		}
		return err
	}
	return nil
}

func (s *Service) handleSubscriptionUpdated(evt *Event) error {
	sub, err := evt.Subscription()
	if err != nil {
		return err
	}
	// Terminal statuses arrive as their own deleted events. Mid-cycle
	// updates (payment retries, cancel_at_period_end flips) do not change
	// local entitlements until the period actually ends.
	log.Infof("billing: subscription %s updated, status=%s cancel_at_period_end=%t", sub.ID, sub.Status, sub.CancelAtPeriodEnd)
	return nil
}

func (s *Service) handleSubscriptionDeleted(evt *Event) error {
	sub, err := evt.Subscription()
	if err != nil {
		return err
	}

	var user *models.User
	if userID := strings.TrimSpace(sub.Metadata.UserID); userID != "" {
		user, err = s.repo.GetUser(userID)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
	}
	if user == nil {
		if customer := strings.TrimSpace(sub.Customer); customer != "" {
			user, err = s.repo.GetUserByBillingCustomerID(customer)
			if err != nil && !errors.Is(err, apperr.ErrNotFound) {
				return err
			}
		}
	}
	if user == nil {
		log.Warnf("billing: subscription %s deleted but no matching user found", sub.ID)
		return nil
	}

	// Downgrade is idempotent: replays find the user already on the free
	// plan with the subscription reference cleared. The customer id stays so
	// a later re-subscribe reuses the provider customer.
	fields := map[string]interface{}{
		"plan":                    string(entitlements.PlanFree),
		"billing_subscription_id": nil,
	}
	if err := s.repo.UpdateUserBilling(user.ID, fields); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil
		}
		return err
	}
	log.Infof("billing: user %s downgraded to free plan, subscription %s ended", user.ID, sub.ID)
	return nil
}

// CreateCheckout starts a checkout session for the requested paid plan.
func (s *Service) CreateCheckout(ctx context.Context, userID string, plan entitlements.Plan) (*CheckoutSession, error) {
	if plan != entitlements.PlanPro && plan != entitlements.PlanPremium {
		return nil, apperr.Validation("plan %q is not purchasable", plan)
	}
	priceID, ok := s.prices.PriceFor(plan)
	if !ok {
		return nil, fmt.Errorf("no price configured for plan %s", plan)
	}

	user, err := s.repo.GetUser(userID)
	if err != nil {
		return nil, err
	}
	current := entitlements.NormalizePlan(user.Plan)
	if current == plan {
		return nil, apperr.Validation("already subscribed to plan %q", plan)
	}
	if entitlements.Rank(plan) < entitlements.Rank(current) {
		return nil, apperr.Validation("plan %q is below the current plan %q, cancel instead", plan, current)
	}

	params := CheckoutSessionParams{
		UserID:     userID,
		Plan:       plan,
		PriceID:    priceID,
		SuccessURL: s.successURL,
		CancelURL:  s.cancelURL,
	}
	if user.BillingCustomerID != nil {
		params.CustomerID = *user.BillingCustomerID
	}
	return s.provider.CreateCheckoutSession(ctx, params)
}

// Cancel ends the user's paid subscription and downgrades them to the free
// plan. Provider-side absence of the subscription counts as already done.
func (s *Service) Cancel(ctx context.Context, userID string) error {
	user, err := s.repo.GetUser(userID)
	if err != nil {
		return err
	}
	if entitlements.NormalizePlan(user.Plan) == entitlements.PlanFree {
		return apperr.Validation("no active subscription to cancel")
	}

	if user.BillingSubscriptionID != nil && strings.TrimSpace(*user.BillingSubscriptionID) != "" {
		subID := *user.BillingSubscriptionID
		sub, err := s.provider.GetSubscription(ctx, subID)
		switch {
		case errors.Is(err, ErrProviderNotFound):
			// Gone upstream: nothing left to cancel, just reconcile locally.
		case err != nil:
			// Ambiguous provider failure: keep local state untouched so a
			// retry or the eventual webhook settles it.
			return err
		case sub.Status == SubscriptionStatusCanceled:
			log.Infof("billing: subscription %s already canceled upstream, reconciling user %s", subID, userID)
		default:
			if _, err := s.provider.CancelSubscription(ctx, subID); err != nil && !errors.Is(err, ErrProviderNotFound) {
				return err
			}
		}
	} else {
		log.Warnf("billing: user %s on plan %s has no stored subscription id, downgrading locally", userID, user.Plan)
	}

	return s.repo.UpdateUserBilling(userID, map[string]interface{}{
		"plan":                    string(entitlements.PlanFree),
		"billing_subscription_id": nil,
	})
}

// Resync re-reads the user's subscription from the provider and repairs the
// local plan. Useful when a webhook delivery was lost.
func (s *Service) Resync(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.GetUser(userID)
	if err != nil {
		return nil, err
	}

	var sub *Subscription
	if user.BillingSubscriptionID != nil && strings.TrimSpace(*user.BillingSubscriptionID) != "" {
		sub, err = s.provider.GetSubscription(ctx, *user.BillingSubscriptionID)
		if err != nil && !errors.Is(err, ErrProviderNotFound) {
			return nil, err
		}
	}
	if sub == nil && user.BillingCustomerID != nil && strings.TrimSpace(*user.BillingCustomerID) != "" {
		subs, err := s.provider.ListActiveSubscriptions(ctx, *user.BillingCustomerID)
		if err != nil && !errors.Is(err, ErrProviderNotFound) {
			return nil, err
		}
		if len(subs) > 0 {
			sub = &subs[0]
		}
	}

	fields := map[string]interface{}{}
	if sub == nil || (sub.Status != SubscriptionStatusActive && sub.Status != SubscriptionStatusTrialing) {
		fields["plan"] = string(entitlements.PlanFree)
		fields["billing_subscription_id"] = nil
	} else {
		var plan entitlements.Plan
		if raw := sub.Metadata.Plan; entitlements.KnownPlan(raw) {
			plan = entitlements.NormalizePlan(raw)
		} else if mapped, ok := s.prices.PlanFor(sub.PriceID()); ok {
			plan = mapped
		} else {
			plan = entitlements.PlanPro
		}
		fields["plan"] = string(plan)
		fields["billing_subscription_id"] = sub.ID
		if customer := strings.TrimSpace(sub.Customer); customer != "" {
			fields["billing_customer_id"] = customer
		}
	}

	if err := s.repo.UpdateUserBilling(userID, fields); err != nil {
		return nil, err
	}
	return s.repo.GetUser(userID)
}

// VerifySignatureAndParse checks the delivery signature and decodes the
// envelope. An invalid signature yields apperr.ErrInvalidCredential.
func VerifySignatureAndParse(payload []byte, signatureHeader, webhookSecret string) (*Event, error) {
	if !VerifyWebhookSignature(payload, signatureHeader, webhookSecret) {
		return nil, fmt.Errorf("%w: webhook signature verification failed", apperr.ErrInvalidCredential)
	}
	return ParseEvent(payload)
}
