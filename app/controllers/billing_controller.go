package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/vitrine-app/vitrine/internal/pkg/apperr"
	"github.com/vitrine-app/vitrine/internal/pkg/billing"
	"github.com/vitrine-app/vitrine/internal/pkg/entitlements"
	"github.com/vitrine-app/vitrine/internal/pkg/env"
	"github.com/vitrine-app/vitrine/internal/pkg/usercontext"
)

type checkoutRequest struct {
	Plan string `json:"plan"`
}

// HandleListPlans returns the static plan catalog with limits and prices.
func HandleListPlans(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"plans": entitlements.Definitions()})
}

// HandleCreateCheckout starts a provider checkout session for a paid plan
// upgrade and returns the redirect URL.
func HandleCreateCheckout(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, apperr.Validation("invalid request body"))
	}
	if !entitlements.KnownPlan(req.Plan) {
		return respondError(c, apperr.Validation("unknown plan %q", req.Plan))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	session, err := billingService.CreateCheckout(ctx, userCtx.UserID, entitlements.NormalizePlan(req.Plan))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"checkout_url": session.URL,
		"session_id":   session.ID,
	})
}

// HandleCancelSubscription cancels the seller's paid subscription and
// downgrades to the free plan.
func HandleCancelSubscription(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := billingService.Cancel(ctx, userCtx.UserID); err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"plan": string(entitlements.PlanFree)})
}

// HandleBillingResync re-reads the subscription from the provider and
// repairs the local plan. Covers lost webhook deliveries.
func HandleBillingResync(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	user, err := billingService.Resync(ctx, userCtx.UserID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"plan": user.Plan})
}

// HandleBillingWebhook receives signed provider events. Every delivery is
// stored before processing; replays of completed deliveries are acknowledged
// without reprocessing, while retries of failed ones run the handlers again.
func HandleBillingWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("Billing-Signature"))
	secret := env.GetEnv("BILLING_WEBHOOK_SECRET", "")

	signatureValid := billing.VerifyWebhookSignature(rawBody, signature, secret)

	evt, err := billing.ParseEvent(rawBody)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	created, err := billingService.RecordWebhookEvent(evt, rawBody, signatureValid)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	if !created {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}
	if !signatureValid {
		billingService.MarkWebhookProcessed(evt, rawBody, errors.New("invalid webhook signature"))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	handleErr := billingService.HandleEvent(ctx, evt)
	billingService.MarkWebhookProcessed(evt, rawBody, handleErr)
	if handleErr != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "event_processing_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}
