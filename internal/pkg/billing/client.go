package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vitrine-app/vitrine/internal/pkg/apperr"
	"github.com/vitrine-app/vitrine/internal/pkg/entitlements"
	"github.com/vitrine-app/vitrine/internal/pkg/env"
)

const defaultAPIBaseURL = "https://api.stripe.com/v1"

// ErrProviderNotFound marks a provider-side 404. The reconciler treats a
// missing subscription as already reconciled rather than a failure.
var ErrProviderNotFound = errors.New("billing provider resource not found")

// CheckoutSessionParams describes a checkout session for a plan upgrade. The
// metadata echo lets the webhook stream link the payment back to the user.
type CheckoutSessionParams struct {
	UserID     string
	Plan       entitlements.Plan
	PriceID    string
	CustomerID string
	SuccessURL string
	CancelURL  string
}

// Provider is the outbound billing boundary. Implemented by Client for the
// real provider and by fakes in tests.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error)
	GetSubscription(ctx context.Context, id string) (*Subscription, error)
	ListActiveSubscriptions(ctx context.Context, customerID string) ([]Subscription, error)
	CancelSubscription(ctx context.Context, id string) (*Subscription, error)
}

// Client talks to the billing provider's REST API.
type Client struct {
	SecretKey  string
	APIBaseURL string

	HTTPClient *http.Client
}

// NewClientFromEnv builds the provider client from BILLING_* configuration.
func NewClientFromEnv() *Client {
	return &Client{
		SecretKey:  strings.TrimSpace(env.GetEnv("BILLING_SECRET_KEY", "")),
		APIBaseURL: strings.TrimRight(env.GetEnv("BILLING_API_BASE_URL", defaultAPIBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreateCheckoutSession starts a subscription checkout for a paid plan.
func (c *Client) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error) {
	if strings.TrimSpace(params.PriceID) == "" {
		return nil, errors.New("price id is required")
	}
	if strings.TrimSpace(params.UserID) == "" {
		return nil, errors.New("user id is required")
	}

	form := url.Values{}
	form.Set("mode", "subscription")
	form.Set("line_items[0][price]", params.PriceID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)
	form.Set("client_reference_id", params.UserID)
	form.Set("metadata[user_id]", params.UserID)
	form.Set("metadata[plan]", string(params.Plan))
	// Mirror the linkage onto the subscription so subscription.* events can
	// resolve the user without the checkout session.
	form.Set("subscription_data[metadata][user_id]", params.UserID)
	form.Set("subscription_data[metadata][plan]", string(params.Plan))
	if cid := strings.TrimSpace(params.CustomerID); cid != "" {
		form.Set("customer", cid)
	}

	var session CheckoutSession
	if err := c.do(ctx, http.MethodPost, "/checkout/sessions", form, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetCheckoutSession retrieves a checkout session with its subscription
// expanded inline.
func (c *Client) GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("checkout session id is required")
	}
	var session CheckoutSession
	path := "/checkout/sessions/" + url.PathEscape(id) + "?expand[]=subscription"
	if err := c.do(ctx, http.MethodGet, path, nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetSubscription retrieves a subscription by id.
func (c *Client) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("subscription id is required")
	}
	var sub Subscription
	if err := c.do(ctx, http.MethodGet, "/subscriptions/"+url.PathEscape(id), nil, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListActiveSubscriptions lists the active subscriptions of a customer.
func (c *Client) ListActiveSubscriptions(ctx context.Context, customerID string) ([]Subscription, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, errors.New("customer id is required")
	}
	var out struct {
		Data []Subscription `json:"data"`
	}
	path := "/subscriptions?customer=" + url.QueryEscape(customerID) + "&status=active"
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// CancelSubscription cancels a subscription immediately.
func (c *Client) CancelSubscription(ctx context.Context, id string) (*Subscription, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("subscription id is required")
	}
	var sub Subscription
	if err := c.do(ctx, http.MethodDelete, "/subscriptions/"+url.PathEscape(id), nil, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, out interface{}) error {
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("BILLING_SECRET_KEY is not configured")
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.APIBaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrExternalProvider, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode == http.StatusNotFound {
		return ErrProviderNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s %s failed: status=%d body=%s", apperr.ErrExternalProvider, method, path, resp.StatusCode, string(raw))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: invalid response body: %v", apperr.ErrExternalProvider, err)
	}
	return nil
}
