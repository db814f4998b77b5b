package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitrine-app/vitrine/app/models"
	"github.com/vitrine-app/vitrine/internal/pkg/apperr"
	"github.com/vitrine-app/vitrine/internal/pkg/entitlements"
)

type fakeRepository struct {
	users  map[string]*models.User
	events map[string]*models.BillingWebhookEvent

	// updateErrs is consumed one entry per UpdateUserBilling call, letting
	// tests inject transient write failures.
	updateErrs []error
}

func newFakeRepository(users ...*models.User) *fakeRepository {
	repo := &fakeRepository{
		users:  map[string]*models.User{},
		events: map[string]*models.BillingWebhookEvent{},
	}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (r *fakeRepository) GetUser(id string) (*models.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *fakeRepository) GetUserByBillingCustomerID(customerID string) (*models.User, error) {
	for _, user := range r.users {
		if user.BillingCustomerID != nil && *user.BillingCustomerID == customerID {
			copied := *user
			return &copied, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (r *fakeRepository) UpdateUserBilling(userID string, fields map[string]interface{}) error {
	if len(r.updateErrs) > 0 {
		err := r.updateErrs[0]
		r.updateErrs = r.updateErrs[1:]
		if err != nil {
			return err
		}
	}
	user, ok := r.users[userID]
	if !ok {
		return apperr.ErrNotFound
	}
	for column, value := range fields {
		switch column {
		case "plan":
			user.Plan = value.(string)
		case "billing_customer_id":
			if value == nil {
				user.BillingCustomerID = nil
			} else {
				v := value.(string)
				user.BillingCustomerID = &v
			}
		case "billing_subscription_id":
			if value == nil {
				user.BillingSubscriptionID = nil
			} else {
				v := value.(string)
				user.BillingSubscriptionID = &v
			}
		}
	}
	return nil
}

func (r *fakeRepository) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, error) {
	if _, ok := r.events[event.ProviderEventID]; ok {
		return false, nil
	}
	r.events[event.ProviderEventID] = event
	return true, nil
}

func (r *fakeRepository) GetWebhookEvent(providerEventID string) (*models.BillingWebhookEvent, error) {
	event, ok := r.events[providerEventID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return event, nil
}

func (r *fakeRepository) MarkWebhookProcessed(providerEventID string, processingErr error) error {
	event, ok := r.events[providerEventID]
	if !ok {
		return apperr.ErrNotFound
	}
	if processingErr != nil {
		event.ProcessedAt = nil
		event.ProcessingError = processingErr.Error()
	} else {
		now := time.Now()
		event.ProcessedAt = &now
		event.ProcessingError = ""
	}
	return nil
}

type fakeProvider struct {
	subscriptions map[string]*Subscription
	sessions      map[string]*CheckoutSession
	active        map[string][]Subscription
	cancelErr     error
	canceled      []string
	created       *CheckoutSessionParams
}

func (p *fakeProvider) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error) {
	p.created = &params
	return &CheckoutSession{ID: "cs_new", URL: "https://billing.example/checkout/cs_new"}, nil
}

func (p *fakeProvider) GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	if session, ok := p.sessions[id]; ok {
		return session, nil
	}
	return nil, ErrProviderNotFound
}

func (p *fakeProvider) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	if sub, ok := p.subscriptions[id]; ok {
		return sub, nil
	}
	return nil, ErrProviderNotFound
}

func (p *fakeProvider) ListActiveSubscriptions(ctx context.Context, customerID string) ([]Subscription, error) {
	return p.active[customerID], nil
}

func (p *fakeProvider) CancelSubscription(ctx context.Context, id string) (*Subscription, error) {
	p.canceled = append(p.canceled, id)
	if p.cancelErr != nil {
		return nil, p.cancelErr
	}
	return &Subscription{ID: id, Status: SubscriptionStatusCanceled}, nil
}

func newTestService(repo Repository, provider Provider) *Service {
	return NewService(repo, provider, PriceTable{
		"price_pro":     entitlements.PlanPro,
		"price_premium": entitlements.PlanPremium,
	})
}

func subscriptionWithPrice(id, customer, priceID string) *Subscription {
	raw := fmt.Sprintf(`{"id":%q,"customer":%q,"status":"active","items":{"data":[{"price":{"id":%q}}]}}`, id, customer, priceID)
	var sub Subscription
	if err := json.Unmarshal([]byte(raw), &sub); err != nil {
		panic(err)
	}
	return &sub
}

func checkoutCompletedEvent(t *testing.T, eventID string, session string) *Event {
	t.Helper()
	payload := fmt.Sprintf(`{"id":%q,"type":"checkout.session.completed","data":{"object":%s}}`, eventID, session)
	evt, err := ParseEvent([]byte(payload))
	require.NoError(t, err)
	return evt
}

func subscriptionEvent(t *testing.T, eventID, eventType, subscription string) *Event {
	t.Helper()
	payload := fmt.Sprintf(`{"id":%q,"type":%q,"data":{"object":%s}}`, eventID, eventType, subscription)
	evt, err := ParseEvent([]byte(payload))
	require.NoError(t, err)
	return evt
}

func TestHandleCheckoutCompletedUpgradesUser(t *testing.T) {
	repo := newFakeRepository(&models.User{ID: "user-1", Plan: "free"})
	provider := &fakeProvider{}
	service := newTestService(repo, provider)

	evt := checkoutCompletedEvent(t, "evt_1", `{
		"id": "cs_1",
		"customer": "cus_1",
		"metadata": {"user_id": "user-1", "plan": "pro"},
		"subscription": {"id": "sub_1", "customer": "cus_1", "status": "active", "metadata": {"user_id": "user-1", "plan": "pro"}}
	}`)

	require.NoError(t, service.HandleEvent(context.Background(), evt))

	user := repo.users["user-1"]
	assert.Equal(t, "pro", user.Plan)
	require.NotNil(t, user.BillingCustomerID)
	assert.Equal(t, "cus_1", *user.BillingCustomerID)
	require.NotNil(t, user.BillingSubscriptionID)
	assert.Equal(t, "sub_1", *user.BillingSubscriptionID)
}

func TestHandleCheckoutCompletedReplayIsIdempotent(t *testing.T) {
	repo := newFakeRepository(&models.User{ID: "user-1", Plan: "free"})
	provider := &fakeProvider{}
	service := newTestService(repo, provider)

	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1","metadata":{"user_id":"user-1","plan":"pro"}}}}`)
	evt, err := ParseEvent(payload)
	require.NoError(t, err)

	inserted, err := service.RecordWebhookEvent(evt, payload, true)
	require.NoError(t, err)
	assert.True(t, inserted)
	require.NoError(t, service.HandleEvent(context.Background(), evt))
	service.MarkWebhookProcessed(evt, payload, nil)
	assert.Equal(t, "pro", repo.users["user-1"].Plan)

	// The replay of the completed delivery is detected before any handler runs.
	inserted, err = service.RecordWebhookEvent(evt, payload, true)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, "pro", repo.users["user-1"].Plan)
}

func TestWebhookRetryAfterFailedProcessingRunsHandlersAgain(t *testing.T) {
	repo := newFakeRepository(&models.User{ID: "user-1", Plan: "free"})
	repo.updateErrs = []error{errors.New("deadlock, try restarting transaction")}
	service := newTestService(repo, &fakeProvider{})

	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1","metadata":{"user_id":"user-1","plan":"pro"}}}}`)
	evt, err := ParseEvent(payload)
	require.NoError(t, err)

	// First delivery: the event row is stored but the handler fails on a
	// transient write error, so the user stays on free.
	inserted, err := service.RecordWebhookEvent(evt, payload, true)
	require.NoError(t, err)
	assert.True(t, inserted)
	handleErr := service.HandleEvent(context.Background(), evt)
	require.Error(t, handleErr)
	service.MarkWebhookProcessed(evt, payload, handleErr)
	assert.Equal(t, "free", repo.users["user-1"].Plan)

	// The provider retry must not be swallowed as a duplicate: the stored
	// row was never processed to completion.
	inserted, err = service.RecordWebhookEvent(evt, payload, true)
	require.NoError(t, err)
	assert.True(t, inserted)
	require.NoError(t, service.HandleEvent(context.Background(), evt))
	service.MarkWebhookProcessed(evt, payload, nil)
	assert.Equal(t, "pro", repo.users["user-1"].Plan)

	// Once completed, a further replay short-circuits.
	inserted, err = service.RecordWebhookEvent(evt, payload, true)
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestWebhookRetryAfterTimeoutBeforeProcessingRunsHandlers(t *testing.T) {
	repo := newFakeRepository(&models.User{ID: "user-1", Plan: "free"})
	service := newTestService(repo, &fakeProvider{})

	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1","metadata":{"user_id":"user-1","plan":"pro"}}}}`)
	evt, err := ParseEvent(payload)
	require.NoError(t, err)

	// First delivery inserted the row but timed out before HandleEvent ran:
	// no processing outcome was ever recorded.
	inserted, err := service.RecordWebhookEvent(evt, payload, true)
	require.NoError(t, err)
	assert.True(t, inserted)

	// The retry must reach the handlers.
	inserted, err = service.RecordWebhookEvent(evt, payload, true)
	require.NoError(t, err)
	assert.True(t, inserted)
	require.NoError(t, service.HandleEvent(context.Background(), evt))
	service.MarkWebhookProcessed(evt, payload, nil)
	assert.Equal(t, "pro", repo.users["user-1"].Plan)
}

func TestHandleCheckoutCompletedResolvesSubscriptionByID(t *testing.T) {
	repo := newFakeRepository(&models.User{ID: "user-1", Plan: "free"})
	provider := &fakeProvider{
		subscriptions: map[string]*Subscription{
			"sub_9": subscriptionWithPrice("sub_9", "cus_9", "price_premium"),
		},
	}
	service := newTestService(repo, provider)

	evt := checkoutCompletedEvent(t, "evt_2", `{
		"id": "cs_2",
		"metadata": {"user_id": "user-1"},
		"subscription": "sub_9"
	}`)

	require.NoError(t, service.HandleEvent(context.Background(), evt))

	user := repo.users["user-1"]
	assert.Equal(t, "premium", user.Plan)
	require.NotNil(t, user.BillingSubscriptionID)
	assert.Equal(t, "sub_9", *user.BillingSubscriptionID)
	require.NotNil(t, user.BillingCustomerID)
	assert.Equal(t, "cus_9", *user.BillingCustomerID)
}

func TestHandleCheckoutCompletedDefaultsToProWhenUnresolvable(t *testing.T) {
	repo := newFakeRepository(&models.User{ID: "user-1", Plan: "free"})
	provider := &fakeProvider{}
	service := newTestService(repo, provider)

	evt := checkoutCompletedEvent(t, "evt_3", `{
		"id": "cs_3",
		"metadata": {"user_id": "user-1"}
	}`)

	require.NoError(t, service.HandleEvent(context.Background(), evt))
	assert.Equal(t, "pro", repo.users["user-1"].Plan)
}

func TestHandleCheckoutCompletedWithoutUserIDIsNoOp(t *testing.T) {
	repo := newFakeRepository(&models.User{ID: "user-1", Plan: "free"})
	provider := &fakeProvider{}
	service := newTestService(repo, provider)

	evt := checkoutCompletedEvent(t, "evt_4", `{"id": "cs_4", "metadata": {}}`)

	require.NoError(t, service.HandleEvent(context.Background(), evt))
	assert.Equal(t, "free", repo.users["user-1"].Plan)
}

func TestHandleSubscriptionDeletedDowngradesAndIsIdempotent(t *testing.T) {
	customer := "cus_1"
	subID := "sub_1"
	repo := newFakeRepository(&models.User{
		ID:                    "user-1",
		Plan:                  "premium",
		BillingCustomerID:     &customer,
		BillingSubscriptionID: &subID,
	})
	service := newTestService(repo, &fakeProvider{})

	evt := subscriptionEvent(t, "evt_5", EventSubscriptionDeleted, `{
		"id": "sub_1",
		"customer": "cus_1",
		"status": "canceled",
		"metadata": {"user_id": "user-1"}
	}`)

	require.NoError(t, service.HandleEvent(context.Background(), evt))
	user := repo.users["user-1"]
	assert.Equal(t, "free", user.Plan)
	assert.Nil(t, user.BillingSubscriptionID)
	require.NotNil(t, user.BillingCustomerID)
	assert.Equal(t, "cus_1", *user.BillingCustomerID)

	// Replaying the same terminal event changes nothing.
	require.NoError(t, service.HandleEvent(context.Background(), evt))
	assert.Equal(t, "free", repo.users["user-1"].Plan)
	assert.Nil(t, repo.users["user-1"].BillingSubscriptionID)
}

func TestHandleSubscriptionDeletedResolvesUserByCustomer(t *testing.T) {
	customer := "cus_7"
	repo := newFakeRepository(&models.User{ID: "user-7", Plan: "pro", BillingCustomerID: &customer})
	service := newTestService(repo, &fakeProvider{})

	evt := subscriptionEvent(t, "evt_6", EventSubscriptionDeleted, `{
		"id": "sub_7",
		"customer": "cus_7",
		"status": "canceled",
		"metadata": {}
	}`)

	require.NoError(t, service.HandleEvent(context.Background(), evt))
	assert.Equal(t, "free", repo.users["user-7"].Plan)
}

func TestHandleSubscriptionDeletedUnknownUserIsNoOp(t *testing.T) {
	repo := newFakeRepository()
	service := newTestService(repo, &fakeProvider{})

	evt := subscriptionEvent(t, "evt_7", EventSubscriptionDeleted, `{
		"id": "sub_x",
		"customer": "cus_x",
		"metadata": {}
	}`)

	require.NoError(t, service.HandleEvent(context.Background(), evt))
}

func TestHandleSubscriptionCreatedUsesPriceTable(t *testing.T) {
	repo := newFakeRepository(&models.User{ID: "user-1", Plan: "free"})
	service := newTestService(repo, &fakeProvider{})

	evt := subscriptionEvent(t, "evt_8", EventSubscriptionCreated, `{
		"id": "sub_2",
		"customer": "cus_2",
		"status": "active",
		"metadata": {"user_id": "user-1"},
		"items": {"data": [{"price": {"id": "price_premium"}}]}
	}`)

	require.NoError(t, service.HandleEvent(context.Background(), evt))
	assert.Equal(t, "premium", repo.users["user-1"].Plan)
}

func TestHandleUnknownEventTypeIsAcknowledged(t *testing.T) {
	repo := newFakeRepository(&models.User{ID: "user-1", Plan: "free"})
	service := newTestService(repo, &fakeProvider{})

	evt, err := ParseEvent([]byte(`{"id":"evt_9","type":"invoice.paid","data":{"object":{}}}`))
	require.NoError(t, err)

	require.NoError(t, service.HandleEvent(context.Background(), evt))
	assert.Equal(t, "free", repo.users["user-1"].Plan)
}

func TestCancelOnFreePlanIsRejected(t *testing.T) {
	repo := newFakeRepository(&models.User{ID: "user-1", Plan: "free"})
	service := newTestService(repo, &fakeProvider{})

	err := service.Cancel(context.Background(), "user-1")
	require.Error(t, err)
	_, ok := apperr.IsValidation(err)
	assert.True(t, ok)
}

func TestCancelDowngradesWhenProviderConfirms(t *testing.T) {
	subID := "sub_1"
	repo := newFakeRepository(&models.User{ID: "user-1", Plan: "pro", BillingSubscriptionID: &subID})
	provider := &fakeProvider{subscriptions: map[string]*Subscription{
		"sub_1": subscriptionWithPrice("sub_1", "cus_1", "price_pro"),
	}}
	service := newTestService(repo, provider)

	require.NoError(t, service.Cancel(context.Background(), "user-1"))
	assert.Equal(t, []string{"sub_1"}, provider.canceled)
	assert.Equal(t, "free", repo.users["user-1"].Plan)
	assert.Nil(t, repo.users["user-1"].BillingSubscriptionID)
}

func TestCancelSkipsProviderCallWhenAlreadyCanceledUpstream(t *testing.T) {
	subID := "sub_1"
	repo := newFakeRepository(&models.User{ID: "user-1", Plan: "pro", BillingSubscriptionID: &subID})
	provider := &fakeProvider{subscriptions: map[string]*Subscription{
		"sub_1": {ID: "sub_1", Status: SubscriptionStatusCanceled},
	}}
	service := newTestService(repo, provider)

	require.NoError(t, service.Cancel(context.Background(), "user-1"))
	assert.Empty(t, provider.canceled)
	assert.Equal(t, "free", repo.users["user-1"].Plan)
}

func TestCancelTreatsProviderNotFoundAsReconciled(t *testing.T) {
	subID := "sub_gone"
	repo := newFakeRepository(&models.User{ID: "user-1", Plan: "pro", BillingSubscriptionID: &subID})
	provider := &fakeProvider{cancelErr: ErrProviderNotFound}
	service := newTestService(repo, provider)

	require.NoError(t, service.Cancel(context.Background(), "user-1"))
	assert.Equal(t, "free", repo.users["user-1"].Plan)
}

func TestCancelKeepsStateOnAmbiguousProviderError(t *testing.T) {
	subID := "sub_1"
	repo := newFakeRepository(&models.User{ID: "user-1", Plan: "pro", BillingSubscriptionID: &subID})
	provider := &fakeProvider{
		subscriptions: map[string]*Subscription{
			"sub_1": subscriptionWithPrice("sub_1", "cus_1", "price_pro"),
		},
		cancelErr: errors.New("upstream timeout"),
	}
	service := newTestService(repo, provider)

	err := service.Cancel(context.Background(), "user-1")
	require.Error(t, err)
	assert.Equal(t, "pro", repo.users["user-1"].Plan)
	require.NotNil(t, repo.users["user-1"].BillingSubscriptionID)
	assert.Equal(t, "sub_1", *repo.users["user-1"].BillingSubscriptionID)
}

func TestCancelWithoutStoredSubscriptionDowngradesLocally(t *testing.T) {
	repo := newFakeRepository(&models.User{ID: "user-1", Plan: "pro"})
	provider := &fakeProvider{}
	service := newTestService(repo, provider)

	require.NoError(t, service.Cancel(context.Background(), "user-1"))
	assert.Empty(t, provider.canceled)
	assert.Equal(t, "free", repo.users["user-1"].Plan)
}

func TestCreateCheckoutRejectsFreePlan(t *testing.T) {
	repo := newFakeRepository(&models.User{ID: "user-1", Plan: "free"})
	service := newTestService(repo, &fakeProvider{})

	_, err := service.CreateCheckout(context.Background(), "user-1", entitlements.PlanFree)
	require.Error(t, err)
	_, ok := apperr.IsValidation(err)
	assert.True(t, ok)
}

func TestCreateCheckoutRejectsCurrentPlan(t *testing.T) {
	repo := newFakeRepository(&models.User{ID: "user-1", Plan: "pro"})
	service := newTestService(repo, &fakeProvider{})

	_, err := service.CreateCheckout(context.Background(), "user-1", entitlements.PlanPro)
	require.Error(t, err)
	_, ok := apperr.IsValidation(err)
	assert.True(t, ok)
}

func TestCreateCheckoutRejectsDowngrade(t *testing.T) {
	repo := newFakeRepository(&models.User{ID: "user-1", Plan: "premium"})
	provider := &fakeProvider{}
	service := newTestService(repo, provider)

	_, err := service.CreateCheckout(context.Background(), "user-1", entitlements.PlanPro)
	require.Error(t, err)
	_, ok := apperr.IsValidation(err)
	assert.True(t, ok)
	assert.Nil(t, provider.created)
}

func TestCreateCheckoutPassesCustomerAndMetadata(t *testing.T) {
	customer := "cus_1"
	repo := newFakeRepository(&models.User{ID: "user-1", Plan: "free", BillingCustomerID: &customer})
	provider := &fakeProvider{}
	service := newTestService(repo, provider)

	session, err := service.CreateCheckout(context.Background(), "user-1", entitlements.PlanPremium)
	require.NoError(t, err)
	assert.NotEmpty(t, session.URL)
	require.NotNil(t, provider.created)
	assert.Equal(t, "user-1", provider.created.UserID)
	assert.Equal(t, entitlements.PlanPremium, provider.created.Plan)
	assert.Equal(t, "price_premium", provider.created.PriceID)
	assert.Equal(t, "cus_1", provider.created.CustomerID)
}

func TestResyncRepairsLostDowngrade(t *testing.T) {
	customer := "cus_1"
	subID := "sub_gone"
	repo := newFakeRepository(&models.User{
		ID:                    "user-1",
		Plan:                  "premium",
		BillingCustomerID:     &customer,
		BillingSubscriptionID: &subID,
	})
	// Provider no longer knows the subscription and has nothing active.
	service := newTestService(repo, &fakeProvider{})

	user, err := service.Resync(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "free", user.Plan)
	assert.Nil(t, user.BillingSubscriptionID)
}

func TestResyncRepairsLostUpgrade(t *testing.T) {
	customer := "cus_1"
	active := subscriptionWithPrice("sub_new", "cus_1", "price_pro")
	repo := newFakeRepository(&models.User{ID: "user-1", Plan: "free", BillingCustomerID: &customer})
	provider := &fakeProvider{active: map[string][]Subscription{"cus_1": {*active}}}
	service := newTestService(repo, provider)

	user, err := service.Resync(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "pro", user.Plan)
	require.NotNil(t, user.BillingSubscriptionID)
	assert.Equal(t, "sub_new", *user.BillingSubscriptionID)
}

func TestVerifySignatureAndParseRejectsBadSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{}}}`)

	_, err := VerifySignatureAndParse(payload, "t=0,v1=00", "whsec_test")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInvalidCredential))
}
