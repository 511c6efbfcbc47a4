package billing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/blockforge/blockforge/app/models"
	"github.com/blockforge/blockforge/internal/pkg/paddle"
)

// fakeRepository is an in-memory Repository with the same conflict semantics
// as the GORM implementation: subscriptions are keyed by (provider, external
// id) and an upsert never reassigns user_id.
type fakeRepository struct {
	users         map[uint]*models.User
	subscriptions map[string]*models.Subscription
	settings      map[uint]*models.UserSettings
	transactions  map[string]*models.Transaction
	webhookEvents map[string]*models.WebhookEvent
	nextID        uint

	failWith error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		users:         make(map[uint]*models.User),
		subscriptions: make(map[string]*models.Subscription),
		settings:      make(map[uint]*models.UserSettings),
		transactions:  make(map[string]*models.Transaction),
		webhookEvents: make(map[string]*models.WebhookEvent),
	}
}

func (r *fakeRepository) addUser(id uint, email string) *models.User {
	u := &models.User{ID: id, Name: fmt.Sprintf("user-%d", id), Email: email}
	r.users[id] = u
	return u
}

func subKey(provider, externalID string) string {
	return provider + "/" + externalID
}

func (r *fakeRepository) FindUserByRef(ref string) (*models.User, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	for _, u := range r.users {
		if fmt.Sprintf("%d", u.ID) == ref || u.Email == ref {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepository) FindUserByID(id uint) (*models.User, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepository) FindSubscriptionByExternalID(provider, externalID string) (*models.Subscription, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	if sub, ok := r.subscriptions[subKey(provider, externalID)]; ok {
		copied := *sub
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepository) UpsertSubscription(sub *models.Subscription) error {
	if r.failWith != nil {
		return r.failWith
	}
	key := subKey(sub.Provider, sub.ProviderSubscriptionID)
	if existing, ok := r.subscriptions[key]; ok {
		existing.ProviderPriceRef = sub.ProviderPriceRef
		existing.InternalPlan = sub.InternalPlan
		existing.Status = sub.Status
		existing.CurrentPeriodEnd = sub.CurrentPeriodEnd
		existing.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
		existing.RawPayloadJSON = sub.RawPayloadJSON
		*sub = *existing
		return nil
	}
	r.nextID++
	sub.ID = r.nextID
	copied := *sub
	r.subscriptions[key] = &copied
	return nil
}

func (r *fakeRepository) UpdateSubscriptionByExternalID(provider, externalID string, updates map[string]interface{}) (int64, error) {
	if r.failWith != nil {
		return 0, r.failWith
	}
	sub, ok := r.subscriptions[subKey(provider, externalID)]
	if !ok {
		return 0, nil
	}
	if v, ok := updates["status"]; ok {
		sub.Status = v.(string)
	}
	if v, ok := updates["cancel_at_period_end"]; ok {
		sub.CancelAtPeriodEnd = v.(bool)
	}
	if v, ok := updates["current_period_end"]; ok {
		sub.CurrentPeriodEnd = v.(*time.Time)
	}
	if v, ok := updates["raw_payload_json"]; ok {
		sub.RawPayloadJSON = v.(string)
	}
	return 1, nil
}

func (r *fakeRepository) ListSubscriptionsByUser(userID uint) ([]models.Subscription, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	var out []models.Subscription
	for _, sub := range r.subscriptions {
		if sub.UserID == userID {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (r *fakeRepository) GetOrCreateUserSettings(userID uint) (*models.UserSettings, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	if us, ok := r.settings[userID]; ok {
		copied := *us
		return &copied, nil
	}
	us := &models.UserSettings{UserID: userID, Plan: PlanFree}
	r.settings[userID] = us
	copied := *us
	return &copied, nil
}

func (r *fakeRepository) SaveUserSettings(us *models.UserSettings) error {
	if r.failWith != nil {
		return r.failWith
	}
	copied := *us
	r.settings[us.UserID] = &copied
	return nil
}

func (r *fakeRepository) CreateTransactionIfNotExists(txn *models.Transaction) (bool, error) {
	if r.failWith != nil {
		return false, r.failWith
	}
	key := subKey(txn.Provider, txn.ProviderTransactionID)
	if _, ok := r.transactions[key]; ok {
		return false, nil
	}
	copied := *txn
	r.transactions[key] = &copied
	return true, nil
}

func (r *fakeRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	if r.failWith != nil {
		return false, nil, r.failWith
	}
	key := subKey(event.Provider, event.ProviderEventID)
	if stored, ok := r.webhookEvents[key]; ok {
		copied := *stored
		return false, &copied, nil
	}
	r.nextID++
	event.ID = r.nextID
	copied := *event
	r.webhookEvents[key] = &copied
	returned := copied
	return true, &returned, nil
}

func (r *fakeRepository) MarkWebhookProcessed(id uint, processingError string) error {
	if r.failWith != nil {
		return r.failWith
	}
	for _, ev := range r.webhookEvents {
		if ev.ID == id {
			now := time.Now()
			ev.ProcessedAt = &now
			ev.ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeRepository) RecordWebhookError(id uint, processingError string) error {
	if r.failWith != nil {
		return r.failWith
	}
	for _, ev := range r.webhookEvents {
		if ev.ID == id {
			ev.ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type fakeNotifier struct {
	notified chan string
}

func (n *fakeNotifier) NotifyPaymentFailed(user *models.User, transactionID string) error {
	n.notified <- fmt.Sprintf("%d/%s", user.ID, transactionID)
	return nil
}

func testPlanMap() PlanMap {
	return ParsePlanMap("pri_pro_monthly=pro,pri_team_monthly=team")
}

func newTestService(repo *fakeRepository) *Service {
	return NewService(repo, testPlanMap(), nil)
}

func subscriptionEvent(t *testing.T, eventType, subID, status, userRef, priceID string) *paddle.Event {
	t.Helper()
	custom := ""
	if userRef != "" {
		custom = fmt.Sprintf(`"custom_data": {"user_id": %q},`, userRef)
	}
	raw := []byte(fmt.Sprintf(`{
		"event_id": "evt_%s_%s",
		"event_type": %q,
		"data": {
			"id": %q,
			"status": %q,
			%s
			"items": [{"price": {"id": %q}}],
			"next_billed_at": "2026-04-01T00:00:00Z"
		}
	}`, eventType, subID, eventType, subID, status, custom, priceID))
	ev, err := paddle.ParseEvent(raw)
	require.NoError(t, err)
	return ev
}

func transactionEvent(t *testing.T, eventType, txnID, subID, userRef string) *paddle.Event {
	t.Helper()
	custom := ""
	if userRef != "" {
		custom = fmt.Sprintf(`"custom_data": {"user_id": %q},`, userRef)
	}
	raw := []byte(fmt.Sprintf(`{
		"event_id": "evt_%s",
		"event_type": %q,
		"data": {
			"id": %q,
			"subscription_id": %q,
			%s
			"details": {"totals": {"total": "2900", "currency_code": "EUR"}},
			"billed_at": "2026-03-01T10:00:00Z"
		}
	}`, txnID, eventType, txnID, subID, custom))
	ev, err := paddle.ParseEvent(raw)
	require.NoError(t, err)
	return ev
}

func TestHandleSubscriptionCreated(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser(42, "alice@example.com")
	svc := newTestService(repo)

	ev := subscriptionEvent(t, "subscription.created", "sub_123", "active", "42", "pri_pro_monthly")
	res := svc.HandleSubscriptionCreated(context.Background(), ev)
	require.True(t, res.Success(), "handler failed: %v", res.Error())

	sub := repo.subscriptions[subKey("paddle", "sub_123")]
	require.NotNil(t, sub)
	assert.Equal(t, uint(42), sub.UserID)
	assert.Equal(t, PlanPro, sub.InternalPlan)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, "pri_pro_monthly", sub.ProviderPriceRef)
	require.NotNil(t, sub.CurrentPeriodEnd)

	// Reconciliation promoted the user's effective plan.
	assert.Equal(t, PlanPro, repo.settings[42].Plan)
}

func TestHandleSubscriptionCreated_Replay(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser(42, "alice@example.com")
	svc := newTestService(repo)

	ev := subscriptionEvent(t, "subscription.created", "sub_123", "active", "42", "pri_pro_monthly")
	require.True(t, svc.HandleSubscriptionCreated(context.Background(), ev).Success())
	require.True(t, svc.HandleSubscriptionCreated(context.Background(), ev).Success())

	assert.Len(t, repo.subscriptions, 1)
	assert.Equal(t, PlanPro, repo.settings[42].Plan)
}

func TestHandleSubscriptionCreated_UserByEmail(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser(7, "bob@example.com")
	svc := newTestService(repo)

	ev := subscriptionEvent(t, "subscription.created", "sub_9", "active", "bob@example.com", "pri_team_monthly")
	require.True(t, svc.HandleSubscriptionCreated(context.Background(), ev).Success())

	sub := repo.subscriptions[subKey("paddle", "sub_9")]
	require.NotNil(t, sub)
	assert.Equal(t, uint(7), sub.UserID)
	assert.Equal(t, PlanTeam, sub.InternalPlan)
}

func TestHandleSubscriptionCreated_UnmappedPriceIsFree(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser(42, "alice@example.com")
	svc := newTestService(repo)

	ev := subscriptionEvent(t, "subscription.created", "sub_new", "active", "42", "pri_not_configured")
	require.True(t, svc.HandleSubscriptionCreated(context.Background(), ev).Success())

	sub := repo.subscriptions[subKey("paddle", "sub_new")]
	require.NotNil(t, sub)
	assert.Equal(t, PlanFree, sub.InternalPlan)
	assert.Equal(t, PlanFree, repo.settings[42].Plan)
}

func TestHandleSubscriptionCreated_MissingUserRef(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo)

	ev := subscriptionEvent(t, "subscription.created", "sub_123", "active", "", "pri_pro_monthly")
	res := svc.HandleSubscriptionCreated(context.Background(), ev)
	assert.True(t, res.Failure())
	assert.False(t, res.Retryable, "a payload defect is not transient")
	assert.Empty(t, repo.subscriptions)
}

func TestHandleSubscriptionCreated_UnknownUser(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo)

	ev := subscriptionEvent(t, "subscription.created", "sub_123", "active", "999", "pri_pro_monthly")
	res := svc.HandleSubscriptionCreated(context.Background(), ev)
	assert.True(t, res.Failure())
	assert.False(t, res.Retryable)
}

func TestHandleSubscriptionCreated_DatastoreError(t *testing.T) {
	repo := newFakeRepository()
	repo.failWith = errors.New("connection refused")
	svc := newTestService(repo)

	ev := subscriptionEvent(t, "subscription.created", "sub_123", "active", "42", "pri_pro_monthly")
	res := svc.HandleSubscriptionCreated(context.Background(), ev)
	assert.True(t, res.Failure())
	assert.True(t, res.Retryable, "datastore failures must surface for provider retry")
}

func TestHandleSubscriptionUpdated_NeverReassignsUser(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser(42, "alice@example.com")
	repo.addUser(43, "mallory@example.com")
	svc := newTestService(repo)

	created := subscriptionEvent(t, "subscription.created", "sub_123", "active", "42", "pri_pro_monthly")
	require.True(t, svc.HandleSubscriptionCreated(context.Background(), created).Success())

	// An update whose metadata names a different user must not rebind the row.
	updated := subscriptionEvent(t, "subscription.updated", "sub_123", "active", "43", "pri_team_monthly")
	require.True(t, svc.HandleSubscriptionUpdated(context.Background(), updated).Success())

	sub := repo.subscriptions[subKey("paddle", "sub_123")]
	require.NotNil(t, sub)
	assert.Equal(t, uint(42), sub.UserID)
	assert.Equal(t, PlanTeam, sub.InternalPlan)
	assert.Equal(t, PlanTeam, repo.settings[42].Plan)
}

func TestHandleSubscriptionUpdated_OutOfOrderEstablishesRow(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser(42, "alice@example.com")
	svc := newTestService(repo)

	// The update arrives before created; the user reference lets it
	// establish the row with the same result.
	ev := subscriptionEvent(t, "subscription.updated", "sub_777", "active", "42", "pri_pro_monthly")
	require.True(t, svc.HandleSubscriptionUpdated(context.Background(), ev).Success())

	sub := repo.subscriptions[subKey("paddle", "sub_777")]
	require.NotNil(t, sub)
	assert.Equal(t, uint(42), sub.UserID)
	assert.Equal(t, PlanPro, repo.settings[42].Plan)
}

func TestHandleSubscriptionUpdated_UnknownWithoutRefIsDropped(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo)

	ev := subscriptionEvent(t, "subscription.updated", "sub_nobody", "active", "", "pri_pro_monthly")
	res := svc.HandleSubscriptionUpdated(context.Background(), ev)
	assert.True(t, res.Success(), "dropping an unmatchable update is not a failure")
	assert.Empty(t, repo.subscriptions)
}

func TestHandleSubscriptionCanceled(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser(42, "alice@example.com")
	svc := newTestService(repo)

	created := subscriptionEvent(t, "subscription.created", "sub_123", "active", "42", "pri_pro_monthly")
	require.True(t, svc.HandleSubscriptionCreated(context.Background(), created).Success())
	require.Equal(t, PlanPro, repo.settings[42].Plan)

	canceled := subscriptionEvent(t, "subscription.canceled", "sub_123", "canceled", "", "pri_pro_monthly")
	require.True(t, svc.HandleSubscriptionCanceled(context.Background(), canceled).Success())

	sub := repo.subscriptions[subKey("paddle", "sub_123")]
	require.NotNil(t, sub)
	assert.Equal(t, models.SubscriptionStatusCanceled, sub.Status)
	assert.Equal(t, PlanFree, repo.settings[42].Plan, "losing the only entitling subscription reverts to free")
}

func TestHandleSubscriptionCanceled_BeforeCreatedIsNoOp(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo)

	ev := subscriptionEvent(t, "subscription.canceled", "sub_ghost", "canceled", "", "pri_pro_monthly")
	res := svc.HandleSubscriptionCanceled(context.Background(), ev)
	assert.True(t, res.Success())
	assert.Empty(t, repo.subscriptions)
	assert.Empty(t, repo.settings)
}

func TestReconcileUserPlan_BestEntitlingWins(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser(42, "alice@example.com")
	repo.subscriptions[subKey("paddle", "sub_a")] = &models.Subscription{
		ID: 1, UserID: 42, Provider: "paddle", ProviderSubscriptionID: "sub_a",
		InternalPlan: PlanPro, Status: models.SubscriptionStatusActive,
	}
	repo.subscriptions[subKey("paddle", "sub_b")] = &models.Subscription{
		ID: 2, UserID: 42, Provider: "paddle", ProviderSubscriptionID: "sub_b",
		InternalPlan: PlanTeam, Status: models.SubscriptionStatusCanceled,
	}
	svc := newTestService(repo)

	plan, err := svc.ReconcileUserPlan(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, PlanPro, plan, "a canceled team subscription must not entitle")
	assert.Equal(t, PlanPro, repo.settings[42].Plan)
}

func TestReconcileUserPlan_TrialingEntitles(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser(42, "alice@example.com")
	repo.subscriptions[subKey("paddle", "sub_t")] = &models.Subscription{
		ID: 1, UserID: 42, Provider: "paddle", ProviderSubscriptionID: "sub_t",
		InternalPlan: PlanTeam, Status: models.SubscriptionStatusTrialing,
	}
	svc := newTestService(repo)

	plan, err := svc.ReconcileUserPlan(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, PlanTeam, plan)
}

func TestHandleTransactionCompleted(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser(42, "alice@example.com")
	svc := newTestService(repo)

	ev := transactionEvent(t, "transaction.completed", "txn_456", "sub_123", "42")
	require.True(t, svc.HandleTransactionCompleted(context.Background(), ev).Success())

	txn := repo.transactions[subKey("paddle", "txn_456")]
	require.NotNil(t, txn)
	assert.Equal(t, models.TransactionStatusCompleted, txn.Status)
	assert.Equal(t, uint(42), txn.UserID)
	assert.Equal(t, "2900", txn.AmountTotal)
	assert.Equal(t, "EUR", txn.Currency)

	// Redelivery appends nothing.
	require.True(t, svc.HandleTransactionCompleted(context.Background(), ev).Success())
	assert.Len(t, repo.transactions, 1)
}

func TestHandleTransactionCompleted_UserViaSubscription(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser(42, "alice@example.com")
	repo.subscriptions[subKey("paddle", "sub_123")] = &models.Subscription{
		ID: 1, UserID: 42, Provider: "paddle", ProviderSubscriptionID: "sub_123",
		InternalPlan: PlanPro, Status: models.SubscriptionStatusActive,
	}
	svc := newTestService(repo)

	ev := transactionEvent(t, "transaction.completed", "txn_789", "sub_123", "")
	require.True(t, svc.HandleTransactionCompleted(context.Background(), ev).Success())

	txn := repo.transactions[subKey("paddle", "txn_789")]
	require.NotNil(t, txn)
	assert.Equal(t, uint(42), txn.UserID)
}

func TestHandleTransactionPaymentFailed_Notifies(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser(42, "alice@example.com")
	notifier := &fakeNotifier{notified: make(chan string, 1)}
	svc := NewService(repo, testPlanMap(), notifier)

	ev := transactionEvent(t, "transaction.payment_failed", "txn_fail", "sub_123", "42")
	require.True(t, svc.HandleTransactionPaymentFailed(context.Background(), ev).Success())

	txn := repo.transactions[subKey("paddle", "txn_fail")]
	require.NotNil(t, txn)
	assert.Equal(t, models.TransactionStatusFailed, txn.Status)

	select {
	case got := <-notifier.notified:
		assert.Equal(t, "42/txn_fail", got)
	case <-time.After(2 * time.Second):
		t.Fatalf("expected payment failure notification")
	}
}

func TestHandleTransactionPaymentFailed_RedeliveryDoesNotRenotify(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser(42, "alice@example.com")
	notifier := &fakeNotifier{notified: make(chan string, 2)}
	svc := NewService(repo, testPlanMap(), notifier)

	ev := transactionEvent(t, "transaction.payment_failed", "txn_fail", "sub_123", "42")
	require.True(t, svc.HandleTransactionPaymentFailed(context.Background(), ev).Success())

	select {
	case got := <-notifier.notified:
		assert.Equal(t, "42/txn_fail", got)
	case <-time.After(2 * time.Second):
		t.Fatalf("expected payment failure notification")
	}

	// The redelivery dedupes on the transaction ID; the user must not get a
	// second email.
	require.True(t, svc.HandleTransactionPaymentFailed(context.Background(), ev).Success())
	assert.Len(t, repo.transactions, 1)
	select {
	case got := <-notifier.notified:
		t.Fatalf("unexpected second notification %q", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHandleTransactionPaymentFailed_NoUserSkipsNotification(t *testing.T) {
	repo := newFakeRepository()
	notifier := &fakeNotifier{notified: make(chan string, 1)}
	svc := NewService(repo, testPlanMap(), notifier)

	ev := transactionEvent(t, "transaction.payment_failed", "txn_orphan", "", "")
	require.True(t, svc.HandleTransactionPaymentFailed(context.Background(), ev).Success())

	select {
	case got := <-notifier.notified:
		t.Fatalf("unexpected notification %q", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRecordWebhookEvent(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	created, stored, err := svc.RecordWebhookEvent(ctx, WebhookEventInput{
		Provider:        "paddle",
		ProviderEventID: "evt_001",
		EventType:       "subscription.created",
		PayloadJSON:     `{"event_id":"evt_001"}`,
		SignatureValid:  true,
	})
	require.NoError(t, err)
	assert.True(t, created)
	require.NotNil(t, stored)
	assert.NotZero(t, stored.ID)

	created, dup, err := svc.RecordWebhookEvent(ctx, WebhookEventInput{
		Provider:        "paddle",
		ProviderEventID: "evt_001",
		EventType:       "subscription.created",
		PayloadJSON:     `{"event_id":"evt_001"}`,
		SignatureValid:  true,
	})
	require.NoError(t, err)
	assert.False(t, created, "same provider event id must dedupe")
	assert.Equal(t, stored.ID, dup.ID)
}

func TestRecordWebhookError_LeavesEventUnprocessed(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	created, stored, err := svc.RecordWebhookEvent(ctx, WebhookEventInput{
		Provider:        "paddle",
		ProviderEventID: "evt_transient",
		EventType:       "subscription.created",
		PayloadJSON:     `{"event_id":"evt_transient"}`,
		SignatureValid:  true,
	})
	require.NoError(t, err)
	require.True(t, created)

	require.NoError(t, svc.RecordWebhookError(ctx, stored.ID, errors.New("connection refused")))

	ev := repo.webhookEvents[subKey("paddle", "evt_transient")]
	require.NotNil(t, ev)
	assert.Equal(t, "connection refused", ev.ProcessingError)
	assert.Nil(t, ev.ProcessedAt, "a transient failure must keep the event eligible for redelivery")
}

func TestRecordWebhookEvent_HashFallbackID(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	in := WebhookEventInput{
		Provider:    "paddle",
		EventType:   "transaction.completed",
		PayloadJSON: `{"data":{"id":"txn_1"}}`,
	}
	created, stored, err := svc.RecordWebhookEvent(ctx, in)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Contains(t, stored.ProviderEventID, "hash:")

	// The same body without an event id hashes to the same dedupe key.
	created, _, err = svc.RecordWebhookEvent(ctx, in)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestDispatch(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser(42, "alice@example.com")
	svc := newTestService(repo)
	ctx := context.Background()

	ev := subscriptionEvent(t, "subscription.created", "sub_123", "active", "42", "pri_pro_monthly")
	handled, res := svc.Dispatch(ctx, ev)
	assert.True(t, handled)
	assert.True(t, res.Success())

	unknown, err := paddle.ParseEvent([]byte(`{"event_type":"adjustment.created","data":{}}`))
	require.NoError(t, err)
	handled, res = svc.Dispatch(ctx, unknown)
	assert.False(t, handled, "unrecognized event types are ignored, not errors")
	assert.True(t, res.Success())
}

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "active", want: models.SubscriptionStatusActive},
		{in: "trialing", want: models.SubscriptionStatusTrialing},
		{in: "past_due", want: models.SubscriptionStatusPastDue},
		{in: "canceled", want: models.SubscriptionStatusCanceled},
		{in: "cancelled", want: models.SubscriptionStatusCanceled},
		{in: "", want: models.SubscriptionStatusActive},
		{in: "paused", want: models.SubscriptionStatusInactive},
	}
	for _, tt := range tests {
		if got := normalizeStatus(tt.in); got != tt.want {
			t.Fatalf("normalizeStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// Full lifecycle: checkout, upgrade, cancellation.
func TestSubscriptionLifecycle(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser(42, "alice@example.com")
	svc := newTestService(repo)
	ctx := context.Background()

	created := subscriptionEvent(t, "subscription.created", "sub_life", "active", "42", "pri_pro_monthly")
	require.True(t, svc.HandleSubscriptionCreated(ctx, created).Success())
	assert.Equal(t, PlanPro, repo.settings[42].Plan)

	upgraded := subscriptionEvent(t, "subscription.updated", "sub_life", "active", "", "pri_team_monthly")
	require.True(t, svc.HandleSubscriptionUpdated(ctx, upgraded).Success())
	assert.Equal(t, PlanTeam, repo.settings[42].Plan)

	canceled := subscriptionEvent(t, "subscription.canceled", "sub_life", "canceled", "", "pri_team_monthly")
	require.True(t, svc.HandleSubscriptionCanceled(ctx, canceled).Success())
	assert.Equal(t, PlanFree, repo.settings[42].Plan)

	// Replaying the cancellation changes nothing.
	require.True(t, svc.HandleSubscriptionCanceled(ctx, canceled).Success())
	assert.Equal(t, PlanFree, repo.settings[42].Plan)
	assert.Len(t, repo.subscriptions, 1)
}
