package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/blockforge/blockforge/app/models"
	"github.com/blockforge/blockforge/internal/pkg/paddle"
	"gorm.io/gorm"
)

// Service reconciles Paddle webhook events against local billing state.
// Every handler is idempotent: the provider delivers at least once, out of
// order, and always with the full current state of the object.
type Service struct {
	repo     Repository
	plans    PlanMap
	notifier Notifier
}

// NewService creates a billing service from injected collaborators.
func NewService(repo Repository, plans PlanMap, notifier Notifier) *Service {
	return &Service{repo: repo, plans: plans, notifier: notifier}
}

// NewServiceFromDB creates a billing service from a GORM DB handle with the
// env-configured plan map and the SMTP notifier.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db), LoadPlanMapFromEnv(), NewSMTPNotifier())
}

// RecordWebhookEvent persists webhook payloads idempotently. The returned
// bool is false when the delivery was already recorded.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.WebhookEvent, error) {
	_ = ctx
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.WebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}

// RecordWebhookError stores a handler error on the event without marking it
// processed. The event stays eligible for re-dispatch when the provider
// redelivers it after a non-2xx response.
func (s *Service) RecordWebhookError(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.RecordWebhookError(webhookEventID, errMsg)
}

// HandleSubscriptionCreated locates the local user from checkout metadata and
// upserts the subscription keyed on the external subscription ID. Replaying
// the same event is a no-op.
func (s *Service) HandleSubscriptionCreated(ctx context.Context, ev *paddle.Event) Result {
	data := ev.Subscription
	if data == nil || strings.TrimSpace(data.ID) == "" {
		return Failed(errors.New("subscription payload is missing id"))
	}

	userRef := data.CustomData.UserRef()
	if userRef == "" {
		return Failed(fmt.Errorf("subscription %s carries no user reference", data.ID))
	}
	user, err := s.repo.FindUserByRef(userRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Failed(fmt.Errorf("no local user for reference %q (subscription %s)", userRef, data.ID))
		}
		return FailedRetryable(err)
	}

	return s.upsertFromPayload(ctx, ev, user.ID)
}

// HandleSubscriptionUpdated applies the full current state by external ID.
// When no row exists yet but the payload carries a user reference, the update
// establishes the row exactly like a created event (out-of-order tolerance);
// otherwise it is dropped with a logged reason.
func (s *Service) HandleSubscriptionUpdated(ctx context.Context, ev *paddle.Event) Result {
	data := ev.Subscription
	if data == nil || strings.TrimSpace(data.ID) == "" {
		return Failed(errors.New("subscription payload is missing id"))
	}

	existing, err := s.repo.FindSubscriptionByExternalID(models.BillingProviderPaddle, data.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return FailedRetryable(err)
	}

	if existing != nil {
		return s.upsertFromPayload(ctx, ev, existing.UserID)
	}

	if ref := data.CustomData.UserRef(); ref != "" {
		user, err := s.repo.FindUserByRef(ref)
		if err == nil {
			return s.upsertFromPayload(ctx, ev, user.ID)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return FailedRetryable(err)
		}
	}

	log.Printf("billing: dropping %s for unknown subscription %s (no local row, no user reference)", ev.Type, data.ID)
	return OK()
}

// HandleSubscriptionCanceled transitions the row to canceled. Cancellation is
// a status change, never a row removal; a missing row is a safe no-op.
func (s *Service) HandleSubscriptionCanceled(ctx context.Context, ev *paddle.Event) Result {
	data := ev.Subscription
	if data == nil || strings.TrimSpace(data.ID) == "" {
		return Failed(errors.New("subscription payload is missing id"))
	}

	updates := map[string]interface{}{
		"status":               models.SubscriptionStatusCanceled,
		"cancel_at_period_end": false,
		"raw_payload_json":     string(ev.Raw),
	}
	if data.CanceledAt != nil {
		updates["current_period_end"] = data.CanceledAt
	}

	affected, err := s.repo.UpdateSubscriptionByExternalID(models.BillingProviderPaddle, data.ID, updates)
	if err != nil {
		return FailedRetryable(err)
	}
	if affected == 0 {
		log.Printf("billing: %s for unknown subscription %s is a no-op", ev.Type, data.ID)
		return OK()
	}

	sub, err := s.repo.FindSubscriptionByExternalID(models.BillingProviderPaddle, data.ID)
	if err != nil {
		return FailedRetryable(err)
	}
	if _, err := s.ReconcileUserPlan(ctx, sub.UserID); err != nil {
		return FailedRetryable(err)
	}
	return OK()
}

// HandleTransactionCompleted appends an immutable ledger entry keyed by the
// external transaction ID.
func (s *Service) HandleTransactionCompleted(ctx context.Context, ev *paddle.Event) Result {
	_, res := s.recordTransaction(ctx, ev, models.TransactionStatusCompleted)
	return res
}

// HandleTransactionPaymentFailed records the failed payment and triggers a
// fire-and-forget notification to the owning user. A redelivery that dedupes
// on the transaction ID does not notify again.
func (s *Service) HandleTransactionPaymentFailed(ctx context.Context, ev *paddle.Event) Result {
	created, res := s.recordTransaction(ctx, ev, models.TransactionStatusFailed)
	if res.Failure() {
		return res
	}

	if created && s.notifier != nil && ev.Transaction != nil {
		s.notifyPaymentFailed(ev.Transaction)
	}
	return res
}

func (s *Service) recordTransaction(ctx context.Context, ev *paddle.Event, status string) (bool, Result) {
	_ = ctx
	data := ev.Transaction
	if data == nil || strings.TrimSpace(data.ID) == "" {
		return false, Failed(errors.New("transaction payload is missing id"))
	}

	userID := s.resolveTransactionUser(data)
	amount, currency := data.Totals()

	created, err := s.repo.CreateTransactionIfNotExists(&models.Transaction{
		Provider:               models.BillingProviderPaddle,
		ProviderTransactionID:  data.ID,
		ProviderSubscriptionID: strings.TrimSpace(data.SubscriptionID),
		UserID:                 userID,
		Status:                 status,
		AmountTotal:            amount,
		Currency:               currency,
		BilledAt:               data.BilledAt,
		RawPayloadJSON:         string(ev.Raw),
	})
	if err != nil {
		return false, FailedRetryable(err)
	}
	if !created {
		log.Printf("billing: transaction %s already recorded", data.ID)
	}
	return created, OK()
}

// resolveTransactionUser attaches a ledger entry to a local user when the
// payload allows it; an unresolvable user is not an error for record-keeping.
func (s *Service) resolveTransactionUser(data *paddle.TransactionData) uint {
	if ref := data.CustomData.UserRef(); ref != "" {
		if user, err := s.repo.FindUserByRef(ref); err == nil {
			return user.ID
		}
	}
	if subID := strings.TrimSpace(data.SubscriptionID); subID != "" {
		if sub, err := s.repo.FindSubscriptionByExternalID(models.BillingProviderPaddle, subID); err == nil {
			return sub.UserID
		}
	}
	return 0
}

func (s *Service) notifyPaymentFailed(data *paddle.TransactionData) {
	userID := s.resolveTransactionUser(data)
	if userID == 0 {
		log.Printf("billing: payment failure %s has no resolvable user, skipping notification", data.ID)
		return
	}
	user, err := s.repo.FindUserByID(userID)
	if err != nil {
		log.Printf("billing: loading user %d for payment failure notification: %v", userID, err)
		return
	}

	// Notification failures must never fail the webhook response.
	go func() {
		if err := s.notifier.NotifyPaymentFailed(user, data.ID); err != nil {
			log.Printf("billing: payment failure notification for user %d: %v", user.ID, err)
		}
	}()
}

func (s *Service) upsertFromPayload(ctx context.Context, ev *paddle.Event, userID uint) Result {
	data := ev.Subscription
	priceRef := data.PriceID()

	sub := &models.Subscription{
		UserID:                 userID,
		Provider:               models.BillingProviderPaddle,
		ProviderSubscriptionID: strings.TrimSpace(data.ID),
		ProviderPriceRef:       priceRef,
		InternalPlan:           s.plans.Resolve(priceRef),
		Status:                 normalizeStatus(data.Status),
		CurrentPeriodEnd:       data.PeriodEnd(),
		CancelAtPeriodEnd:      data.CancelAtPeriodEnd(),
		RawPayloadJSON:         string(ev.Raw),
	}
	if err := s.repo.UpsertSubscription(sub); err != nil {
		return FailedRetryable(err)
	}

	if _, err := s.ReconcileUserPlan(ctx, sub.UserID); err != nil {
		return FailedRetryable(err)
	}
	return OK()
}

// ReconcileUserPlan computes and writes the best effective plan for a user
// from their entitling subscriptions.
func (s *Service) ReconcileUserPlan(ctx context.Context, userID uint) (string, error) {
	_ = ctx
	if userID == 0 {
		return "", errors.New("user_id is required")
	}

	subs, err := s.repo.ListSubscriptionsByUser(userID)
	if err != nil {
		return "", err
	}

	best := PlanFree
	for _, sub := range subs {
		if !sub.IsEntitling() {
			continue
		}
		candidate := normalizePlan(sub.InternalPlan)
		if planRank(candidate) > planRank(best) {
			best = candidate
		}
	}

	us, err := s.repo.GetOrCreateUserSettings(userID)
	if err != nil {
		return "", err
	}
	if normalizePlan(us.Plan) == best {
		return best, nil
	}
	us.Plan = best
	if err := s.repo.SaveUserSettings(us); err != nil {
		return "", err
	}
	return best, nil
}

func normalizeStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case models.SubscriptionStatusActive:
		return models.SubscriptionStatusActive
	case models.SubscriptionStatusTrialing:
		return models.SubscriptionStatusTrialing
	case models.SubscriptionStatusPastDue:
		return models.SubscriptionStatusPastDue
	case models.SubscriptionStatusCanceled, "cancelled":
		return models.SubscriptionStatusCanceled
	case "":
		return models.SubscriptionStatusActive
	default:
		return models.SubscriptionStatusInactive
	}
}
