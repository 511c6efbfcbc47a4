package controllers

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/blockforge/blockforge/app/models"
	"github.com/blockforge/blockforge/internal/pkg/billing"
	"github.com/blockforge/blockforge/internal/pkg/database"
	"github.com/blockforge/blockforge/internal/pkg/env"
	"github.com/blockforge/blockforge/internal/pkg/metrics/counter"
	"github.com/blockforge/blockforge/internal/pkg/paddle"
)

const defaultSignatureMaxAge = time.Hour

// HandlePaddleWebhook ingests billing events from Paddle. Order matters:
// authenticity is proven on the exact raw bytes before anything else runs,
// then the delivery is recorded for dedupe/replay, then dispatched. Handler
// failures are acknowledged with 200 unless they are plausibly transient,
// because a non-2xx triggers Paddle's retry-with-backoff.
func HandlePaddleWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get(paddle.SignatureHeader)
	secret := env.GetEnv("PADDLE_WEBHOOK_SECRET", "")

	if err := paddle.VerifyWebhookSignature(rawBody, signature, secret, signatureMaxAge()); err != nil {
		if paddle.IsInvalidInput(err) {
			log.Printf("paddle webhook: rejecting request with invalid signature input: %v", err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature_input"})
		}
		// Security event: a well-formed signature that does not match.
		log.Printf("paddle webhook: signature verification failed from %s: %v", c.IP(), err)
		countOutcome(counter.OutcomeRejected, "signature")
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}

	event, err := paddle.ParseEvent(rawBody)
	if err != nil {
		log.Printf("paddle webhook: unparsable payload: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	created, stored, err := svc.RecordWebhookEvent(ctx, billing.WebhookEventInput{
		Provider:        models.BillingProviderPaddle,
		ProviderEventID: event.EventID,
		EventType:       event.RawType,
		PayloadJSON:     string(rawBody),
		SignatureValid:  true,
	})
	if err != nil {
		log.Printf("paddle webhook: persisting event failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	if !created {
		// Dedupe only deliveries that reached a terminal outcome. An event
		// recorded without processed_at failed retryably on an earlier
		// delivery and must dispatch again, otherwise the 500 that asked
		// the provider to retry would be answered with a no-op.
		if stored.ProcessedAt != nil {
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
		}
		log.Printf("paddle webhook: redelivering unprocessed event %d (%s)", stored.ID, event.RawType)
	}

	handled, res := svc.Dispatch(ctx, event)
	if !handled {
		log.Printf("paddle webhook: ignoring unrecognized event type %q", event.RawType)
		_ = svc.MarkWebhookProcessed(ctx, stored.ID, nil)
		countOutcome(counter.OutcomeIgnored, event.RawType)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	}

	if res.Failure() {
		countOutcome(counter.OutcomeFailed, event.RawType)
		if res.Retryable {
			_ = svc.RecordWebhookError(ctx, stored.ID, res.Error())
			log.Printf("paddle webhook: %s handler failed (retryable): %v", event.RawType, res.Error())
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "event_processing_failed"})
		}
		// Logged with full replay context in webhook_events; acknowledge so
		// the provider does not retry a condition only manual replay fixes.
		_ = svc.MarkWebhookProcessed(ctx, stored.ID, res.Error())
		log.Printf("paddle webhook: %s handler failed (event %d recorded for replay): %v", event.RawType, stored.ID, res.Error())
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	}

	_ = svc.MarkWebhookProcessed(ctx, stored.ID, nil)
	countOutcome(counter.OutcomeProcessed, event.RawType)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

func signatureMaxAge() time.Duration {
	raw := env.GetEnv("PADDLE_SIGNATURE_MAX_AGE", "")
	if raw == "" {
		return defaultSignatureMaxAge
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("paddle webhook: invalid PADDLE_SIGNATURE_MAX_AGE %q, using default", raw)
		return defaultSignatureMaxAge
	}
	if d < 0 {
		return 0
	}
	return d
}

func countOutcome(outcome, eventType string) {
	if err := counter.AddWebhookOutcome(outcome, eventType); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("paddle webhook: counter update failed: %v", err)
	}
}
