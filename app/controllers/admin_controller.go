package controllers

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/blockforge/blockforge/app/models"
	"github.com/blockforge/blockforge/app/repository"
	"github.com/blockforge/blockforge/internal/pkg/database"
	"github.com/blockforge/blockforge/internal/pkg/metrics/counter"
)

// HandleAdminListSubscriptions returns the subscription rows the webhook
// reconciler maintains, paginated, optionally filtered by status.
func HandleAdminListSubscriptions(c *fiber.Ctx) error {
	offset, limit, page := parsePagination(c)
	status := strings.TrimSpace(c.Query("status"))

	repo := repository.GetGlobalFactory().GetSubscriptionRepository()
	var (
		subs []models.Subscription
		err  error
	)
	if status != "" {
		subs, err = repo.ListByStatus(status, offset, limit)
	} else {
		subs, err = repo.List(offset, limit)
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load subscriptions"})
	}
	total, err := repo.Count()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to count subscriptions"})
	}

	items := make([]fiber.Map, 0, len(subs))
	for i := range subs {
		items = append(items, subscriptionResponse(&subs[i]))
	}

	return c.JSON(fiber.Map{
		"subscriptions": items,
		"page":          page,
		"page_size":     limit,
		"total":         total,
	})
}

// HandleAdminGetUserSubscription returns a user's billing state: their
// subscriptions plus the reconciled effective plan.
func HandleAdminGetUserSubscription(c *fiber.Ctx) error {
	userID, err := c.ParamsInt("id")
	if err != nil || userID < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid user id"})
	}

	userRepo := repository.GetGlobalFactory().GetUserRepository()
	user, err := userRepo.GetByID(uint(userID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "User not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load user"})
	}

	subs, err := repository.GetGlobalFactory().GetSubscriptionRepository().GetByUserID(user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load subscriptions"})
	}

	settings, err := models.GetOrCreateUserSettings(database.GetDB(), user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load user settings"})
	}

	items := make([]fiber.Map, 0, len(subs))
	for i := range subs {
		items = append(items, subscriptionResponse(&subs[i]))
	}

	return c.JSON(fiber.Map{
		"user_id":        user.ID,
		"email":          user.Email,
		"effective_plan": settings.Plan,
		"subscriptions":  items,
	})
}

// HandleAdminIssueUserAPIKey issues (or rotates) a user's API key. The raw
// secret is returned exactly once; only its hash is stored.
func HandleAdminIssueUserAPIKey(c *fiber.Ctx) error {
	userID, err := c.ParamsInt("id")
	if err != nil || userID < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid user id"})
	}

	user, err := repository.GetGlobalFactory().GetUserRepository().GetByID(uint(userID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "User not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load user"})
	}

	db := database.GetDB()
	settings, err := models.GetOrCreateUserSettings(db, user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load user settings"})
	}

	rawKey, err := settings.IssueAPIKey()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to generate API key"})
	}
	if err := db.Save(settings).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to store API key"})
	}

	return c.JSON(fiber.Map{
		"user_id":        user.ID,
		"api_key":        rawKey,
		"api_key_prefix": settings.APIKeyPrefix,
	})
}

// HandleAdminRevokeUserAPIKey revokes a user's API key without deleting the
// settings record.
func HandleAdminRevokeUserAPIKey(c *fiber.Ctx) error {
	userID, err := c.ParamsInt("id")
	if err != nil || userID < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid user id"})
	}

	db := database.GetDB()
	settings, err := models.GetOrCreateUserSettings(db, uint(userID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load user settings"})
	}
	if !settings.HasActiveAPIKey() {
		return c.JSON(fiber.Map{"ok": true, "revoked": false})
	}

	settings.RevokeAPIKey()
	if err := db.Save(settings).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to revoke API key"})
	}
	return c.JSON(fiber.Map{"ok": true, "revoked": true})
}

// HandleAdminListWebhookEvents lists recorded webhook deliveries. With
// ?failed=1 only deliveries that recorded a handler error are returned,
// which is the manual-replay working set.
func HandleAdminListWebhookEvents(c *fiber.Ctx) error {
	offset, limit, page := parsePagination(c)
	repo := repository.GetGlobalFactory().GetWebhookEventRepository()

	var (
		events []models.WebhookEvent
		err    error
	)
	if c.QueryBool("failed", false) {
		events, err = repo.ListFailed(offset, limit)
	} else {
		events, err = repo.List(offset, limit)
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load webhook events"})
	}

	items := make([]fiber.Map, 0, len(events))
	for _, ev := range events {
		items = append(items, fiber.Map{
			"id":               ev.ID,
			"provider":         ev.Provider,
			"event_type":       ev.EventType,
			"processed_at":     formatTimePtr(ev.ProcessedAt),
			"processing_error": ev.ProcessingError,
			"created_at":       ev.CreatedAt,
		})
	}

	return c.JSON(fiber.Map{
		"events":    items,
		"page":      page,
		"page_size": limit,
	})
}

// HandleAdminStats returns webhook processing counters.
func HandleAdminStats(c *fiber.Ctx) error {
	snapshot, err := counter.WebhookSnapshot()
	if err != nil {
		log.Printf("admin stats: counter snapshot failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load counters"})
	}
	return c.JSON(fiber.Map{"webhooks": snapshot})
}

func subscriptionResponse(sub *models.Subscription) fiber.Map {
	return fiber.Map{
		"id":                       sub.ID,
		"user_id":                  sub.UserID,
		"provider":                 sub.Provider,
		"provider_subscription_id": sub.ProviderSubscriptionID,
		"provider_price_ref":       sub.ProviderPriceRef,
		"internal_plan":            sub.InternalPlan,
		"status":                   sub.Status,
		"current_period_end":       formatTimePtr(sub.CurrentPeriodEnd),
		"cancel_at_period_end":     sub.CancelAtPeriodEnd,
		"updated_at":               sub.UpdatedAt,
	}
}
