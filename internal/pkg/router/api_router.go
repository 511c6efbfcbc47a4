package router

import (
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"

	"github.com/blockforge/blockforge/app/controllers"
	"github.com/blockforge/blockforge/internal/pkg/cache"
	"github.com/blockforge/blockforge/internal/pkg/env"
	"github.com/blockforge/blockforge/internal/pkg/middleware"
)

type ApiRouter struct {
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        env.GetEnvInt("API_RATE_LIMIT_PER_MIN", 120),
		Expiration: time.Minute,
		Storage:    newLimiterStorage(),
	}))

	// Webhook ingestion: authenticated by signature, not by API key.
	api.Post("/webhooks/paddle", controllers.HandlePaddleWebhook)

	v1 := api.Group("/v1")
	v1.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ping": "pong"})
	})

	// Public catalog: anonymous requests see free-tier content, requests
	// carrying a valid API key get their plan's gating.
	optionalAuth := middleware.OptionalAPIKeyAuthMiddleware()
	v1.Get("/blocks", optionalAuth, controllers.HandleListBlocks)
	v1.Get("/blocks/:uuid", optionalAuth, controllers.HandleGetBlock)
	v1.Get("/categories", optionalAuth, controllers.HandleListCategories)
	v1.Get("/posts", optionalAuth, controllers.HandleListPosts)
	v1.Get("/posts/:slug", optionalAuth, controllers.HandleGetPost)

	admin := v1.Group("/admin", middleware.APIKeyAuthMiddleware(), middleware.RequireAdminMiddleware())
	admin.Get("/subscriptions", controllers.HandleAdminListSubscriptions)
	admin.Get("/users/:id/subscription", controllers.HandleAdminGetUserSubscription)
	admin.Post("/users/:id/api-key", controllers.HandleAdminIssueUserAPIKey)
	admin.Delete("/users/:id/api-key", controllers.HandleAdminRevokeUserAPIKey)
	admin.Get("/webhook-events", controllers.HandleAdminListWebhookEvents)
	admin.Get("/stats", controllers.HandleAdminStats)
	admin.Post("/blocks", controllers.HandleAdminCreateBlock)
	admin.Put("/blocks/:uuid", controllers.HandleAdminUpdateBlock)
	admin.Delete("/blocks/:uuid", controllers.HandleAdminDeleteBlock)
	admin.Post("/posts", controllers.HandleAdminCreatePost)
	admin.Put("/posts/:id", controllers.HandleAdminUpdatePost)
	admin.Delete("/posts/:id", controllers.HandleAdminDeletePost)
}

// newLimiterStorage backs the rate limiter with Redis so limits hold across
// instances. Falls back to the limiter's in-memory default when the cache
// client is unavailable.
func newLimiterStorage() fiber.Storage {
	cacheClient := cache.GetClient()
	if cacheClient == nil {
		return nil
	}

	host := "localhost"
	port := 6379
	if h, p, err := net.SplitHostPort(cacheClient.Options().Addr); err == nil {
		host = h
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}
	password := env.GetEnv("CACHE_PASSWORD", "")
	if p := cacheClient.Options().Password; p != "" {
		password = p
	}

	// Limiter state lives in database 1, the cache uses DB 0.
	return redisstorage.New(redisstorage.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: 1,
	})
}
