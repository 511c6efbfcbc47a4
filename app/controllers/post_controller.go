package controllers

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/blockforge/blockforge/app/repository"
	"github.com/blockforge/blockforge/internal/pkg/cache"
)

const postCacheTTL = 10 * time.Minute

func postCacheKey(slug string) string {
	return "post:" + slug
}

// HandleListPosts returns published blog posts, newest first.
func HandleListPosts(c *fiber.Ctx) error {
	offset, limit, page := parsePagination(c)

	repo := repository.GetGlobalFactory().GetPostRepository()
	posts, err := repo.GetPublished(offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load posts"})
	}
	total, err := repo.CountPublished()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to count posts"})
	}

	return c.JSON(fiber.Map{
		"posts":     posts,
		"page":      page,
		"page_size": limit,
		"total":     total,
	})
}

// HandleGetPost returns one published post by slug.
func HandleGetPost(c *fiber.Ctx) error {
	slug := strings.TrimSpace(c.Params("slug"))
	if slug == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "slug missing"})
	}

	// Cache is best effort; a miss or an unreachable cache falls through to
	// the database.
	if cached, err := cache.Get(postCacheKey(slug)); err == nil && cached != "" {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.SendString(cached)
	}

	repo := repository.GetGlobalFactory().GetPostRepository()
	post, err := repo.GetBySlug(slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Post not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load post"})
	}
	if !post.Published {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Post not found"})
	}

	if payload, err := json.Marshal(post); err == nil {
		_ = cache.Set(postCacheKey(slug), payload, postCacheTTL)
	}
	return c.JSON(post)
}
