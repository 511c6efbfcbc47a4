package controllers

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/blockforge/blockforge/app/models"
	"github.com/blockforge/blockforge/app/repository"
	"github.com/blockforge/blockforge/internal/pkg/billing"
	"github.com/blockforge/blockforge/internal/pkg/usercontext"
)

// HandleListBlocks returns published catalog blocks, paginated and optionally
// filtered by category slug.
func HandleListBlocks(c *fiber.Ctx) error {
	offset, limit, page := parsePagination(c)
	categorySlug := strings.TrimSpace(c.Query("category"))

	repo := repository.GetGlobalFactory().GetBlockRepository()
	blocks, err := repo.GetPublished(offset, limit, categorySlug)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load blocks"})
	}
	total, err := repo.CountPublished(categorySlug)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to count blocks"})
	}

	plan := usercontext.GetUserContext(c).Plan
	items := make([]fiber.Map, 0, len(blocks))
	for i := range blocks {
		items = append(items, blockResponse(&blocks[i], plan))
	}

	return c.JSON(fiber.Map{
		"blocks":    items,
		"page":      page,
		"page_size": limit,
		"total":     total,
	})
}

// HandleGetBlock returns one published block by public UUID. View counting is
// best-effort and atomic on the database side.
func HandleGetBlock(c *fiber.Ctx) error {
	uuid := strings.TrimSpace(c.Params("uuid"))
	if uuid == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "uuid missing"})
	}

	repo := repository.GetGlobalFactory().GetBlockRepository()
	block, err := repo.GetByUUID(uuid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Block not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load block"})
	}
	if !block.Published && !usercontext.IsAdmin(c) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Block not found"})
	}

	if err := repo.IncrementViewCount(block.ID); err != nil {
		log.Printf("block view count update failed for %d: %v", block.ID, err)
	}

	return c.JSON(blockResponse(block, usercontext.GetUserContext(c).Plan))
}

// HandleListCategories returns all block categories in display order.
func HandleListCategories(c *fiber.Ctx) error {
	repo := repository.GetGlobalFactory().GetCategoryRepository()
	categories, err := repo.GetAll()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load categories"})
	}
	return c.JSON(fiber.Map{"categories": categories})
}

// blockResponse shapes a block for API output. Markup is only included when
// the requester's plan covers the block's required tier.
func blockResponse(block *models.Block, requesterPlan string) fiber.Map {
	resp := fiber.Map{
		"uuid":          block.UUID,
		"name":          block.Name,
		"slug":          block.Slug,
		"description":   block.Description,
		"preview_html":  block.PreviewHTML,
		"required_plan": block.RequiredPlan,
		"published":     block.Published,
		"view_count":    block.ViewCount,
		"created_at":    block.CreatedAt,
		"updated_at":    block.UpdatedAt,
	}
	if block.Category.ID != 0 {
		resp["category"] = fiber.Map{"name": block.Category.Name, "slug": block.Category.Slug}
	}
	if billing.PlanCovers(requesterPlan, block.RequiredPlan) {
		resp["markup"] = block.Markup
	} else {
		resp["markup_locked"] = true
	}
	return resp
}
