package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/blockforge/blockforge/app/models"
	"github.com/blockforge/blockforge/app/repository"
	"github.com/blockforge/blockforge/internal/pkg/cache"
	"github.com/blockforge/blockforge/internal/pkg/usercontext"
)

type blockInput struct {
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	CategorySlug string `json:"category_slug"`
	Description  string `json:"description"`
	Markup       string `json:"markup"`
	PreviewHTML  string `json:"preview_html"`
	RequiredPlan string `json:"required_plan"`
	Published    bool   `json:"published"`
}

// HandleAdminCreateBlock creates a catalog block from a JSON payload.
func HandleAdminCreateBlock(c *fiber.Ctx) error {
	var in blockInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}

	block := models.Block{
		Name:         strings.TrimSpace(in.Name),
		Slug:         strings.TrimSpace(in.Slug),
		Description:  in.Description,
		Markup:       in.Markup,
		PreviewHTML:  in.PreviewHTML,
		RequiredPlan: defaultPlan(in.RequiredPlan),
		Published:    in.Published,
		UserID:       usercontext.GetUserID(c),
	}
	if err := attachCategory(&block, in.CategorySlug); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}
	if err := block.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	if err := repository.GetGlobalFactory().GetBlockRepository().Create(&block); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create block"})
	}
	return c.Status(fiber.StatusCreated).JSON(blockResponse(&block, usercontext.GetUserContext(c).Plan))
}

// HandleAdminUpdateBlock applies a JSON payload to an existing block.
func HandleAdminUpdateBlock(c *fiber.Ctx) error {
	uuid := strings.TrimSpace(c.Params("uuid"))
	repo := repository.GetGlobalFactory().GetBlockRepository()
	block, err := repo.GetByUUID(uuid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Block not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load block"})
	}

	var in blockInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}

	block.Name = strings.TrimSpace(in.Name)
	block.Slug = strings.TrimSpace(in.Slug)
	block.Description = in.Description
	block.Markup = in.Markup
	block.PreviewHTML = in.PreviewHTML
	block.RequiredPlan = defaultPlan(in.RequiredPlan)
	block.Published = in.Published
	if err := attachCategory(block, in.CategorySlug); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}
	if err := block.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	if err := repo.Update(block); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to update block"})
	}
	return c.JSON(blockResponse(block, usercontext.GetUserContext(c).Plan))
}

// HandleAdminDeleteBlock soft-deletes a block.
func HandleAdminDeleteBlock(c *fiber.Ctx) error {
	uuid := strings.TrimSpace(c.Params("uuid"))
	repo := repository.GetGlobalFactory().GetBlockRepository()
	block, err := repo.GetByUUID(uuid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Block not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load block"})
	}
	if err := repo.Delete(block.ID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to delete block"})
	}
	return c.JSON(fiber.Map{"ok": true})
}

type postInput struct {
	Title     string `json:"title"`
	Slug      string `json:"slug"`
	Content   string `json:"content"`
	Excerpt   string `json:"excerpt"`
	Published bool   `json:"published"`
}

// HandleAdminCreatePost creates a blog post from a JSON payload.
func HandleAdminCreatePost(c *fiber.Ctx) error {
	var in postInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}

	post := models.Post{
		Title:     strings.TrimSpace(in.Title),
		Slug:      strings.TrimSpace(in.Slug),
		Content:   in.Content,
		Excerpt:   in.Excerpt,
		Published: in.Published,
		UserID:    usercontext.GetUserID(c),
	}
	if err := post.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	if err := repository.GetGlobalFactory().GetPostRepository().Create(&post); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create post"})
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// HandleAdminUpdatePost applies a JSON payload to an existing post.
func HandleAdminUpdatePost(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid post id"})
	}

	repo := repository.GetGlobalFactory().GetPostRepository()
	post, err := repo.GetByID(uint64(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Post not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load post"})
	}

	var in postInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}

	oldSlug := post.Slug
	post.Title = strings.TrimSpace(in.Title)
	post.Slug = strings.TrimSpace(in.Slug)
	post.Content = in.Content
	post.Excerpt = in.Excerpt
	post.Published = in.Published
	if err := post.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	if err := repo.Update(post); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to update post"})
	}
	// Drop both cache entries in case the slug changed.
	_ = cache.Delete(postCacheKey(oldSlug))
	_ = cache.Delete(postCacheKey(post.Slug))
	return c.JSON(post)
}

// HandleAdminDeletePost soft-deletes a post.
func HandleAdminDeletePost(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid post id"})
	}

	repo := repository.GetGlobalFactory().GetPostRepository()
	post, err := repo.GetByID(uint64(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Post not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load post"})
	}
	if err := repo.Delete(post.ID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to delete post"})
	}
	_ = cache.Delete(postCacheKey(post.Slug))
	return c.JSON(fiber.Map{"ok": true})
}

func defaultPlan(plan string) string {
	p := strings.ToLower(strings.TrimSpace(plan))
	if p == "" {
		return "free"
	}
	return p
}

func attachCategory(block *models.Block, categorySlug string) error {
	slug := strings.TrimSpace(categorySlug)
	if slug == "" {
		block.CategoryID = 0
		block.Category = models.BlockCategory{}
		return nil
	}
	category, err := repository.GetGlobalFactory().GetCategoryRepository().GetBySlug(slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New("unknown category: " + slug)
		}
		return err
	}
	block.CategoryID = category.ID
	block.Category = *category
	return nil
}
