package repository

import (
	"github.com/blockforge/blockforge/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, *models.UserSettings, error)
	Update(user *models.User) error
	Delete(id uint) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
}

// BlockRepository defines the interface for block catalog operations
type BlockRepository interface {
	Create(block *models.Block) error
	GetByID(id uint) (*models.Block, error)
	GetByUUID(uuid string) (*models.Block, error)
	GetBySlug(slug string) (*models.Block, error)
	GetPublished(offset, limit int, categorySlug string) ([]models.Block, error)
	Update(block *models.Block) error
	Delete(id uint) error
	List(offset, limit int) ([]models.Block, error)
	Count() (int64, error)
	CountPublished(categorySlug string) (int64, error)
	IncrementViewCount(id uint) error
}

// CategoryRepository defines the interface for block category operations
type CategoryRepository interface {
	Create(category *models.BlockCategory) error
	GetBySlug(slug string) (*models.BlockCategory, error)
	GetAll() ([]models.BlockCategory, error)
}

// PostRepository defines the interface for blog post operations
type PostRepository interface {
	Create(post *models.Post) error
	GetByID(id uint64) (*models.Post, error)
	GetBySlug(slug string) (*models.Post, error)
	GetPublished(offset, limit int) ([]models.Post, error)
	Update(post *models.Post) error
	Delete(id uint64) error
	CountPublished() (int64, error)
}

// SubscriptionRepository defines the read surface the admin API uses over
// rows written by the webhook reconciler.
type SubscriptionRepository interface {
	GetByUserID(userID uint) ([]models.Subscription, error)
	List(offset, limit int) ([]models.Subscription, error)
	ListByStatus(status string, offset, limit int) ([]models.Subscription, error)
	Count() (int64, error)
}

// WebhookEventRepository exposes recorded webhook deliveries for inspection
// and manual replay.
type WebhookEventRepository interface {
	List(offset, limit int) ([]models.WebhookEvent, error)
	ListFailed(offset, limit int) ([]models.WebhookEvent, error)
	GetByID(id uint) (*models.WebhookEvent, error)
	Count() (int64, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	Block        BlockRepository
	Category     CategoryRepository
	Post         PostRepository
	Subscription SubscriptionRepository
	WebhookEvent WebhookEventRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Block:        NewBlockRepository(db),
		Category:     NewCategoryRepository(db),
		Post:         NewPostRepository(db),
		Subscription: NewSubscriptionRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
	}
}
