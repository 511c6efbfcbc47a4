package repository

import (
	"github.com/blockforge/blockforge/app/models"
	"gorm.io/gorm"
)

// blockRepository implements the BlockRepository interface
type blockRepository struct {
	db *gorm.DB
}

// NewBlockRepository creates a new block repository instance
func NewBlockRepository(db *gorm.DB) BlockRepository {
	return &blockRepository{db: db}
}

func (r *blockRepository) Create(block *models.Block) error {
	return r.db.Create(block).Error
}

func (r *blockRepository) GetByID(id uint) (*models.Block, error) {
	var block models.Block
	err := r.db.Preload("Category").First(&block, id).Error
	if err != nil {
		return nil, err
	}
	return &block, nil
}

func (r *blockRepository) GetByUUID(uuid string) (*models.Block, error) {
	var block models.Block
	err := r.db.Preload("Category").Where("uuid = ?", uuid).First(&block).Error
	if err != nil {
		return nil, err
	}
	return &block, nil
}

func (r *blockRepository) GetBySlug(slug string) (*models.Block, error) {
	var block models.Block
	err := r.db.Preload("Category").Where("slug = ?", slug).First(&block).Error
	if err != nil {
		return nil, err
	}
	return &block, nil
}

// GetPublished returns published blocks, newest first, optionally filtered by
// category slug.
func (r *blockRepository) GetPublished(offset, limit int, categorySlug string) ([]models.Block, error) {
	var blocks []models.Block
	query := r.db.Preload("Category").Where("published = ?", true)
	if categorySlug != "" {
		query = query.Joins("JOIN block_categories ON block_categories.id = blocks.category_id").
			Where("block_categories.slug = ?", categorySlug)
	}
	err := query.Order("blocks.created_at DESC").Offset(offset).Limit(limit).Find(&blocks).Error
	return blocks, err
}

func (r *blockRepository) Update(block *models.Block) error {
	return r.db.Save(block).Error
}

func (r *blockRepository) Delete(id uint) error {
	return r.db.Delete(&models.Block{}, id).Error
}

func (r *blockRepository) List(offset, limit int) ([]models.Block, error) {
	var blocks []models.Block
	err := r.db.Preload("Category").Order("created_at DESC").Offset(offset).Limit(limit).Find(&blocks).Error
	return blocks, err
}

func (r *blockRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Block{}).Count(&count).Error
	return count, err
}

func (r *blockRepository) CountPublished(categorySlug string) (int64, error) {
	var count int64
	query := r.db.Model(&models.Block{}).Where("published = ?", true)
	if categorySlug != "" {
		query = query.Joins("JOIN block_categories ON block_categories.id = blocks.category_id").
			Where("block_categories.slug = ?", categorySlug)
	}
	err := query.Count(&count).Error
	return count, err
}

// IncrementViewCount bumps the counter in a single atomic statement.
func (r *blockRepository) IncrementViewCount(id uint) error {
	return r.db.Model(&models.Block{}).Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error
}
