package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Block is a reusable UI component in the catalog. Markup for plan-gated
// blocks is only served to requesters whose plan covers RequiredPlan.
type Block struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	UUID         string         `gorm:"type:char(36);uniqueIndex;not null" json:"uuid"`
	Name         string         `gorm:"type:varchar(255);not null" json:"name" validate:"required,min=3,max=255"`
	Slug         string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"slug" validate:"required,min=3,max=255"`
	CategoryID   uint           `gorm:"index" json:"category_id"`
	Category     BlockCategory  `gorm:"foreignKey:CategoryID" json:"category" validate:"-"`
	Description  string         `gorm:"type:text" json:"description" validate:"max=2000"`
	Markup       string         `gorm:"type:longtext" json:"markup,omitempty"`
	PreviewHTML  string         `gorm:"type:longtext" json:"preview_html"`
	RequiredPlan string         `gorm:"type:varchar(50);not null;default:'free'" json:"required_plan" validate:"oneof=free pro team"`
	Published    bool           `gorm:"type:tinyint(1);default:0;index" json:"published"`
	ViewCount    uint64         `gorm:"default:0" json:"view_count"`
	UserID       uint           `gorm:"index" json:"user_id"`
	User         User           `gorm:"foreignKey:UserID" json:"user" validate:"-"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (b *Block) Validate() error {
	v := validator.New()
	return v.Struct(b)
}

// BeforeCreate assigns a public UUID when none is set.
func (b *Block) BeforeCreate(tx *gorm.DB) error {
	if b.UUID == "" {
		b.UUID = uuid.New().String()
	}
	return nil
}
