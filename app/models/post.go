package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Post represents a blog article in the system
type Post struct {
	ID        uint64         `gorm:"primaryKey" json:"id"`
	Title     string         `gorm:"type:varchar(255)" json:"title" validate:"required,min=3,max=255"`
	Slug      string         `gorm:"uniqueIndex;type:varchar(255)" json:"slug" validate:"required,min=3,max=255"`
	Content   string         `gorm:"type:longtext" json:"content" validate:"required"`
	Excerpt   string         `gorm:"type:text" json:"excerpt" validate:"max=1000"`
	Published bool           `gorm:"type:tinyint(1);default:0" json:"published"`
	UserID    uint           `gorm:"index" json:"user_id"`
	User      User           `gorm:"foreignKey:UserID" json:"user" validate:"-"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (p *Post) Validate() error {
	v := validator.New()
	return v.Struct(p)
}

// TableName specifies the table name for the Post model
func (Post) TableName() string {
	return "posts"
}
