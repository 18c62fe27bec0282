package vhmodel

import "time"

type Category struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Name      string    `json:"name" gorm:"size:191;not null;uniqueIndex"`
	Slug      string    `json:"slug" gorm:"size:191;index"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Videos    []Video   `json:"videos,omitempty" gorm:"many2many:video_categories;"`
}

func (Category) TableName() string {
	return "categories"
}
