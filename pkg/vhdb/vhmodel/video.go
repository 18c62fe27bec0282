package vhmodel

import "time"

// Video is the canonical record of an uploaded video. It is only created once
// the media host has accepted the whole payload, so every row points at a
// live remote artifact through PublicID.
type Video struct {
	ID           string     `json:"id" gorm:"primaryKey;size:36"`
	Title        string     `json:"title" gorm:"size:255;not null"`
	Description  *string    `json:"description"`
	CloudinaryID string     `json:"cloudinaryId" gorm:"size:255;not null"`
	PublicID     string     `json:"publicId" gorm:"size:255;not null;index"`
	URL          string     `json:"url" gorm:"not null"`
	SecureURL    string     `json:"secureUrl" gorm:"not null"`
	Format       string     `json:"format" gorm:"size:32"`
	Duration     *float64   `json:"duration"`
	Width        *int       `json:"width"`
	Height       *int       `json:"height"`
	FileSize     *int64     `json:"fileSize"`
	UploadedAt   time.Time  `json:"uploadedAt" gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	Categories   []Category `json:"categories" gorm:"many2many:video_categories;"`
}

func (Video) TableName() string {
	return "videos"
}

// CategoryIDs returns the ids of the categories attached to the video.
func (v *Video) CategoryIDs() []string {
	ids := make([]string, 0, len(v.Categories))
	for _, c := range v.Categories {
		ids = append(ids, c.ID)
	}

	return ids
}
