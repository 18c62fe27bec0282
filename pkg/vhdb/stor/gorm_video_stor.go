package stor

import (
	"fmt"
	"strings"

	"github.com/akademi-crypto/vidhub/pkg/vhdb/vhmodel"
	"github.com/hashicorp/go-uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

var sortColumns = map[string]string{
	"uploadedAt": "uploaded_at",
	"title":      "title",
	"duration":   "duration",
}

type GormVideoStor struct {
	db *gorm.DB
}

func NewGormVideoStor(db *gorm.DB) *GormVideoStor {
	return &GormVideoStor{db: db}
}

// CreateVideo inserts the video together with its category associations in a
// single transaction. Every category id must exist.
func (s *GormVideoStor) CreateVideo(video *vhmodel.Video, categoryIDs []string) (*vhmodel.Video, error) {
	var err error

	if video.ID, err = uuid.GenerateUUID(); err != nil {
		return nil, err
	}

	err = WithTxRetry(s.db, func(tx *gorm.DB) error {
		categories, err := findCategories(tx, categoryIDs)
		if err != nil {
			return err
		}

		video.Categories = categories
		return tx.Omit("Categories.*").Create(video).Error
	})

	if err != nil {
		return nil, err
	}

	return video, nil
}

func (s *GormVideoStor) GetVideoByID(id string) (*vhmodel.Video, error) {
	var video vhmodel.Video
	if err := s.db.Preload("Categories").Where("id = ?", id).First(&video).Error; err != nil {
		return nil, notFoundOr(err, "video", id)
	}

	return &video, nil
}

func (s *GormVideoStor) GetVideosByIDs(ids []string) ([]vhmodel.Video, error) {
	var videos []vhmodel.Video
	if len(ids) == 0 {
		return videos, nil
	}

	err := s.db.Where("id IN ?", ids).Find(&videos).Error
	return videos, err
}

func (s *GormVideoStor) ListVideos(query VideoQuery) ([]vhmodel.Video, int64, error) {
	var (
		videos []vhmodel.Video
		total  int64
	)

	query.Normalize()

	filtered := s.db.Model(&vhmodel.Video{})
	if query.Search != "" {
		like := "%" + strings.ToLower(query.Search) + "%"
		filtered = filtered.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}

	if query.CategoryID != "" {
		filtered = filtered.Where("id IN (?)",
			s.db.Table("video_categories").Select("video_id").Where("category_id = ?", query.CategoryID))
	}

	if err := filtered.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := filtered.Preload("Categories").
		Order(fmt.Sprintf("%s %s", sortColumns[query.SortBy], query.SortOrder)).
		Offset((query.Page - 1) * query.Limit).
		Limit(query.Limit).
		Find(&videos).Error
	if err != nil {
		return nil, 0, err
	}

	return videos, total, nil
}

// Normalize fills in defaults and clamps the page size.
func (q *VideoQuery) Normalize() {
	if q.Page < 1 {
		q.Page = defaultPage
	}

	if q.Limit < 1 {
		q.Limit = defaultLimit
	}

	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}

	if _, ok := sortColumns[q.SortBy]; !ok {
		q.SortBy = "uploadedAt"
	}

	if q.SortOrder = strings.ToLower(q.SortOrder); q.SortOrder != "asc" {
		q.SortOrder = "desc"
	}
}

func (s *GormVideoStor) UpdateVideo(id string, updates VideoUpdates) (*vhmodel.Video, error) {
	err := WithTxRetry(s.db, func(tx *gorm.DB) error {
		var video vhmodel.Video
		if err := tx.Where("id = ?", id).First(&video).Error; err != nil {
			return notFoundOr(err, "video", id)
		}

		fields := map[string]interface{}{}
		if updates.Title != nil {
			fields["title"] = *updates.Title
		}

		if updates.Description != nil {
			fields["description"] = *updates.Description
		}

		if len(fields) != 0 {
			if err := tx.Model(&video).Updates(fields).Error; err != nil {
				return err
			}
		}

		if updates.CategoryIDs == nil {
			return nil
		}

		categories, err := findCategories(tx, updates.CategoryIDs)
		if err != nil {
			return err
		}

		if len(categories) == 0 {
			return tx.Model(&video).Association("Categories").Clear()
		}

		return tx.Model(&video).Association("Categories").Replace(categories)
	})

	if err != nil {
		return nil, err
	}

	return s.GetVideoByID(id)
}

func (s *GormVideoStor) DeleteVideo(id string) error {
	return WithTxRetry(s.db, func(tx *gorm.DB) error {
		var video vhmodel.Video
		if err := tx.Where("id = ?", id).First(&video).Error; err != nil {
			return notFoundOr(err, "video", id)
		}

		if err := tx.Model(&video).Association("Categories").Clear(); err != nil {
			return err
		}

		return tx.Delete(&video).Error
	})
}

func (s *GormVideoStor) DeleteVideosByIDs(ids []string) (int64, error) {
	var deleted int64

	if len(ids) == 0 {
		return 0, nil
	}

	err := WithTxRetry(s.db, func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM video_categories WHERE video_id IN ?", ids).Error; err != nil {
			return err
		}

		result := tx.Where("id IN ?", ids).Delete(&vhmodel.Video{})
		deleted = result.RowsAffected
		return result.Error
	})

	return deleted, err
}

// findCategories loads the categories for ids, failing with ErrNotFound when
// any id is unknown.
func findCategories(tx *gorm.DB, ids []string) ([]vhmodel.Category, error) {
	var categories []vhmodel.Category

	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return categories, nil
	}

	if err := tx.Where("id IN ?", ids).Find(&categories).Error; err != nil {
		return nil, err
	}

	if len(categories) != len(ids) {
		return nil, errors.Wrapf(ErrNotFound, "categories %s", strings.Join(missingIDs(ids, categories), ","))
	}

	return categories, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}

	return unique
}

func missingIDs(ids []string, found []vhmodel.Category) []string {
	present := make(map[string]bool, len(found))
	for _, c := range found {
		present[c.ID] = true
	}

	var missing []string
	for _, id := range ids {
		if !present[id] {
			missing = append(missing, id)
		}
	}

	return missing
}
