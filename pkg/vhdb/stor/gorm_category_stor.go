package stor

import (
	"strings"

	"github.com/akademi-crypto/vidhub/pkg/vhdb/vhmodel"
	"github.com/gosimple/slug"
	"github.com/hashicorp/go-uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type GormCategoryStor struct {
	db *gorm.DB
}

func NewGormCategoryStor(db *gorm.DB) *GormCategoryStor {
	return &GormCategoryStor{db: db}
}

func (s *GormCategoryStor) CreateCategory(name string) (*vhmodel.Category, error) {
	var err error

	category := &vhmodel.Category{Name: strings.TrimSpace(name), Slug: slug.Make(name)}
	if category.ID, err = uuid.GenerateUUID(); err != nil {
		return nil, err
	}

	err = WithTxRetry(s.db, func(tx *gorm.DB) error {
		if err := ensureNameFree(tx, category.Name, ""); err != nil {
			return err
		}

		return tx.Create(category).Error
	})

	if err != nil {
		return nil, err
	}

	return category, nil
}

func (s *GormCategoryStor) GetCategoryByID(id string) (*vhmodel.Category, error) {
	var category vhmodel.Category
	if err := s.db.Preload("Videos").Where("id = ?", id).First(&category).Error; err != nil {
		return nil, notFoundOr(err, "category", id)
	}

	return &category, nil
}

func (s *GormCategoryStor) ListCategories() ([]vhmodel.Category, error) {
	var categories []vhmodel.Category
	err := s.db.Preload("Videos").Order("name asc").Find(&categories).Error
	return categories, err
}

func (s *GormCategoryStor) UpdateCategory(id, name string) (*vhmodel.Category, error) {
	var category vhmodel.Category

	name = strings.TrimSpace(name)
	err := WithTxRetry(s.db, func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&category).Error; err != nil {
			return notFoundOr(err, "category", id)
		}

		if err := ensureNameFree(tx, name, id); err != nil {
			return err
		}

		return tx.Model(&category).Updates(map[string]interface{}{"name": name, "slug": slug.Make(name)}).Error
	})

	if err != nil {
		return nil, err
	}

	return s.GetCategoryByID(id)
}

func (s *GormCategoryStor) DeleteCategory(id string) error {
	return WithTxRetry(s.db, func(tx *gorm.DB) error {
		var category vhmodel.Category
		if err := tx.Where("id = ?", id).First(&category).Error; err != nil {
			return notFoundOr(err, "category", id)
		}

		if err := tx.Model(&category).Association("Videos").Clear(); err != nil {
			return err
		}

		return tx.Delete(&category).Error
	})
}

// MissingCategoryIDs returns the ids in the list that have no category row.
func (s *GormCategoryStor) MissingCategoryIDs(ids []string) ([]string, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	var found []vhmodel.Category
	if err := s.db.Select("id").Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, err
	}

	return missingIDs(ids, found), nil
}

func ensureNameFree(tx *gorm.DB, name, exceptID string) error {
	var count int64
	q := tx.Model(&vhmodel.Category{}).Where("name = ?", name)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}

	if err := q.Count(&count).Error; err != nil {
		return err
	}

	if count != 0 {
		return errors.Wrapf(ErrAlreadyExists, "category %q", name)
	}

	return nil
}
