package stor

import (
	"time"

	"github.com/akademi-crypto/vidhub/pkg/vhdb/vhmodel"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type GormUserStor struct {
	db *gorm.DB
}

func NewGormUserStor(db *gorm.DB) *GormUserStor {
	return &GormUserStor{db: db}
}

// CreateUser creates a new user. The id comes from the identity provider.
func (s *GormUserStor) CreateUser(user *vhmodel.User) (*vhmodel.User, error) {
	if user.ID == "" {
		return nil, errors.New("user id is required")
	}

	if user.Role == "" {
		user.Role = vhmodel.RoleClient
	}

	err := WithTxRetry(s.db, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&vhmodel.User{}).Where("id = ?", user.ID).Count(&count).Error; err != nil {
			return err
		}

		if count != 0 {
			return errors.Wrapf(ErrAlreadyExists, "user %s", user.ID)
		}

		return tx.Create(user).Error
	})

	if err != nil {
		return nil, err
	}

	return user, nil
}

func (s *GormUserStor) GetUserByID(id string) (*vhmodel.User, error) {
	var user vhmodel.User
	if err := s.db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, notFoundOr(err, "user", id)
	}

	return &user, nil
}

func (s *GormUserStor) GetUserByDiscordID(discordID string) (*vhmodel.User, error) {
	var user vhmodel.User
	if err := s.db.Where("discord_id = ?", discordID).First(&user).Error; err != nil {
		return nil, notFoundOr(err, "discord user", discordID)
	}

	return &user, nil
}

func (s *GormUserStor) ListUsers() ([]vhmodel.User, error) {
	var users []vhmodel.User
	err := s.db.Order("created_at desc").Find(&users).Error
	return users, err
}

func (s *GormUserStor) UpdateUser(id string, updates UserUpdates) (*vhmodel.User, error) {
	err := WithTxRetry(s.db, func(tx *gorm.DB) error {
		var user vhmodel.User
		if err := tx.Where("id = ?", id).First(&user).Error; err != nil {
			return notFoundOr(err, "user", id)
		}

		fields := map[string]interface{}{"updated_at": time.Now()}
		if updates.Username != nil {
			fields["username"] = *updates.Username
		}

		if updates.Avatar != nil {
			fields["avatar"] = *updates.Avatar
		}

		return tx.Model(&user).Updates(fields).Error
	})

	if err != nil {
		return nil, err
	}

	return s.GetUserByID(id)
}
