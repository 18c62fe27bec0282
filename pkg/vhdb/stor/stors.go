package stor

import (
	"github.com/akademi-crypto/vidhub/pkg/vhdb/vhmodel"
	"gorm.io/gorm"
)

// VideoQuery selects a page of videos. Zero values mean defaults: page 1,
// limit 10, newest first.
type VideoQuery struct {
	Page       int
	Limit      int
	Search     string
	CategoryID string
	SortBy     string
	SortOrder  string
}

// VideoUpdates carries the optional fields of a video update. A nil
// CategoryIDs leaves the associations alone; an empty one clears them.
type VideoUpdates struct {
	Title       *string
	Description *string
	CategoryIDs []string
}

type UserUpdates struct {
	Username *string
	Avatar   *string
}

type VideoStor interface {
	CreateVideo(video *vhmodel.Video, categoryIDs []string) (*vhmodel.Video, error)
	GetVideoByID(id string) (*vhmodel.Video, error)
	GetVideosByIDs(ids []string) ([]vhmodel.Video, error)
	ListVideos(query VideoQuery) ([]vhmodel.Video, int64, error)
	UpdateVideo(id string, updates VideoUpdates) (*vhmodel.Video, error)
	DeleteVideo(id string) error
	DeleteVideosByIDs(ids []string) (int64, error)
}

type CategoryStor interface {
	CreateCategory(name string) (*vhmodel.Category, error)
	GetCategoryByID(id string) (*vhmodel.Category, error)
	ListCategories() ([]vhmodel.Category, error)
	UpdateCategory(id, name string) (*vhmodel.Category, error)
	DeleteCategory(id string) error
	MissingCategoryIDs(ids []string) ([]string, error)
}

type UserStor interface {
	CreateUser(user *vhmodel.User) (*vhmodel.User, error)
	GetUserByID(id string) (*vhmodel.User, error)
	GetUserByDiscordID(discordID string) (*vhmodel.User, error)
	ListUsers() ([]vhmodel.User, error)
	UpdateUser(id string, updates UserUpdates) (*vhmodel.User, error)
}

type Stors struct {
	VideoStor    VideoStor
	CategoryStor CategoryStor
	UserStor     UserStor
}

func NewGormStors(db *gorm.DB) *Stors {
	return &Stors{
		VideoStor:    NewGormVideoStor(db),
		CategoryStor: NewGormCategoryStor(db),
		UserStor:     NewGormUserStor(db),
	}
}
