package stor

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// notFoundOr turns gorm's record-not-found into ErrNotFound so callers never
// need to import gorm to classify errors.
func notFoundOr(err error, what string, id string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Wrapf(ErrNotFound, "%s %s", what, id)
	}

	return errors.Wrapf(err, "%s %s", what, id)
}
