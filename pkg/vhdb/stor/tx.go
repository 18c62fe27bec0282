package stor

import (
	"github.com/akademi-crypto/vidhub/pkg/vhdb/config"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// WithTxRetry runs fn in a transaction, retrying failed attempts. Errors that
// a retry cannot fix (missing or duplicate rows) are returned immediately.
func WithTxRetry(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	var err error

	retryCount := config.GetTxRetry()

	for i := 0; i < retryCount; i++ {
		err = db.Transaction(fn)
		if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadyExists) {
			break
		}
	}

	return err
}
