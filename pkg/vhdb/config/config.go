package config

import (
	"sync"

	"github.com/akademi-crypto/vidhub/pkg/config"
)

const minTxRetry = 3

var (
	txRetry     int
	txRetryOnce sync.Once
)

// GetTxRetry returns how many times a failed transaction is attempted. It
// never returns less than minTxRetry. The key is read once.
func GetTxRetry() int {
	txRetryOnce.Do(func() {
		txRetry = config.GetIntKeyWithDefault("DB_TX_RETRY", minTxRetry)
		if txRetry < minTxRetry {
			txRetry = minTxRetry
		}
	})

	return txRetry
}
