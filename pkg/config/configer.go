package config

import "time"

type Configer interface {
	LoadFromPath(path string) error
	Load() error
	GetKey(key string) string
	MustGetKey(key string) string
	GetKeyWithDefault(key, defaultValue string) string
	GetIntKey(key string) int
	MustGetIntKey(key string) int
	GetIntKeyWithDefault(key string, defaultValue int) int
	GetInt64KeyWithDefault(key string, defaultValue int64) int64
	GetBoolKeyWithDefault(key string, defaultValue bool) bool
	GetDurationKeyWithDefault(key string, defaultValue time.Duration) time.Duration
}
