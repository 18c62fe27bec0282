package config

import (
	"strconv"
	"strings"
	"time"
)

var configer Configer = NewViperConfig(DefaultDotenvPath)

func SetConfig(c Configer) {
	configer = c
}

func GetConfig() Configer {
	return configer
}

func Load() error {
	return configer.Load()
}

func GetKey(key string) string {
	return configer.GetKey(key)
}

func GetIntKeyWithDefault(key string, defaultValue int) int {
	return configer.GetIntKeyWithDefault(key, defaultValue)
}

func keyWithDefault(val, defaultValue string) string {
	if val == "" {
		return defaultValue
	}

	return val
}

func intWithDefault(val string, defaultValue int) int {
	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func int64WithDefault(val string, defaultValue int64) int64 {
	intVal, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func boolWithDefault(val string, defaultValue bool) bool {
	b, err := strconv.ParseBool(strings.ToLower(val))
	if err != nil {
		return defaultValue
	}

	return b
}

// durationWithDefault accepts Go duration strings ("90s", "1h") or a bare
// number of seconds.
func durationWithDefault(val string, defaultValue time.Duration) time.Duration {
	if val == "" {
		return defaultValue
	}

	if d, err := time.ParseDuration(val); err == nil {
		return d
	}

	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}

	return defaultValue
}
