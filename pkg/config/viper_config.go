package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// DefaultDotenvPath is used when VIDHUB_DOTENV_PATH is not set.
const DefaultDotenvPath = "~/.vidhub.env"

// ViperConfig loads a dotenv file into the process environment and then
// resolves keys through viper, so bound command line flags take precedence
// over environment values.
type ViperConfig struct {
	DotenvPath string
	v          *viper.Viper
}

func NewViperConfig(path string) *ViperConfig {
	v := viper.New()
	v.AutomaticEnv()
	return &ViperConfig{DotenvPath: path, v: v}
}

// BindFlag makes the named flag override the config key when the flag is set.
func (c *ViperConfig) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return nil
	}

	return c.v.BindPFlag(key, flag)
}

func (c *ViperConfig) LoadFromPath(path string) error {
	c.DotenvPath = path
	return c.Load()
}

// Load reads the dotenv file. A missing file is not an error since every key
// can also come from the environment.
func (c *ViperConfig) Load() error {
	if c.DotenvPath == "" {
		return nil
	}

	path, err := homedir.Expand(c.DotenvPath)
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Warnf("Dotenv file %s does not exist, using environment only", path)
		return nil
	}

	return gotenv.Load(path)
}

func (c *ViperConfig) GetKey(key string) string {
	return strings.TrimSpace(c.v.GetString(key))
}

func (c *ViperConfig) MustGetKey(key string) string {
	val := c.GetKey(key)
	if val == "" {
		log.Fatalf("No such required config key: '%s'", key)
	}

	return val
}

func (c *ViperConfig) GetKeyWithDefault(key, defaultValue string) string {
	return keyWithDefault(c.GetKey(key), defaultValue)
}

func (c *ViperConfig) GetIntKey(key string) int {
	return intWithDefault(c.GetKey(key), 0)
}

func (c *ViperConfig) MustGetIntKey(key string) int {
	intVal, err := strconv.Atoi(c.GetKey(key))
	if err != nil {
		log.Fatalf("Required config key either doesn't exist or isn't an int: '%s': %s", key, err)
	}

	return intVal
}

func (c *ViperConfig) GetIntKeyWithDefault(key string, defaultValue int) int {
	return intWithDefault(c.GetKey(key), defaultValue)
}

func (c *ViperConfig) GetInt64KeyWithDefault(key string, defaultValue int64) int64 {
	return int64WithDefault(c.GetKey(key), defaultValue)
}

func (c *ViperConfig) GetBoolKeyWithDefault(key string, defaultValue bool) bool {
	return boolWithDefault(c.GetKey(key), defaultValue)
}

func (c *ViperConfig) GetDurationKeyWithDefault(key string, defaultValue time.Duration) time.Duration {
	return durationWithDefault(c.GetKey(key), defaultValue)
}

// MustLoadFromDotenv builds a ViperConfig from VIDHUB_DOTENV_PATH (or the
// default path) and loads it, exiting when the file cannot be parsed.
func MustLoadFromDotenv() *ViperConfig {
	path := os.Getenv("VIDHUB_DOTENV_PATH")
	if path == "" {
		path = DefaultDotenvPath
	}

	c := NewViperConfig(path)
	if err := c.Load(); err != nil {
		log.Fatalf("Failed loading configuration file %s: %s", path, err)
	}

	return c
}
