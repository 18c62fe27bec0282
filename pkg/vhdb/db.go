package vhdb

import (
	"fmt"
	"time"

	"github.com/akademi-crypto/vidhub/pkg/config"
	"github.com/akademi-crypto/vidhub/pkg/vhdb/vhmodel"
	"github.com/apex/log"
	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// MakeMySQLDSN builds a DSN from the DB_* keys.
func MakeMySQLDSN(c config.Configer) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.GetKey("DB_USERNAME"),
		c.GetKey("DB_PASSWORD"),
		c.GetKeyWithDefault("DB_HOST", "127.0.0.1"),
		c.GetKeyWithDefault("DB_PORT", "3306"),
		c.GetKey("DB_DATABASE"))
}

// MakePostgresDSN prefers DATABASE_URL and falls back to the DB_* keys.
func MakePostgresDSN(c config.Configer) string {
	if url := c.GetKey("DATABASE_URL"); url != "" {
		return url
	}

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.GetKeyWithDefault("DB_HOST", "127.0.0.1"),
		c.GetKeyWithDefault("DB_PORT", "5432"),
		c.GetKey("DB_USERNAME"),
		c.GetKey("DB_PASSWORD"),
		c.GetKey("DB_DATABASE"))
}

func dialectorFor(c config.Configer) (gorm.Dialector, error) {
	switch driver := c.GetKeyWithDefault("DB_DRIVER", DriverMySQL); driver {
	case DriverMySQL:
		return mysql.Open(MakeMySQLDSN(c)), nil
	case DriverPostgres:
		return postgres.Open(MakePostgresDSN(c)), nil
	case DriverSQLite:
		return sqlite.Open(c.GetKeyWithDefault("DATABASE_URL", "vidhub.db")), nil
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", driver)
	}
}

// Open opens the configured database without retrying.
func Open(c config.Configer) (*gorm.DB, error) {
	dialector, err := dialectorFor(c)
	if err != nil {
		return nil, err
	}

	return gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

const maxDBRetries = 5

// MustConnectToDB will attempt to connect to the database maxDBRetries times. If it isn't successful
// after that number of retries then it will call log.Fatalf(), which will cause the server to exit.
// Between retry attempts it will sleep for 3 seconds.
func MustConnectToDB(c config.Configer) *gorm.DB {
	retryCount := 1
	for {
		db, err := Open(c)
		switch {
		case err == nil:
			return db
		case retryCount >= maxDBRetries:
			log.Fatalf("Failed to open %s db: %s", c.GetKeyWithDefault("DB_DRIVER", DriverMySQL), err)
		default:
			retryCount++
			time.Sleep(3 * time.Second)
		}
	}
}

// AutoMigrate creates or updates the tables for every model, including the
// video_categories join table.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&vhmodel.User{}, &vhmodel.Category{}, &vhmodel.Video{}); err != nil {
		return errors.Wrap(err, "auto migrate")
	}

	return nil
}

// Ping checks that the database answers a trivial query.
func Ping(db *gorm.DB) error {
	var one int
	return db.Raw("SELECT 1").Scan(&one).Error
}

// Version returns the server version string reported by the database.
func Version(db *gorm.DB) (string, error) {
	var (
		version string
		query   string
	)

	switch db.Dialector.Name() {
	case DriverSQLite:
		query = "SELECT sqlite_version()"
	case DriverMySQL:
		query = "SELECT VERSION()"
	default:
		query = "SELECT version()"
	}

	err := db.Raw(query).Scan(&version).Error
	return version, err
}
