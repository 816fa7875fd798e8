package query

import (
	"fmt"
	"time"

	"github.com/morf1ng/105site/config"
	"github.com/morf1ng/105site/logutils"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// DSN returns the configured connection string. An explicit dsn (or
// DATABASE_URL) wins over the individual fields.
func DSN(cfg *config.Config) string {
	if cfg.Postgres.DSN != "" {
		return cfg.Postgres.DSN
	}
	pg := cfg.Postgres
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		pg.Host, pg.User, pg.Password, pg.DBName, pg.Port, pg.SSLMode, pg.TimeZone)
}

// Init postgres connection
func InitDB(cfg *config.Config) error {
	db, err := Open(postgres.Open(DSN(cfg)))
	if err != nil {
		return err
	}
	maxIdleConns := 5
	maxOpenConns := 10
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	DB = db
	logutils.Log.Info("Postgres init success!")
	return nil
}

// Open opens a gorm handle on the given dialector with the settings shared by
// the server and the tests.
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
}
