// Package database manages the gorm connection, schema migration and the
// idempotent seeding of the default roles.
package database

import (
	"errors"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"github.com/pwless/pwless/config"
	"github.com/pwless/pwless/database/model"
)

var db *gorm.DB

func initModels() error {
	models := []any{
		&model.Role{},
		&model.CustomRole{},
		&model.User{},
		&model.Email{},
		&model.UserSignIn{},
	}
	for _, m := range models {
		if err := db.AutoMigrate(m); err != nil {
			log.Printf("Error auto migrating model: %v", err)
			return err
		}
	}
	return nil
}

// InitDB opens the database described by cfg, migrates the schema and seeds
// the default roles. The optional schema name is applied as a connection-wide
// table prefix, never per table.
func InitDB(cfg *config.DatabaseConfig) error {
	if err := cfg.EnsureDirectoryExists(); err != nil {
		return err
	}

	var gormLogger gormlogger.Interface
	if config.IsDebug() {
		gormLogger = gormlogger.Default
	} else {
		gormLogger = gormlogger.Discard
	}

	prefix := ""
	if cfg.Schema != "" {
		prefix = cfg.Schema + "."
	}

	c := &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   prefix,
			SingularTable: true,
		},
	}

	var err error
	switch {
	case cfg.IsPostgreSQL():
		db, err = gorm.Open(postgres.Open(cfg.GetDSN()), c)
	default:
		dsn := cfg.GetDSN() + "?cache=shared&_journal_mode=WAL&_synchronous=NORMAL"
		db, err = gorm.Open(sqlite.Open(dsn), c)
	}
	if err != nil {
		return err
	}

	if cfg.IsSQLite() {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if _, err = sqlDB.Exec("PRAGMA foreign_keys = ON;"); err != nil {
			return err
		}
	}

	if err := initModels(); err != nil {
		return err
	}
	return SeedDefaultRoles(db)
}

// SeedDefaultRoles inserts the default roles, tolerating roles that already
// exist. Every insert runs in its own nested transaction (a savepoint), so a
// uniqueness conflict rolls back only the failed statement and the enclosing
// transaction stays usable for the remaining inserts.
func SeedDefaultRoles(tx *gorm.DB) error {
	return tx.Transaction(func(outer *gorm.DB) error {
		for _, role := range model.DefaultRoles() {
			role := role
			err := outer.Transaction(func(inner *gorm.DB) error {
				return inner.Create(&role).Error
			})
			if err != nil && !IsDuplicate(err) {
				return err
			}
		}
		return nil
	})
}

// CloseDB closes the underlying connection pool.
func CloseDB() error {
	if db != nil {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

// GetDB returns the shared gorm handle.
func GetDB() *gorm.DB {
	return db
}

// Transaction runs fn inside one transactional scope. Batched writes, such as
// creating a user together with its primary email and first sign-in entry, go
// through here so they commit or roll back together.
func Transaction(fn func(tx *gorm.DB) error) error {
	return db.Transaction(fn)
}

// IsNotFound reports whether err is the record-not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicate reports whether err is a uniqueness violation. These surface to
// callers as validation errors, not database failures.
func IsDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
