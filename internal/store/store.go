// Package store holds the gorm-backed collections: products, orders, coupons,
// carts, admin sessions and the activity log. Every stock and status mutation
// is a single conditional UPDATE so concurrent requests and the expiry sweep
// never need a read-modify-write round trip.
package store

import (
	"errors"
	"fmt"

	"storefront/internal/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("record not found")

// Open 连接 SQLite 并自动建表。
// sqlite 只允许单写者，这里把连接池限制为 1，写操作串行化，避免 "database is locked"。
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(model.All()...); err != nil {
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	return db, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
