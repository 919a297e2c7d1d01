// Package dbtest opens throwaway SQLite databases for repository tests.
package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/smes-pos/smes-backend/pkg/db/models"
)

// AllModels lists every persisted model in migration order.
func AllModels() []any {
	return []any{
		&models.User{},
		&models.Supplier{},
		&models.Customer{},
		&models.Product{},
		&models.Discount{},
		&models.DiscountProduct{},
		&models.Sale{},
		&models.SaleItem{},
		&models.InventoryAdjustment{},
		&models.Purchase{},
		&models.PurchaseItem{},
		&models.MpesaTransaction{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
	}
}

// Open returns an isolated in-memory database migrated with the full schema.
// The pool is pinned to one connection so the shared-cache database lives for
// the whole test and transactions never see SQLITE_LOCKED from a sibling conn.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=0"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(AllModels()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return conn
}
