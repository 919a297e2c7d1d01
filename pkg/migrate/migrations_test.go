package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/smes-pos/smes-backend/pkg/migrate"
)

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestProductsMigrationGuardsStock(t *testing.T) {
	content := readMigration(t, "*_create_products.sql")
	checks := []string{
		"CREATE TABLE IF NOT EXISTS products",
		"CONSTRAINT products_sku_key UNIQUE (sku)",
		"CONSTRAINT products_quantity_in_stock_check CHECK (quantity_in_stock >= 0)",
		"DROP TABLE IF EXISTS products",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestDiscountMigrationUsesExplicitJoinTable(t *testing.T) {
	content := readMigration(t, "*_create_discounts.sql")
	checks := []string{
		"CREATE TABLE IF NOT EXISTS discount_products",
		"PRIMARY KEY (discount_id, product_id)",
		"CHECK (percentage >= 0 AND percentage <= 100)",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Loyalty Points!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_loyalty_points.sql") {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
	if _, err := migrate.CreateSQLMigration(dir, "!!!"); err == nil {
		t.Fatal("expected error for empty sanitized name")
	}

	second, err := migrate.CreateSQLMigration(dir, "add loyalty tiers")
	if err != nil {
		t.Fatalf("create second migration: %v", err)
	}
	if filepath.Base(second) <= filepath.Base(path) {
		t.Fatalf("expected %s to sort after %s", second, path)
	}
}

func TestEmbeddedSourceMatchesRepository(t *testing.T) {
	fsys, err := migrate.Source(migrate.DefaultDir)
	if err != nil {
		t.Fatalf("embedded source: %v", err)
	}
	matches, err := fs.Glob(fsys, "*_create_products.sql")
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected embedded products migration, got %v (%v)", matches, err)
	}
	if err := migrate.ValidateFS(fsys); err != nil {
		t.Fatalf("embedded migrations invalid: %v", err)
	}
}

func TestValidateFSRejectsUnbalancedStatements(t *testing.T) {
	fsys := fstest.MapFS{
		"20260101000000_broken.sql": {Data: []byte("-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n")},
	}
	if err := migrate.ValidateFS(fsys); err == nil {
		t.Fatal("expected unbalanced statement error")
	}
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "001_init.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename error")
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
