package infra

import (
	"fmt"

	"repartos/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate to
// create / update all tables, then applies the idempotent SQL patches that GORM
// cannot express (partial indexes).
//
// TranslateError is on so unique violations surface as gorm.ErrDuplicatedKey;
// the idempotency-key race in RegistrarEntrega depends on it.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates or updates every table and applies the schema patches.
// Safe to run on every start.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Tenant{},
		&model.Usuario{},
		&model.Producto{},
		&model.Cliente{},
		&model.Entrega{},
		&model.EntregaItem{},
		&model.StockVehiculo{},
		&model.MovimientoStock{},
		&model.Conciliacion{},
		&model.EventoEntrega{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// applySchemaPatches runs idempotent DDL statements that GORM AutoMigrate cannot
// fully handle on its own. Each statement uses IF NOT EXISTS semantics so
// re-running on an already-patched DB is safe.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// One delivery per (tenant, idempotency_key); NULL keys never collide.
		{"entregas idempotency key", `
CREATE UNIQUE INDEX IF NOT EXISTS idx_entregas_tenant_idempotency
    ON entregas (tenant_id, idempotency_key)
    WHERE idempotency_key IS NOT NULL`},
		// Client history listing.
		{"entregas por cliente", `
CREATE INDEX IF NOT EXISTS idx_entregas_tenant_cliente_fecha
    ON entregas (tenant_id, cliente_id, fecha DESC)`},
		// Outbox relay query.
		{"eventos pendientes", `
CREATE INDEX IF NOT EXISTS idx_eventos_entrega_pendientes
    ON eventos_entrega (next_retry_at)
    WHERE publicado = false`},
		// A legacy slot maps to at most one active product per tenant.
		{"productos slot legacy", `
CREATE UNIQUE INDEX IF NOT EXISTS idx_productos_tenant_slot
    ON productos (tenant_id, slot_legacy)
    WHERE slot_legacy IS NOT NULL AND activo = true`},
	}
	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
