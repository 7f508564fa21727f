package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Conciliacion records which effects of a delivery have already been applied.
// It is keyed by EntregaID so re-delivered events never apply a delta twice.
type Conciliacion struct {
	EntregaID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID           uuid.UUID `gorm:"type:uuid;not null;index"`
	SaldoAplicado      bool      `gorm:"not null;default:false"`
	InventarioAplicado bool      `gorm:"not null;default:false"`
	// Origen of the balance effect: "registro" (engine) | "conciliacion" (trigger)
	OrigenSaldo   *string          `gorm:"type:varchar(20)"`
	SaldoAnterior *decimal.Decimal `gorm:"type:decimal(12,2)"`
	SaldoNuevo    *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Intentos      int              `gorm:"not null;default:0"`
	UltimoError   *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName overrides GORM's default pluralization.
func (Conciliacion) TableName() string { return "conciliaciones" }

// Completa reports whether nothing is left to apply for the delivery.
func (c *Conciliacion) Completa() bool { return c.SaldoAplicado && c.InventarioAplicado }
