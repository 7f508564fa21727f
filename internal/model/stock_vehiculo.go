package model

import (
	"time"

	"github.com/google/uuid"
)

// StockVehiculo is one counter of the tenant's current vehicle inventory.
// The set of rows for a tenant is the "current" inventory record.
type StockVehiculo struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_stock_vehiculo_tenant_producto"`
	ProductoID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_stock_vehiculo_tenant_producto"`
	Cantidad   int       `gorm:"not null;default:0;check:cantidad >= 0"`
	UpdatedAt  time.Time

	Producto *Producto `gorm:"foreignKey:ProductoID"`
}

// TableName keeps the singular table name used by the inventory queries.
func (StockVehiculo) TableName() string { return "stock_vehiculo" }
