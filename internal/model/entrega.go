package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Entrega is an immutable delivery record. Corrections are new deliveries,
// never edits. Total always equals the sum of its items' subtotals.
type Entrega struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID         uuid.UUID       `gorm:"type:uuid;not null;index:idx_entregas_tenant_cliente"`
	ClienteID        uuid.UUID       `gorm:"type:uuid;not null;index:idx_entregas_tenant_cliente"`
	UsuarioID        *uuid.UUID      `gorm:"type:uuid"`
	Fecha            time.Time       `gorm:"not null;index"`
	EnvasesDevueltos int             `gorm:"not null;default:0"`
	Total            decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Pagado           bool            `gorm:"not null;default:false"`
	// TipoPago: "no_pagado" | "pagado_completo" | "pago_parcial"; empty on legacy rows.
	TipoPago      string          `gorm:"type:varchar(20)"`
	MontoPagado   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	MedioPago     *string         `gorm:"type:varchar(20)"`
	Observaciones *string

	// Legacy fixed fields, filled from the explicit product slot mapping.
	Sodas     int `gorm:"not null;default:0"`
	Bidones10 int `gorm:"not null;default:0"`
	Bidones20 int `gorm:"not null;default:0"`

	// Balance audit as computed at registration time.
	SaldoAnterior decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	SaldoNuevo    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`

	ExcedeStock    bool    `gorm:"not null;default:false"`
	IdempotencyKey *string `gorm:"type:varchar(64);index"`
	CreatedAt      time.Time

	Items   []EntregaItem `gorm:"foreignKey:EntregaID"`
	Cliente *Cliente      `gorm:"foreignKey:ClienteID"`
}

// EntregaItem is one line of a delivery. Nombre and PrecioUnitario are copied
// from the catalog at registration time.
type EntregaItem struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	EntregaID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductoID     uuid.UUID       `gorm:"type:uuid;not null"`
	Posicion       int             `gorm:"not null"`
	Nombre         string          `gorm:"not null"`
	Cantidad       int             `gorm:"not null"`
	PrecioUnitario decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}
