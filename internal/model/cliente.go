package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Cliente is a route customer and its running balance.
// SaldoPendiente is what the client owes right now; it is only written through
// liquidacion.Transicion. The Ultima*/Bidones*/Sodas fields are a snapshot of the
// most recent delivery.
type Cliente struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID       uuid.UUID `gorm:"type:uuid;not null;index"`
	Nombre         string    `gorm:"not null;index"`
	Telefono       *string
	Direccion      *string
	Email          *string
	SaldoPendiente decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`

	Bidones10               int               `gorm:"not null;default:0"`
	Bidones20               int               `gorm:"not null;default:0"`
	Sodas                   int               `gorm:"not null;default:0"`
	EnvasesDevueltos        int               `gorm:"not null;default:0"`
	UltimoTotal             decimal.Decimal   `gorm:"type:decimal(12,2);not null;default:0"`
	UltimoPagado            bool              `gorm:"not null;default:false"`
	CantidadesUltimaEntrega datatypes.JSONMap `gorm:"type:jsonb"`
	UltimaEntregaID         *uuid.UUID        `gorm:"type:uuid"`
	UltimaEntregaAt         *time.Time

	// Version is bumped by every ledger write and checked on update.
	Version   int  `gorm:"not null;default:0"`
	Activo    bool `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
