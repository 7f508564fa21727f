package model

import (
	"time"

	"github.com/google/uuid"
)

// EventoEntrega is the outbox row for the delivery-created event. It is written
// in the same transaction as the delivery and relayed to the job queue until
// marked published.
type EventoEntrega struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID    uuid.UUID `gorm:"type:uuid;not null"`
	EntregaID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	Publicado   bool      `gorm:"not null;default:false;index"`
	PublicadoAt *time.Time
	Intentos    int `gorm:"not null;default:0"`
	NextRetryAt *time.Time
	LastError   *string
	CreatedAt   time.Time
}

// TableName overrides GORM's default pluralization.
func (EventoEntrega) TableName() string { return "eventos_entrega" }
