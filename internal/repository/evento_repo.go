package repository

import (
	"context"
	"time"

	"repartos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventoRepository is the transactional outbox of delivery-created events.
type EventoRepository interface {
	CreateTx(tx *gorm.DB, ev *model.EventoEntrega) error
	// ListPendientes returns unpublished events whose next retry is due.
	ListPendientes(ctx context.Context, now time.Time, limit int) ([]model.EventoEntrega, error)
	MarcarPublicado(ctx context.Context, id uuid.UUID, at time.Time) error
	MarcarPublicadoPorEntrega(ctx context.Context, entregaID uuid.UUID, at time.Time) error
	RegistrarFallo(ctx context.Context, id uuid.UUID, msg string, nextRetry time.Time) error
}

type eventoRepo struct{ db *gorm.DB }

func NewEventoRepository(db *gorm.DB) EventoRepository { return &eventoRepo{db: db} }

func (r *eventoRepo) CreateTx(tx *gorm.DB, ev *model.EventoEntrega) error {
	return tx.Create(ev).Error
}

func (r *eventoRepo) ListPendientes(ctx context.Context, now time.Time, limit int) ([]model.EventoEntrega, error) {
	var eventos []model.EventoEntrega
	err := r.db.WithContext(ctx).
		Where("publicado = false AND (next_retry_at IS NULL OR next_retry_at <= ?)", now).
		Order("created_at ASC").
		Limit(limit).
		Find(&eventos).Error
	return eventos, err
}

func (r *eventoRepo) MarcarPublicado(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.EventoEntrega{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"publicado":     true,
			"publicado_at":  at,
			"next_retry_at": nil,
			"last_error":    nil,
		}).Error
}

func (r *eventoRepo) MarcarPublicadoPorEntrega(ctx context.Context, entregaID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.EventoEntrega{}).
		Where("entrega_id = ? AND publicado = false", entregaID).
		Updates(map[string]interface{}{"publicado": true, "publicado_at": at}).Error
}

func (r *eventoRepo) RegistrarFallo(ctx context.Context, id uuid.UUID, msg string, nextRetry time.Time) error {
	return r.db.WithContext(ctx).Model(&model.EventoEntrega{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"intentos":      gorm.Expr("intentos + 1"),
			"last_error":    msg,
			"next_retry_at": nextRetry,
		}).Error
}
