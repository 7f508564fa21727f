package repository

import (
	"context"

	"repartos/internal/dto"
	"repartos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EntregaRepository has no update or delete: deliveries are immutable.
type EntregaRepository interface {
	CreateTx(tx *gorm.DB, e *model.Entrega) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*model.Entrega, error)
	FindByIDTx(tx *gorm.DB, tenantID, id uuid.UUID) (*model.Entrega, error)
	FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*model.Entrega, error)
	List(ctx context.Context, tenantID uuid.UUID, filter dto.EntregaFilter) ([]model.Entrega, int64, error)
}

type entregaRepo struct{ db *gorm.DB }

func NewEntregaRepository(db *gorm.DB) EntregaRepository { return &entregaRepo{db: db} }

func (r *entregaRepo) CreateTx(tx *gorm.DB, e *model.Entrega) error {
	return tx.Create(e).Error
}

func itemsOrdenados(db *gorm.DB) *gorm.DB { return db.Order("posicion ASC") }

func (r *entregaRepo) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*model.Entrega, error) {
	var e model.Entrega
	err := r.db.WithContext(ctx).Preload("Items", itemsOrdenados).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&e).Error
	return &e, err
}

func (r *entregaRepo) FindByIDTx(tx *gorm.DB, tenantID, id uuid.UUID) (*model.Entrega, error) {
	var e model.Entrega
	err := tx.Preload("Items", itemsOrdenados).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&e).Error
	return &e, err
}

func (r *entregaRepo) FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*model.Entrega, error) {
	var e model.Entrega
	err := r.db.WithContext(ctx).Preload("Items", itemsOrdenados).
		Where("tenant_id = ? AND idempotency_key = ?", tenantID, key).
		First(&e).Error
	return &e, err
}

func (r *entregaRepo) List(ctx context.Context, tenantID uuid.UUID, filter dto.EntregaFilter) ([]model.Entrega, int64, error) {
	var entregas []model.Entrega
	var total int64

	q := r.db.WithContext(ctx).Model(&model.Entrega{}).Where("tenant_id = ?", tenantID)
	if filter.ClienteID != "" {
		q = q.Where("cliente_id = ?", filter.ClienteID)
	}
	if filter.Desde != "" {
		q = q.Where("DATE(fecha) >= ?", filter.Desde)
	}
	if filter.Hasta != "" {
		q = q.Where("DATE(fecha) <= ?", filter.Hasta)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	err := q.Preload("Items", itemsOrdenados).
		Order("fecha DESC").
		Offset(offset).Limit(filter.Limit).
		Find(&entregas).Error
	return entregas, total, err
}
