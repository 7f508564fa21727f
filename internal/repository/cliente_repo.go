package repository

import (
	"context"

	"repartos/internal/dto"
	"repartos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ClienteRepository interface {
	Create(ctx context.Context, c *model.Cliente) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*model.Cliente, error)
	List(ctx context.Context, tenantID uuid.UUID, filter dto.ClienteFilter) ([]model.Cliente, int64, error)

	// FindByIDForUpdateTx locks the client row until the transaction ends.
	// Every writer of saldo_pendiente serializes on this lock.
	FindByIDForUpdateTx(tx *gorm.DB, tenantID, id uuid.UUID) (*model.Cliente, error)
	// UpdateLedgerTx writes balance and snapshot fields and bumps version.
	// It returns ErrVersionConflict when the stored version is not expectedVersion.
	UpdateLedgerTx(tx *gorm.DB, c *model.Cliente, expectedVersion int) error
}

type clienteRepo struct{ db *gorm.DB }

func NewClienteRepository(db *gorm.DB) ClienteRepository { return &clienteRepo{db: db} }

func (r *clienteRepo) Create(ctx context.Context, c *model.Cliente) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *clienteRepo) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*model.Cliente, error) {
	var c model.Cliente
	err := r.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", id, tenantID).First(&c).Error
	return &c, err
}

func (r *clienteRepo) List(ctx context.Context, tenantID uuid.UUID, filter dto.ClienteFilter) ([]model.Cliente, int64, error) {
	var clientes []model.Cliente
	var total int64

	q := r.db.WithContext(ctx).Model(&model.Cliente{}).Where("tenant_id = ? AND activo = true", tenantID)
	if filter.Nombre != "" {
		q = q.Where("nombre ILIKE ?", "%"+filter.Nombre+"%")
	}
	if filter.ConDeuda {
		q = q.Where("saldo_pendiente > 0")
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (filter.Page - 1) * filter.Limit
	err := q.Order("nombre ASC").Limit(filter.Limit).Offset(offset).Find(&clientes).Error
	return clientes, total, err
}

func (r *clienteRepo) FindByIDForUpdateTx(tx *gorm.DB, tenantID, id uuid.UUID) (*model.Cliente, error) {
	var c model.Cliente
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&c).Error
	return &c, err
}

func (r *clienteRepo) UpdateLedgerTx(tx *gorm.DB, c *model.Cliente, expectedVersion int) error {
	res := tx.Model(&model.Cliente{}).
		Where("id = ? AND tenant_id = ? AND version = ?", c.ID, c.TenantID, expectedVersion).
		Updates(map[string]interface{}{
			"saldo_pendiente":           c.SaldoPendiente,
			"bidones10":                 c.Bidones10,
			"bidones20":                 c.Bidones20,
			"sodas":                     c.Sodas,
			"envases_devueltos":         c.EnvasesDevueltos,
			"ultimo_total":              c.UltimoTotal,
			"ultimo_pagado":             c.UltimoPagado,
			"cantidades_ultima_entrega": c.CantidadesUltimaEntrega,
			"ultima_entrega_id":         c.UltimaEntregaID,
			"ultima_entrega_at":         c.UltimaEntregaAt,
			"version":                   expectedVersion + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	c.Version = expectedVersion + 1
	return nil
}
