package repository

import (
	"context"

	"repartos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TenantRepository interface {
	Create(ctx context.Context, t *model.Tenant) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error)
	FindByIDForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Tenant, error)
	IncrementarUsuariosTx(tx *gorm.DB, id uuid.UUID) error
}

type tenantRepo struct{ db *gorm.DB }

func NewTenantRepository(db *gorm.DB) TenantRepository { return &tenantRepo{db: db} }

func (r *tenantRepo) Create(ctx context.Context, t *model.Tenant) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *tenantRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error) {
	var t model.Tenant
	err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error
	return &t, err
}

func (r *tenantRepo) FindByIDForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Tenant, error) {
	var t model.Tenant
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&t, "id = ?", id).Error
	return &t, err
}

func (r *tenantRepo) IncrementarUsuariosTx(tx *gorm.DB, id uuid.UUID) error {
	return tx.Model(&model.Tenant{}).Where("id = ?", id).
		Update("usuarios_actuales", gorm.Expr("usuarios_actuales + 1")).Error
}
