package repository

import (
	"context"
	"time"

	"repartos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ConciliacionRepository interface {
	CreateTx(tx *gorm.DB, c *model.Conciliacion) error
	// LockOrCreateTx inserts an empty record for the delivery if none exists
	// and returns it locked FOR UPDATE.
	LockOrCreateTx(tx *gorm.DB, tenantID, entregaID uuid.UUID) (*model.Conciliacion, error)
	SaveTx(tx *gorm.DB, c *model.Conciliacion) error
	FindByEntregaID(ctx context.Context, tenantID, entregaID uuid.UUID) (*model.Conciliacion, error)
	// RegistrarFallo records a failed attempt outside any transaction.
	RegistrarFallo(ctx context.Context, tenantID, entregaID uuid.UUID, msg string) error
}

type conciliacionRepo struct{ db *gorm.DB }

func NewConciliacionRepository(db *gorm.DB) ConciliacionRepository {
	return &conciliacionRepo{db: db}
}

func (r *conciliacionRepo) CreateTx(tx *gorm.DB, c *model.Conciliacion) error {
	return tx.Create(c).Error
}

func (r *conciliacionRepo) LockOrCreateTx(tx *gorm.DB, tenantID, entregaID uuid.UUID) (*model.Conciliacion, error) {
	nuevo := model.Conciliacion{EntregaID: entregaID, TenantID: tenantID}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&nuevo).Error; err != nil {
		return nil, err
	}
	var c model.Conciliacion
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("entrega_id = ? AND tenant_id = ?", entregaID, tenantID).
		First(&c).Error
	return &c, err
}

func (r *conciliacionRepo) SaveTx(tx *gorm.DB, c *model.Conciliacion) error {
	return tx.Save(c).Error
}

func (r *conciliacionRepo) FindByEntregaID(ctx context.Context, tenantID, entregaID uuid.UUID) (*model.Conciliacion, error) {
	var c model.Conciliacion
	err := r.db.WithContext(ctx).
		Where("entrega_id = ? AND tenant_id = ?", entregaID, tenantID).
		First(&c).Error
	return &c, err
}

func (r *conciliacionRepo) RegistrarFallo(ctx context.Context, tenantID, entregaID uuid.UUID, msg string) error {
	c := model.Conciliacion{
		EntregaID:   entregaID,
		TenantID:    tenantID,
		Intentos:    1,
		UltimoError: &msg,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "entrega_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"intentos":     gorm.Expr("conciliaciones.intentos + 1"),
			"ultimo_error": msg,
			"updated_at":   time.Now(),
		}),
	}).Create(&c).Error
}
