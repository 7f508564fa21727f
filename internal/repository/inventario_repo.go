package repository

import (
	"context"
	"errors"
	"time"

	"repartos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InventarioRepository accesses the per-tenant vehicle stock counters.
type InventarioRepository interface {
	// FindCantidad returns 0 when the tenant has no counter for the product.
	FindCantidad(ctx context.Context, tenantID, productoID uuid.UUID) (int, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]model.StockVehiculo, error)

	// LockTx locks the counters of the given products and returns them keyed by
	// producto_id. Products without a counter are absent from the map.
	LockTx(tx *gorm.DB, tenantID uuid.UUID, productoIDs []uuid.UUID) (map[uuid.UUID]model.StockVehiculo, error)
	UpsertTx(tx *gorm.DB, tenantID, productoID uuid.UUID, cantidad int) error
}

type inventarioRepo struct{ db *gorm.DB }

func NewInventarioRepository(db *gorm.DB) InventarioRepository { return &inventarioRepo{db: db} }

func (r *inventarioRepo) FindCantidad(ctx context.Context, tenantID, productoID uuid.UUID) (int, error) {
	var s model.StockVehiculo
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND producto_id = ?", tenantID, productoID).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return s.Cantidad, nil
}

func (r *inventarioRepo) List(ctx context.Context, tenantID uuid.UUID) ([]model.StockVehiculo, error) {
	var rows []model.StockVehiculo
	err := r.db.WithContext(ctx).Preload("Producto").
		Where("tenant_id = ?", tenantID).
		Find(&rows).Error
	return rows, err
}

func (r *inventarioRepo) LockTx(tx *gorm.DB, tenantID uuid.UUID, productoIDs []uuid.UUID) (map[uuid.UUID]model.StockVehiculo, error) {
	out := make(map[uuid.UUID]model.StockVehiculo, len(productoIDs))
	if len(productoIDs) == 0 {
		return out, nil
	}
	var rows []model.StockVehiculo
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND producto_id IN ?", tenantID, productoIDs).
		Order("producto_id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ProductoID] = row
	}
	return out, nil
}

func (r *inventarioRepo) UpsertTx(tx *gorm.DB, tenantID, productoID uuid.UUID, cantidad int) error {
	row := model.StockVehiculo{
		ID:         uuid.New(),
		TenantID:   tenantID,
		ProductoID: productoID,
		Cantidad:   cantidad,
		UpdatedAt:  time.Now(),
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "producto_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"cantidad", "updated_at"}),
	}).Create(&row).Error
}
