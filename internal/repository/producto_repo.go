package repository

import (
	"context"

	"repartos/internal/dto"
	"repartos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductoRepository defines the data access contract for the catalog.
// Services depend on this interface, not on the concrete GORM implementation,
// enabling clean unit testing via stubs.
type ProductoRepository interface {
	Create(ctx context.Context, p *model.Producto) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*model.Producto, error)
	FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]model.Producto, error)
	List(ctx context.Context, tenantID uuid.UUID, filter dto.ProductoFilter) ([]model.Producto, int64, error)
	Update(ctx context.Context, p *model.Producto) error

	// FindBySlot returns the active product mapped onto a legacy slot.
	FindBySlot(ctx context.Context, tenantID uuid.UUID, slot string) (*model.Producto, error)
	// ListConSlotTx is used by reconciliation to map legacy slot quantities.
	ListConSlotTx(tx *gorm.DB, tenantID uuid.UUID) ([]model.Producto, error)
}

type productoRepo struct{ db *gorm.DB }

func NewProductoRepository(db *gorm.DB) ProductoRepository { return &productoRepo{db: db} }

func (r *productoRepo) Create(ctx context.Context, p *model.Producto) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *productoRepo) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*model.Producto, error) {
	var p model.Producto
	err := r.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", id, tenantID).First(&p).Error
	return &p, err
}

func (r *productoRepo) FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]model.Producto, error) {
	var productos []model.Producto
	if len(ids) == 0 {
		return productos, nil
	}
	err := r.db.WithContext(ctx).Where("tenant_id = ? AND id IN ?", tenantID, ids).Find(&productos).Error
	return productos, err
}

func (r *productoRepo) List(ctx context.Context, tenantID uuid.UUID, filter dto.ProductoFilter) ([]model.Producto, int64, error) {
	var productos []model.Producto
	var total int64

	q := r.db.WithContext(ctx).Model(&model.Producto{}).Where("tenant_id = ?", tenantID)

	// Activo filter: "false" = inactivos, "all" = todos, anything else = activos (default)
	switch filter.Activo {
	case "false":
		q = q.Where("activo = false")
	case "all":
	default:
		q = q.Where("activo = true")
	}
	if filter.Nombre != "" {
		q = q.Where("nombre ILIKE ?", "%"+filter.Nombre+"%")
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	err := q.Order("nombre ASC").Limit(filter.Limit).Offset(offset).Find(&productos).Error
	return productos, total, err
}

func (r *productoRepo) Update(ctx context.Context, p *model.Producto) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *productoRepo) FindBySlot(ctx context.Context, tenantID uuid.UUID, slot string) (*model.Producto, error) {
	var p model.Producto
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND slot_legacy = ? AND activo = true", tenantID, slot).
		First(&p).Error
	return &p, err
}

func (r *productoRepo) ListConSlotTx(tx *gorm.DB, tenantID uuid.UUID) ([]model.Producto, error) {
	var productos []model.Producto
	err := tx.Where("tenant_id = ? AND slot_legacy IS NOT NULL", tenantID).
		Order("activo DESC, created_at ASC").
		Find(&productos).Error
	return productos, err
}
