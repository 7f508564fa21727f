package service

import (
	"context"
	"errors"

	"repartos/internal/dto"
	"repartos/internal/liquidacion"
	"repartos/internal/model"
	"repartos/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductoService defines the business logic contract for the catalog.
type ProductoService interface {
	Crear(ctx context.Context, tenantID uuid.UUID, req dto.CrearProductoRequest) (*dto.ProductoResponse, error)
	ObtenerPorID(ctx context.Context, tenantID, id uuid.UUID) (*dto.ProductoResponse, error)
	Listar(ctx context.Context, tenantID uuid.UUID, filter dto.ProductoFilter) (*dto.ProductoListResponse, error)
	Actualizar(ctx context.Context, tenantID, id uuid.UUID, req dto.ActualizarProductoRequest) (*dto.ProductoResponse, error)
}

type productoService struct {
	repo repository.ProductoRepository
}

func NewProductoService(repo repository.ProductoRepository) ProductoService {
	return &productoService{repo: repo}
}

func (s *productoService) Crear(ctx context.Context, tenantID uuid.UUID, req dto.CrearProductoRequest) (*dto.ProductoResponse, error) {
	if req.PrecioUnitario.IsNegative() {
		return nil, &ValidationError{Campo: "precio_unitario", Mensaje: "no puede ser negativo"}
	}
	if req.Stock < 0 {
		return nil, &ValidationError{Campo: "stock", Mensaje: "no puede ser negativo"}
	}
	slot, err := s.validarSlot(ctx, tenantID, uuid.Nil, req.SlotLegacy)
	if err != nil {
		return nil, err
	}

	p := &model.Producto{
		ID:             uuid.New(),
		TenantID:       tenantID,
		Nombre:         req.Nombre,
		PrecioUnitario: req.PrecioUnitario,
		Stock:          req.Stock,
		SlotLegacy:     slot,
		Activo:         true,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, slotOrPersistence(err, "crear producto")
	}
	resp := productoToResponse(p)
	return &resp, nil
}

func (s *productoService) ObtenerPorID(ctx context.Context, tenantID, id uuid.UUID) (*dto.ProductoResponse, error) {
	p, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, notFoundOr(err, "producto", id, "buscar producto")
	}
	resp := productoToResponse(p)
	return &resp, nil
}

func (s *productoService) Listar(ctx context.Context, tenantID uuid.UUID, filter dto.ProductoFilter) (*dto.ProductoListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}
	productos, total, err := s.repo.List(ctx, tenantID, filter)
	if err != nil {
		return nil, &PersistenceError{Op: "listar productos", Err: err}
	}
	resp := &dto.ProductoListResponse{
		Data:       make([]dto.ProductoResponse, 0, len(productos)),
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages(total, filter.Limit),
	}
	for i := range productos {
		resp.Data = append(resp.Data, productoToResponse(&productos[i]))
	}
	return resp, nil
}

func (s *productoService) Actualizar(ctx context.Context, tenantID, id uuid.UUID, req dto.ActualizarProductoRequest) (*dto.ProductoResponse, error) {
	p, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, notFoundOr(err, "producto", id, "buscar producto")
	}
	if req.Nombre != nil {
		p.Nombre = *req.Nombre
	}
	if req.PrecioUnitario != nil {
		if req.PrecioUnitario.IsNegative() {
			return nil, &ValidationError{Campo: "precio_unitario", Mensaje: "no puede ser negativo"}
		}
		p.PrecioUnitario = *req.PrecioUnitario
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return nil, &ValidationError{Campo: "stock", Mensaje: "no puede ser negativo"}
		}
		p.Stock = *req.Stock
	}
	if req.Activo != nil {
		p.Activo = *req.Activo
	}
	if req.SlotLegacy != nil {
		slot, err := s.validarSlot(ctx, tenantID, p.ID, req.SlotLegacy)
		if err != nil {
			return nil, err
		}
		p.SlotLegacy = slot
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, slotOrPersistence(err, "actualizar producto")
	}
	resp := productoToResponse(p)
	return &resp, nil
}

// validarSlot checks the legacy slot is known and not already taken by another
// active product of the tenant. An empty value clears the mapping.
func (s *productoService) validarSlot(ctx context.Context, tenantID, propio uuid.UUID, slot *string) (*string, error) {
	if slot == nil || *slot == "" {
		return nil, nil
	}
	if !liquidacion.Slot(*slot).Valido() {
		return nil, &ValidationError{Campo: "slot_legacy", Mensaje: "debe ser sodas, bidones10 o bidones20"}
	}
	otro, err := s.repo.FindBySlot(ctx, tenantID, *slot)
	switch {
	case err == nil && otro.ID != propio:
		return nil, &ValidationError{Campo: "slot_legacy", Mensaje: "ya asignado a " + otro.Nombre}
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, &PersistenceError{Op: "buscar slot", Err: err}
	}
	v := *slot
	return &v, nil
}

func productoToResponse(p *model.Producto) dto.ProductoResponse {
	return dto.ProductoResponse{
		ID:             p.ID.String(),
		Nombre:         p.Nombre,
		PrecioUnitario: p.PrecioUnitario,
		Stock:          p.Stock,
		SlotLegacy:     p.SlotLegacy,
		Activo:         p.Activo,
	}
}

// slotOrPersistence maps the unique (tenant, slot_legacy) index violation, hit
// when two writers race past validarSlot, onto the same ValidationError.
func slotOrPersistence(err error, op string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &ValidationError{Campo: "slot_legacy", Mensaje: "ya asignado a otro producto activo"}
	}
	return &PersistenceError{Op: op, Err: err}
}
