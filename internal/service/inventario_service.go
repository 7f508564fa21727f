package service

import (
	"context"
	"fmt"
	"time"

	"repartos/internal/dto"
	"repartos/internal/liquidacion"
	"repartos/internal/model"
	"repartos/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StockCache is the read-through cache in front of the vehicle inventory.
// Implementations are best-effort: a miss or a failure falls back to the DB.
// Set must drop the value when Invalidar ran after gen was read, otherwise a
// slow reader could cache a count older than the last write.
type StockCache interface {
	Get(ctx context.Context, tenantID, productoID uuid.UUID) (int, bool)
	Generacion(ctx context.Context, tenantID uuid.UUID) int64
	Set(ctx context.Context, tenantID, productoID uuid.UUID, cantidad int, gen int64)
	Invalidar(ctx context.Context, tenantID uuid.UUID)
}

type noopCache struct{}

func (noopCache) Get(context.Context, uuid.UUID, uuid.UUID) (int, bool) { return 0, false }
func (noopCache) Generacion(context.Context, uuid.UUID) int64           { return -1 }
func (noopCache) Set(context.Context, uuid.UUID, uuid.UUID, int, int64) {}
func (noopCache) Invalidar(context.Context, uuid.UUID)                  {}

// LineaStock is one delivery line as seen by the stock guard.
type LineaStock struct {
	ProductoID    uuid.UUID
	Nombre        string
	Cantidad      int
	StockCatalogo int
}

// InventarioService owns the vehicle inventory: availability reads, the stock
// guard, and manual adjustments.
type InventarioService interface {
	Disponible(ctx context.Context, tenantID, productoID uuid.UUID) (int, error)
	Snapshot(ctx context.Context, tenantID uuid.UUID) (*dto.InventarioResponse, error)
	Ajustar(ctx context.Context, tenantID, productoID uuid.UUID, req dto.AjustarStockRequest) (*dto.StockVehiculoResponse, error)
	// VerificarStock returns one warning per line asking for more than the
	// vehicle holds or the catalog lists. In strict mode any warning is a
	// ValidationError instead.
	VerificarStock(ctx context.Context, tenantID uuid.UUID, lineas []LineaStock) ([]dto.AdvertenciaStock, error)
	ListarMovimientos(ctx context.Context, tenantID uuid.UUID, filter dto.MovimientoFilter) (*dto.MovimientoListResponse, error)
}

type inventarioService struct {
	repo          repository.InventarioRepository
	productoRepo  repository.ProductoRepository
	movimientos   repository.MovimientoStockRepository
	tx            Transactor
	cache         StockCache
	guardEstricto bool
}

func NewInventarioService(
	repo repository.InventarioRepository,
	productoRepo repository.ProductoRepository,
	movimientos repository.MovimientoStockRepository,
	tx Transactor,
	cache StockCache,
	guardEstricto bool,
) InventarioService {
	if cache == nil {
		cache = noopCache{}
	}
	return &inventarioService{
		repo:          repo,
		productoRepo:  productoRepo,
		movimientos:   movimientos,
		tx:            tx,
		cache:         cache,
		guardEstricto: guardEstricto,
	}
}

func (s *inventarioService) Disponible(ctx context.Context, tenantID, productoID uuid.UUID) (int, error) {
	if n, ok := s.cache.Get(ctx, tenantID, productoID); ok {
		return n, nil
	}
	gen := s.cache.Generacion(ctx, tenantID)
	n, err := s.repo.FindCantidad(ctx, tenantID, productoID)
	if err != nil {
		return 0, &PersistenceError{Op: "leer inventario", Err: err}
	}
	if n < 0 {
		n = 0
	}
	s.cache.Set(ctx, tenantID, productoID, n, gen)
	return n, nil
}

func (s *inventarioService) Snapshot(ctx context.Context, tenantID uuid.UUID) (*dto.InventarioResponse, error) {
	rows, err := s.repo.List(ctx, tenantID)
	if err != nil {
		return nil, &PersistenceError{Op: "listar inventario", Err: err}
	}
	resp := &dto.InventarioResponse{Items: make([]dto.StockVehiculoResponse, 0, len(rows))}
	for _, r := range rows {
		resp.Items = append(resp.Items, stockToResponse(r))
	}
	return resp, nil
}

func (s *inventarioService) Ajustar(ctx context.Context, tenantID, productoID uuid.UUID, req dto.AjustarStockRequest) (*dto.StockVehiculoResponse, error) {
	if req.Cantidad == nil || *req.Cantidad < 0 {
		return nil, &ValidationError{Campo: "cantidad", Mensaje: "debe ser mayor o igual a cero"}
	}
	p, err := s.productoRepo.FindByID(ctx, tenantID, productoID)
	if err != nil {
		return nil, notFoundOr(err, "producto", productoID, "buscar producto")
	}

	nuevo := *req.Cantidad
	err = s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		actuales, err := s.repo.LockTx(tx, tenantID, []uuid.UUID{productoID})
		if err != nil {
			return err
		}
		anterior := actuales[productoID].Cantidad
		if err := s.repo.UpsertTx(tx, tenantID, productoID, nuevo); err != nil {
			return err
		}
		return s.movimientos.CreateTx(tx, &model.MovimientoStock{
			ID:            uuid.New(),
			TenantID:      tenantID,
			ProductoID:    productoID,
			Tipo:          "ajuste_manual",
			Cantidad:      nuevo - anterior,
			StockAnterior: anterior,
			StockNuevo:    nuevo,
			Motivo:        req.Motivo,
		})
	})
	if err != nil {
		return nil, &PersistenceError{Op: "ajustar inventario", Err: err}
	}
	s.cache.Invalidar(ctx, tenantID)

	return &dto.StockVehiculoResponse{
		ProductoID: productoID.String(),
		Nombre:     p.Nombre,
		Cantidad:   nuevo,
		UpdatedAt:  time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (s *inventarioService) VerificarStock(ctx context.Context, tenantID uuid.UUID, lineas []LineaStock) ([]dto.AdvertenciaStock, error) {
	advertencias := []dto.AdvertenciaStock{}
	for _, l := range lineas {
		if l.Cantidad <= 0 {
			continue
		}
		disponible, err := s.Disponible(ctx, tenantID, l.ProductoID)
		if err != nil {
			return nil, err
		}
		if l.Cantidad > disponible {
			advertencias = append(advertencias, dto.AdvertenciaStock{
				ProductoID: l.ProductoID.String(),
				Nombre:     l.Nombre,
				Solicitado: l.Cantidad,
				Disponible: disponible,
				Origen:     "vehiculo",
			})
		}
		if l.Cantidad > l.StockCatalogo {
			advertencias = append(advertencias, dto.AdvertenciaStock{
				ProductoID: l.ProductoID.String(),
				Nombre:     l.Nombre,
				Solicitado: l.Cantidad,
				Disponible: l.StockCatalogo,
				Origen:     "catalogo",
			})
		}
	}
	if s.guardEstricto && len(advertencias) > 0 {
		a := advertencias[0]
		return nil, &ValidationError{
			Campo:   "items",
			Mensaje: fmt.Sprintf("%s: se solicitaron %d y hay %d disponibles (%s)", a.Nombre, a.Solicitado, a.Disponible, a.Origen),
		}
	}
	return advertencias, nil
}

func (s *inventarioService) ListarMovimientos(ctx context.Context, tenantID uuid.UUID, filter dto.MovimientoFilter) (*dto.MovimientoListResponse, error) {
	f := repository.MovimientoStockFilter{Tipo: filter.Tipo, Page: filter.Page, Limit: filter.Limit}
	if filter.ProductoID != "" {
		pid, err := uuid.Parse(filter.ProductoID)
		if err != nil {
			return nil, &ValidationError{Campo: "producto_id", Mensaje: "uuid invalido"}
		}
		f.ProductoID = &pid
	}
	movs, total, err := s.movimientos.List(ctx, tenantID, f)
	if err != nil {
		return nil, &PersistenceError{Op: "listar movimientos", Err: err}
	}
	resp := &dto.MovimientoListResponse{
		Data:  make([]dto.MovimientoStockResponse, 0, len(movs)),
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}
	for _, m := range movs {
		resp.Data = append(resp.Data, movimientoToResponse(m))
	}
	return resp, nil
}

// descontarInventarioTx applies delivered quantities to the locked vehicle
// counters, clamping at zero, and records one movement per product.
func descontarInventarioTx(
	tx *gorm.DB,
	repo repository.InventarioRepository,
	movimientos repository.MovimientoStockRepository,
	tenantID, entregaID uuid.UUID,
	cantidades map[uuid.UUID]int,
	orden []uuid.UUID,
) error {
	actuales, err := repo.LockTx(tx, tenantID, orden)
	if err != nil {
		return err
	}
	ref := entregaID
	for _, pid := range orden {
		cantidad := cantidades[pid]
		if cantidad <= 0 {
			continue
		}
		anterior := actuales[pid].Cantidad
		nuevo := liquidacion.Descontar(anterior, cantidad)
		if nuevo != anterior {
			if err := repo.UpsertTx(tx, tenantID, pid, nuevo); err != nil {
				return err
			}
		}
		if err := movimientos.CreateTx(tx, &model.MovimientoStock{
			ID:            uuid.New(),
			TenantID:      tenantID,
			ProductoID:    pid,
			Tipo:          "entrega",
			Cantidad:      nuevo - anterior,
			StockAnterior: anterior,
			StockNuevo:    nuevo,
			Motivo:        fmt.Sprintf("Entrega %s (solicitado %d)", entregaID.String()[:8], cantidad),
			ReferenciaID:  &ref,
		}); err != nil {
			return err
		}
	}
	return nil
}

func stockToResponse(r model.StockVehiculo) dto.StockVehiculoResponse {
	out := dto.StockVehiculoResponse{
		ProductoID: r.ProductoID.String(),
		Cantidad:   r.Cantidad,
		UpdatedAt:  r.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if r.Producto != nil {
		out.Nombre = r.Producto.Nombre
	}
	return out
}

func movimientoToResponse(m model.MovimientoStock) dto.MovimientoStockResponse {
	out := dto.MovimientoStockResponse{
		ID:            m.ID.String(),
		ProductoID:    m.ProductoID.String(),
		Tipo:          m.Tipo,
		Cantidad:      m.Cantidad,
		StockAnterior: m.StockAnterior,
		StockNuevo:    m.StockNuevo,
		Motivo:        m.Motivo,
		CreatedAt:     m.CreatedAt.UTC().Format(time.RFC3339),
	}
	if m.ReferenciaID != nil {
		ref := m.ReferenciaID.String()
		out.ReferenciaID = &ref
	}
	return out
}
