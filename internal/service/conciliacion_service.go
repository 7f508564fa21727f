package service

import (
	"context"
	"errors"

	"repartos/internal/dto"
	"repartos/internal/liquidacion"
	"repartos/internal/model"
	"repartos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ConciliacionService applies the effects of a persisted delivery that have not
// been applied yet: the client balance (only for deliveries that did not go
// through RegistrarEntrega) and the vehicle inventory. Running it twice for the
// same delivery is a no-op.
type ConciliacionService interface {
	ConciliarEntrega(ctx context.Context, tenantID, entregaID uuid.UUID) (*dto.ConciliacionResponse, error)
	ObtenerEstado(ctx context.Context, tenantID, entregaID uuid.UUID) (*dto.ConciliacionResponse, error)
}

// ConciliacionRepos groups the repositories the reconciliation writes through.
type ConciliacionRepos struct {
	Entregas       repository.EntregaRepository
	Clientes       repository.ClienteRepository
	Productos      repository.ProductoRepository
	Conciliaciones repository.ConciliacionRepository
	Inventario     repository.InventarioRepository
	Movimientos    repository.MovimientoStockRepository
}

type conciliacionService struct {
	repos ConciliacionRepos
	tx    Transactor
	cache StockCache
}

func NewConciliacionService(repos ConciliacionRepos, tx Transactor, cache StockCache) ConciliacionService {
	if cache == nil {
		cache = noopCache{}
	}
	return &conciliacionService{repos: repos, tx: tx, cache: cache}
}

func (s *conciliacionService) ConciliarEntrega(ctx context.Context, tenantID, entregaID uuid.UUID) (*dto.ConciliacionResponse, error) {
	var estado model.Conciliacion
	sinCambios := false
	inventarioTocado := false

	err := s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		entrega, err := s.repos.Entregas.FindByIDTx(tx, tenantID, entregaID)
		if err != nil {
			return notFoundOr(err, "entrega", entregaID, "buscar entrega")
		}

		c, err := s.repos.Conciliaciones.LockOrCreateTx(tx, tenantID, entregaID)
		if err != nil {
			return err
		}
		if c.Completa() {
			sinCambios = true
			estado = *c
			return nil
		}

		if !c.SaldoAplicado {
			if err := s.aplicarSaldoTx(tx, entrega, c); err != nil {
				return err
			}
		}
		if !c.InventarioAplicado {
			cantidades, orden, err := s.cantidadesEntregadasTx(tx, entrega)
			if err != nil {
				return err
			}
			if err := descontarInventarioTx(tx, s.repos.Inventario, s.repos.Movimientos, tenantID, entregaID, cantidades, orden); err != nil {
				return err
			}
			c.InventarioAplicado = true
			inventarioTocado = len(orden) > 0
		}

		c.Intentos++
		c.UltimoError = nil
		if err := s.repos.Conciliaciones.SaveTx(tx, c); err != nil {
			return err
		}
		estado = *c
		return nil
	})
	if err != nil {
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			if ferr := s.repos.Conciliaciones.RegistrarFallo(ctx, tenantID, entregaID, err.Error()); ferr != nil {
				log.Warn().Err(ferr).Str("entrega_id", entregaID.String()).Msg("conciliacion: no se pudo registrar el fallo")
			}
		}
		log.Error().Err(err).
			Str("tenant_id", tenantID.String()).
			Str("entrega_id", entregaID.String()).
			Msg("conciliacion: fallo")
		return nil, passThrough(err, "conciliar entrega")
	}

	if inventarioTocado {
		s.cache.Invalidar(ctx, tenantID)
	}

	resp := conciliacionToResponse(&estado)
	resp.SinCambios = sinCambios
	log.Info().
		Str("tenant_id", tenantID.String()).
		Str("entrega_id", entregaID.String()).
		Bool("sin_cambios", sinCambios).
		Msg("conciliacion: entrega conciliada")
	return &resp, nil
}

// aplicarSaldoTx applies the delivery to the client balance with the same
// Transicion the engine uses. The snapshot is only overwritten when this
// delivery is not older than the one the client already describes.
func (s *conciliacionService) aplicarSaldoTx(tx *gorm.DB, e *model.Entrega, c *model.Conciliacion) error {
	cliente, err := s.repos.Clientes.FindByIDForUpdateTx(tx, e.TenantID, e.ClienteID)
	if err != nil {
		return notFoundOr(err, "cliente", e.ClienteID, "bloquear cliente")
	}
	res, err := transicionDe(cliente.SaldoPendiente, e)
	if err != nil {
		return validationFrom(err)
	}

	version := cliente.Version
	cliente.SaldoPendiente = res.SaldoNuevo
	if snapshotVigente(cliente, e) {
		aplicarSnapshot(cliente, e)
	}
	if err := s.repos.Clientes.UpdateLedgerTx(tx, cliente, version); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return ErrConflictoConcurrencia
		}
		return err
	}

	origen := "conciliacion"
	anterior, nuevo := res.SaldoAnterior, res.SaldoNuevo
	c.SaldoAplicado = true
	c.OrigenSaldo = &origen
	c.SaldoAnterior = &anterior
	c.SaldoNuevo = &nuevo
	return nil
}

// cantidadesEntregadasTx returns delivered quantity per product. The item list
// is preferred; deliveries without items fall back to the legacy slot fields
// mapped through each product's slot_legacy.
func (s *conciliacionService) cantidadesEntregadasTx(tx *gorm.DB, e *model.Entrega) (map[uuid.UUID]int, []uuid.UUID, error) {
	cantidades := make(map[uuid.UUID]int)
	var orden []uuid.UUID
	sumar := func(pid uuid.UUID, q int) {
		if q <= 0 {
			return
		}
		if _, ok := cantidades[pid]; !ok {
			orden = append(orden, pid)
		}
		cantidades[pid] += q
	}

	for _, it := range e.Items {
		sumar(it.ProductoID, it.Cantidad)
	}
	if len(orden) > 0 {
		return cantidades, orden, nil
	}

	legacy := map[liquidacion.Slot]int{
		liquidacion.SlotSodas:     e.Sodas,
		liquidacion.SlotBidones10: e.Bidones10,
		liquidacion.SlotBidones20: e.Bidones20,
	}
	if e.Sodas <= 0 && e.Bidones10 <= 0 && e.Bidones20 <= 0 {
		return cantidades, orden, nil
	}

	productos, err := s.repos.Productos.ListConSlotTx(tx, e.TenantID)
	if err != nil {
		return nil, nil, err
	}
	porSlot := make(map[liquidacion.Slot]uuid.UUID)
	for _, p := range productos {
		if p.SlotLegacy == nil {
			continue
		}
		slot := liquidacion.Slot(*p.SlotLegacy)
		if _, ok := porSlot[slot]; !ok && slot.Valido() {
			porSlot[slot] = p.ID
		}
	}
	for _, slot := range liquidacion.Slots {
		pid, ok := porSlot[slot]
		if !ok {
			if legacy[slot] > 0 {
				log.Warn().
					Str("entrega_id", e.ID.String()).
					Str("slot", string(slot)).
					Msg("conciliacion: ningun producto mapeado al slot, cantidad ignorada")
			}
			continue
		}
		sumar(pid, legacy[slot])
	}
	return cantidades, orden, nil
}

func (s *conciliacionService) ObtenerEstado(ctx context.Context, tenantID, entregaID uuid.UUID) (*dto.ConciliacionResponse, error) {
	c, err := s.repos.Conciliaciones.FindByEntregaID(ctx, tenantID, entregaID)
	if err != nil {
		return nil, notFoundOr(err, "conciliacion", entregaID, "buscar conciliacion")
	}
	resp := conciliacionToResponse(c)
	return &resp, nil
}

func conciliacionToResponse(c *model.Conciliacion) dto.ConciliacionResponse {
	return dto.ConciliacionResponse{
		EntregaID:          c.EntregaID.String(),
		SaldoAplicado:      c.SaldoAplicado,
		InventarioAplicado: c.InventarioAplicado,
		OrigenSaldo:        c.OrigenSaldo,
		SaldoAnterior:      c.SaldoAnterior,
		SaldoNuevo:         c.SaldoNuevo,
		Intentos:           c.Intentos,
		UltimoError:        c.UltimoError,
	}
}
