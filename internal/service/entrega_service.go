package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"repartos/internal/dto"
	"repartos/internal/liquidacion"
	"repartos/internal/model"
	"repartos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Publicador hands a delivery-created event to the reconciliation queue.
type Publicador interface {
	EnqueueConciliacion(ctx context.Context, tenantID, entregaID uuid.UUID) error
}

type EntregaService interface {
	RegistrarEntrega(ctx context.Context, tenantID, usuarioID uuid.UUID, req dto.RegistrarEntregaRequest) (*dto.RegistrarEntregaResponse, error)
	ObtenerEntrega(ctx context.Context, tenantID, id uuid.UUID) (*dto.EntregaResponse, error)
	ListarEntregas(ctx context.Context, tenantID uuid.UUID, filter dto.EntregaFilter) (*dto.EntregaListResponse, error)
}

// EntregaRepos groups the repositories the settlement engine writes through.
type EntregaRepos struct {
	Entregas       repository.EntregaRepository
	Clientes       repository.ClienteRepository
	Productos      repository.ProductoRepository
	Conciliaciones repository.ConciliacionRepository
	Eventos        repository.EventoRepository
}

type entregaService struct {
	repos      EntregaRepos
	inventario InventarioService
	tx         Transactor
	publicador Publicador
	now        func() time.Time
}

func NewEntregaService(repos EntregaRepos, inventario InventarioService, tx Transactor, publicador Publicador) EntregaService {
	return &entregaService{
		repos:      repos,
		inventario: inventario,
		tx:         tx,
		publicador: publicador,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ── RegistrarEntrega ──────────────────────────────────────────────────────────
//   1. Validate payment fields
//   2. Return the earlier delivery when the idempotency key was already used
//   3. Price every line from the catalog
//   4. Stock guard (advisory unless strict)
//   5. BEGIN TX: lock client, apply Transicion, insert delivery, update ledger,
//      mark balance applied, write outbox event
//   6. (async) best-effort publish of the delivery-created event

func (s *entregaService) RegistrarEntrega(ctx context.Context, tenantID, usuarioID uuid.UUID, req dto.RegistrarEntregaRequest) (*dto.RegistrarEntregaResponse, error) {
	// 1. Payment fields
	tipo := liquidacion.TipoPago(req.TipoPago)
	if err := liquidacion.ValidarPago(tipo, req.MontoPagado, req.MedioPago); err != nil {
		return nil, validationFrom(err)
	}
	clienteID, err := uuid.Parse(req.ClienteID)
	if err != nil {
		return nil, &ValidationError{Campo: "cliente_id", Mensaje: "uuid invalido"}
	}
	if req.EnvasesDevueltos < 0 {
		return nil, &ValidationError{Campo: "envases_devueltos", Mensaje: "no puede ser negativo"}
	}

	// 2. Idempotency
	key := normalizarClave(req.IdempotencyKey)
	if key != nil {
		existing, err := s.repos.Entregas.FindByIdempotencyKey(ctx, tenantID, *key)
		if err == nil {
			return duplicada(existing), nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &PersistenceError{Op: "buscar idempotency_key", Err: err}
		}
	}

	// 3. Catalog pricing
	lineas, productos, err := s.resolverLineas(ctx, tenantID, req.Items)
	if err != nil {
		return nil, err
	}

	// 4. Stock guard
	guard := make([]LineaStock, 0, len(lineas))
	for _, l := range lineas {
		guard = append(guard, LineaStock{
			ProductoID:    l.ProductoID,
			Nombre:        l.Nombre,
			Cantidad:      l.Cantidad,
			StockCatalogo: productos[l.ProductoID].Stock,
		})
	}
	advertencias, err := s.inventario.VerificarStock(ctx, tenantID, guard)
	if err != nil {
		return nil, err
	}

	total := liquidacion.CalcularTotal(lineas)
	slots := liquidacion.CantidadesPorSlot(lineas, func(id uuid.UUID) (liquidacion.Slot, bool) {
		p, ok := productos[id]
		if !ok || p.SlotLegacy == nil {
			return "", false
		}
		slot := liquidacion.Slot(*p.SlotLegacy)
		return slot, slot.Valido()
	})
	montoParcial := decimal.Zero
	if tipo == liquidacion.PagoParcial {
		montoParcial = *req.MontoPagado
	}

	entrega := model.Entrega{
		ID:               uuid.New(),
		TenantID:         tenantID,
		ClienteID:        clienteID,
		Fecha:            s.now(),
		EnvasesDevueltos: req.EnvasesDevueltos,
		Total:            total,
		Pagado:           tipo.Pagado(),
		TipoPago:         string(tipo),
		Observaciones:    req.Observaciones,
		Sodas:            slots[liquidacion.SlotSodas],
		Bidones10:        slots[liquidacion.SlotBidones10],
		Bidones20:        slots[liquidacion.SlotBidones20],
		ExcedeStock:      len(advertencias) > 0,
		IdempotencyKey:   key,
	}
	if usuarioID != uuid.Nil {
		uid := usuarioID
		entrega.UsuarioID = &uid
	}
	if tipo.Pagado() {
		entrega.MedioPago = req.MedioPago
	}
	pos := 0
	for _, l := range lineas {
		if l.Cantidad <= 0 {
			continue
		}
		entrega.Items = append(entrega.Items, model.EntregaItem{
			ID:             uuid.New(),
			EntregaID:      entrega.ID,
			ProductoID:     l.ProductoID,
			Posicion:       pos,
			Nombre:         l.Nombre,
			Cantidad:       l.Cantidad,
			PrecioUnitario: l.PrecioUnitario,
			Subtotal:       l.Subtotal(),
		})
		pos++
	}

	// 5. ACID transaction
	var res liquidacion.Resultado
	txErr := s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		cliente, err := s.repos.Clientes.FindByIDForUpdateTx(tx, tenantID, clienteID)
		if err != nil {
			return notFoundOr(err, "cliente", clienteID, "bloquear cliente")
		}
		if !cliente.Activo {
			return &ValidationError{Campo: "cliente_id", Mensaje: "el cliente esta inactivo"}
		}

		res, err = liquidacion.Transicion(cliente.SaldoPendiente, total, tipo, montoParcial)
		if err != nil {
			return validationFrom(err)
		}
		entrega.SaldoAnterior = res.SaldoAnterior
		entrega.SaldoNuevo = res.SaldoNuevo
		if tipo.Pagado() {
			entrega.MontoPagado = res.MontoAplicado
		}

		if err := s.repos.Entregas.CreateTx(tx, &entrega); err != nil {
			return err
		}

		version := cliente.Version
		cliente.SaldoPendiente = res.SaldoNuevo
		if snapshotVigente(cliente, &entrega) {
			aplicarSnapshot(cliente, &entrega)
		}
		if err := s.repos.Clientes.UpdateLedgerTx(tx, cliente, version); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				return ErrConflictoConcurrencia
			}
			return err
		}

		origen := "registro"
		anterior, nuevo := res.SaldoAnterior, res.SaldoNuevo
		if err := s.repos.Conciliaciones.CreateTx(tx, &model.Conciliacion{
			EntregaID:     entrega.ID,
			TenantID:      tenantID,
			SaldoAplicado: true,
			OrigenSaldo:   &origen,
			SaldoAnterior: &anterior,
			SaldoNuevo:    &nuevo,
		}); err != nil {
			return err
		}

		return s.repos.Eventos.CreateTx(tx, &model.EventoEntrega{
			ID:        uuid.New(),
			TenantID:  tenantID,
			EntregaID: entrega.ID,
			CreatedAt: entrega.Fecha,
		})
	})
	if txErr != nil {
		// A concurrent submission with the same key won the insert.
		if key != nil && errors.Is(txErr, gorm.ErrDuplicatedKey) {
			if existing, err := s.repos.Entregas.FindByIdempotencyKey(ctx, tenantID, *key); err == nil {
				return duplicada(existing), nil
			}
		}
		return nil, passThrough(txErr, "registrar entrega")
	}

	// 6. Best-effort publish; the outbox relay re-sends anything left unpublished.
	s.publicar(ctx, tenantID, entrega.ID)

	log.Info().
		Str("tenant_id", tenantID.String()).
		Str("entrega_id", entrega.ID.String()).
		Str("cliente_id", clienteID.String()).
		Str("total", total.String()).
		Str("saldo_nuevo", res.SaldoNuevo.String()).
		Int("advertencias_stock", len(advertencias)).
		Msg("entrega registrada")

	return &dto.RegistrarEntregaResponse{
		Entrega:           entregaToResponse(&entrega),
		SaldoAnterior:     res.SaldoAnterior,
		SaldoNuevo:        res.SaldoNuevo,
		MontoAplicado:     res.MontoAplicado,
		AdvertenciasStock: advertencias,
	}, nil
}

func (s *entregaService) publicar(ctx context.Context, tenantID, entregaID uuid.UUID) {
	if s.publicador == nil {
		return
	}
	if err := s.publicador.EnqueueConciliacion(ctx, tenantID, entregaID); err != nil {
		log.Warn().Err(err).Str("entrega_id", entregaID.String()).Msg("publicacion inmediata fallida, queda para el relay")
		return
	}
	if err := s.repos.Eventos.MarcarPublicadoPorEntrega(ctx, entregaID, s.now()); err != nil {
		log.Warn().Err(err).Str("entrega_id", entregaID.String()).Msg("no se pudo marcar el evento como publicado")
	}
}

// resolverLineas prices each requested line from the tenant catalog.
func (s *entregaService) resolverLineas(ctx context.Context, tenantID uuid.UUID, items []dto.ItemEntregaRequest) ([]liquidacion.Linea, map[uuid.UUID]model.Producto, error) {
	ids := make([]uuid.UUID, 0, len(items))
	vistos := make(map[uuid.UUID]bool, len(items))
	for i, it := range items {
		pid, err := uuid.Parse(it.ProductoID)
		if err != nil {
			return nil, nil, &ValidationError{Campo: fmt.Sprintf("items[%d].producto_id", i), Mensaje: "uuid invalido"}
		}
		if vistos[pid] {
			return nil, nil, &ValidationError{Campo: fmt.Sprintf("items[%d].producto_id", i), Mensaje: "producto repetido"}
		}
		vistos[pid] = true
		ids = append(ids, pid)
	}

	encontrados, err := s.repos.Productos.FindByIDs(ctx, tenantID, ids)
	if err != nil {
		return nil, nil, &PersistenceError{Op: "buscar productos", Err: err}
	}
	productos := make(map[uuid.UUID]model.Producto, len(encontrados))
	for _, p := range encontrados {
		productos[p.ID] = p
	}

	lineas := make([]liquidacion.Linea, 0, len(ids))
	for i, pid := range ids {
		p, ok := productos[pid]
		if !ok {
			return nil, nil, &NotFoundError{Entidad: "producto", ID: pid.String()}
		}
		cantidad := liquidacion.NormalizarCantidad(items[i].Cantidad)
		if !p.Activo && cantidad > 0 {
			return nil, nil, &ValidationError{Campo: fmt.Sprintf("items[%d].producto_id", i), Mensaje: fmt.Sprintf("%s esta inactivo", p.Nombre)}
		}
		lineas = append(lineas, liquidacion.Linea{
			ProductoID:     pid,
			Nombre:         p.Nombre,
			Cantidad:       cantidad,
			PrecioUnitario: p.PrecioUnitario,
		})
	}
	return lineas, productos, nil
}

func normalizarClave(k *string) *string {
	if k == nil {
		return nil
	}
	v := strings.TrimSpace(*k)
	if v == "" {
		return nil
	}
	return &v
}

func duplicada(e *model.Entrega) *dto.RegistrarEntregaResponse {
	res, err := transicionDe(e.SaldoAnterior, e)
	aplicado := res.MontoAplicado
	if err != nil {
		aplicado = e.MontoPagado
	}
	return &dto.RegistrarEntregaResponse{
		Entrega:           entregaToResponse(e),
		SaldoAnterior:     e.SaldoAnterior,
		SaldoNuevo:        e.SaldoNuevo,
		MontoAplicado:     aplicado,
		AdvertenciasStock: []dto.AdvertenciaStock{},
		Duplicada:         true,
	}
}

// ── Lecturas ──────────────────────────────────────────────────────────────────

func (s *entregaService) ObtenerEntrega(ctx context.Context, tenantID, id uuid.UUID) (*dto.EntregaResponse, error) {
	e, err := s.repos.Entregas.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, notFoundOr(err, "entrega", id, "buscar entrega")
	}
	resp := entregaToResponse(e)
	return &resp, nil
}

func (s *entregaService) ListarEntregas(ctx context.Context, tenantID uuid.UUID, filter dto.EntregaFilter) (*dto.EntregaListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}
	entregas, total, err := s.repos.Entregas.List(ctx, tenantID, filter)
	if err != nil {
		return nil, &PersistenceError{Op: "listar entregas", Err: err}
	}
	resp := &dto.EntregaListResponse{
		Data:       make([]dto.EntregaResponse, 0, len(entregas)),
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages(total, filter.Limit),
	}
	for i := range entregas {
		resp.Data = append(resp.Data, entregaToResponse(&entregas[i]))
	}
	return resp, nil
}
