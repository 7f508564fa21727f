package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"repartos/internal/dto"
	"repartos/internal/model"
	"repartos/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"
)

// ── In-memory store ───────────────────────────────────────────────────────────

type stockKey struct{ tenant, producto uuid.UUID }

// memStore backs every stub repository. memTransactor snapshots it before a
// transaction and restores the snapshot when the transaction fails.
type memStore struct {
	mu             sync.Mutex
	productos      map[uuid.UUID]model.Producto
	clientes       map[uuid.UUID]model.Cliente
	entregas       map[uuid.UUID]model.Entrega
	stock          map[stockKey]model.StockVehiculo
	movimientos    []model.MovimientoStock
	conciliaciones map[uuid.UUID]model.Conciliacion
	eventos        map[uuid.UUID]model.EventoEntrega
	tenants        map[uuid.UUID]model.Tenant
	usuarios       map[uuid.UUID]model.Usuario

	// fallas maps an operation name ("evento.create", "stock.upsert", ...) to
	// the error it should return.
	fallas map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		productos:      map[uuid.UUID]model.Producto{},
		clientes:       map[uuid.UUID]model.Cliente{},
		entregas:       map[uuid.UUID]model.Entrega{},
		stock:          map[stockKey]model.StockVehiculo{},
		conciliaciones: map[uuid.UUID]model.Conciliacion{},
		eventos:        map[uuid.UUID]model.EventoEntrega{},
		tenants:        map[uuid.UUID]model.Tenant{},
		usuarios:       map[uuid.UUID]model.Usuario{},
		fallas:         map[string]error{},
	}
}

func (s *memStore) falla(op string) error { return s.fallas[op] }

type memSnapshot struct {
	productos      map[uuid.UUID]model.Producto
	clientes       map[uuid.UUID]model.Cliente
	entregas       map[uuid.UUID]model.Entrega
	stock          map[stockKey]model.StockVehiculo
	movimientos    []model.MovimientoStock
	conciliaciones map[uuid.UUID]model.Conciliacion
	eventos        map[uuid.UUID]model.EventoEntrega
	tenants        map[uuid.UUID]model.Tenant
	usuarios       map[uuid.UUID]model.Usuario
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memSnapshot{
		productos:      copyMap(s.productos),
		clientes:       copyMap(s.clientes),
		entregas:       copyMap(s.entregas),
		stock:          copyMap(s.stock),
		movimientos:    append([]model.MovimientoStock(nil), s.movimientos...),
		conciliaciones: copyMap(s.conciliaciones),
		eventos:        copyMap(s.eventos),
		tenants:        copyMap(s.tenants),
		usuarios:       copyMap(s.usuarios),
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.productos = snap.productos
	s.clientes = snap.clientes
	s.entregas = snap.entregas
	s.stock = snap.stock
	s.movimientos = snap.movimientos
	s.conciliaciones = snap.conciliaciones
	s.eventos = snap.eventos
	s.tenants = snap.tenants
	s.usuarios = snap.usuarios
}

type memTransactor struct {
	store *memStore
	mu    sync.Mutex
}

func (t *memTransactor) WithinTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := t.store.snapshot()
	if err := fn(nil); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

var _ Transactor = (*memTransactor)(nil)

// ── Productos ─────────────────────────────────────────────────────────────────

type stubProductoRepo struct{ s *memStore }

func (r *stubProductoRepo) Create(_ context.Context, p *model.Producto) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	r.s.productos[p.ID] = *p
	return nil
}

func (r *stubProductoRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*model.Producto, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.productos[id]
	if !ok || p.TenantID != tenantID {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (r *stubProductoRepo) FindByIDs(_ context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]model.Producto, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Producto
	for _, id := range ids {
		if p, ok := r.s.productos[id]; ok && p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *stubProductoRepo) List(_ context.Context, tenantID uuid.UUID, _ dto.ProductoFilter) ([]model.Producto, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Producto
	for _, p := range r.s.productos {
		if p.TenantID == tenantID && p.Activo {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nombre < out[j].Nombre })
	return out, int64(len(out)), nil
}

func (r *stubProductoRepo) Update(_ context.Context, p *model.Producto) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.productos[p.ID] = *p
	return nil
}

func (r *stubProductoRepo) FindBySlot(_ context.Context, tenantID uuid.UUID, slot string) (*model.Producto, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.productos {
		if p.TenantID == tenantID && p.Activo && p.SlotLegacy != nil && *p.SlotLegacy == slot {
			return &p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubProductoRepo) ListConSlotTx(_ *gorm.DB, tenantID uuid.UUID) ([]model.Producto, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Producto
	for _, p := range r.s.productos {
		if p.TenantID == tenantID && p.SlotLegacy != nil {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

var _ repository.ProductoRepository = (*stubProductoRepo)(nil)

// ── Clientes ──────────────────────────────────────────────────────────────────

type stubClienteRepo struct{ s *memStore }

func (r *stubClienteRepo) Create(_ context.Context, c *model.Cliente) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	r.s.clientes[c.ID] = *c
	return nil
}

func (r *stubClienteRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*model.Cliente, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.clientes[id]
	if !ok || c.TenantID != tenantID {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func (r *stubClienteRepo) List(_ context.Context, tenantID uuid.UUID, _ dto.ClienteFilter) ([]model.Cliente, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Cliente
	for _, c := range r.s.clientes {
		if c.TenantID == tenantID {
			out = append(out, c)
		}
	}
	return out, int64(len(out)), nil
}

func (r *stubClienteRepo) FindByIDForUpdateTx(_ *gorm.DB, tenantID, id uuid.UUID) (*model.Cliente, error) {
	if err := r.s.falla("cliente.lock"); err != nil {
		return nil, err
	}
	return r.FindByID(context.Background(), tenantID, id)
}

func (r *stubClienteRepo) UpdateLedgerTx(_ *gorm.DB, c *model.Cliente, expectedVersion int) error {
	if err := r.s.falla("cliente.update"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	actual, ok := r.s.clientes[c.ID]
	if !ok || actual.Version != expectedVersion {
		return repository.ErrVersionConflict
	}
	c.Version = expectedVersion + 1
	r.s.clientes[c.ID] = *c
	return nil
}

var _ repository.ClienteRepository = (*stubClienteRepo)(nil)

// ── Entregas ──────────────────────────────────────────────────────────────────

type stubEntregaRepo struct{ s *memStore }

func (r *stubEntregaRepo) CreateTx(_ *gorm.DB, e *model.Entrega) error {
	if err := r.s.falla("entrega.create"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e.IdempotencyKey != nil {
		for _, otra := range r.s.entregas {
			if otra.TenantID == e.TenantID && otra.IdempotencyKey != nil && *otra.IdempotencyKey == *e.IdempotencyKey {
				return gorm.ErrDuplicatedKey
			}
		}
	}
	e.CreatedAt = time.Now()
	r.s.entregas[e.ID] = *e
	return nil
}

func (r *stubEntregaRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*model.Entrega, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.entregas[id]
	if !ok || e.TenantID != tenantID {
		return nil, gorm.ErrRecordNotFound
	}
	return &e, nil
}

func (r *stubEntregaRepo) FindByIDTx(_ *gorm.DB, tenantID, id uuid.UUID) (*model.Entrega, error) {
	return r.FindByID(context.Background(), tenantID, id)
}

func (r *stubEntregaRepo) FindByIdempotencyKey(_ context.Context, tenantID uuid.UUID, key string) (*model.Entrega, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.entregas {
		if e.TenantID == tenantID && e.IdempotencyKey != nil && *e.IdempotencyKey == key {
			return &e, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubEntregaRepo) List(_ context.Context, tenantID uuid.UUID, filter dto.EntregaFilter) ([]model.Entrega, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Entrega
	for _, e := range r.s.entregas {
		if e.TenantID != tenantID {
			continue
		}
		if filter.ClienteID != "" && e.ClienteID.String() != filter.ClienteID {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fecha.After(out[j].Fecha) })
	return out, int64(len(out)), nil
}

var _ repository.EntregaRepository = (*stubEntregaRepo)(nil)

// ── Inventario ────────────────────────────────────────────────────────────────

type stubInventarioRepo struct {
	s        *memStore
	lecturas int
}

func (r *stubInventarioRepo) FindCantidad(_ context.Context, tenantID, productoID uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.lecturas++
	return r.s.stock[stockKey{tenantID, productoID}].Cantidad, nil
}

func (r *stubInventarioRepo) List(_ context.Context, tenantID uuid.UUID) ([]model.StockVehiculo, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.StockVehiculo
	for k, v := range r.s.stock {
		if k.tenant == tenantID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *stubInventarioRepo) LockTx(_ *gorm.DB, tenantID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]model.StockVehiculo, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[uuid.UUID]model.StockVehiculo{}
	for _, id := range ids {
		if v, ok := r.s.stock[stockKey{tenantID, id}]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func (r *stubInventarioRepo) UpsertTx(_ *gorm.DB, tenantID, productoID uuid.UUID, cantidad int) error {
	if err := r.s.falla("stock.upsert"); err != nil {
		return err
	}
	if cantidad < 0 {
		return errors.New("check constraint: cantidad >= 0")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := stockKey{tenantID, productoID}
	v := r.s.stock[k]
	v.TenantID, v.ProductoID, v.Cantidad = tenantID, productoID, cantidad
	r.s.stock[k] = v
	return nil
}

var _ repository.InventarioRepository = (*stubInventarioRepo)(nil)

type stubMovimientoRepo struct{ s *memStore }

func (r *stubMovimientoRepo) CreateTx(_ *gorm.DB, m *model.MovimientoStock) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.movimientos = append(r.s.movimientos, *m)
	return nil
}

func (r *stubMovimientoRepo) List(_ context.Context, tenantID uuid.UUID, f repository.MovimientoStockFilter) ([]model.MovimientoStock, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.MovimientoStock
	for _, m := range r.s.movimientos {
		if m.TenantID != tenantID || (f.Tipo != "" && m.Tipo != f.Tipo) {
			continue
		}
		if f.ProductoID != nil && m.ProductoID != *f.ProductoID {
			continue
		}
		out = append(out, m)
	}
	return out, int64(len(out)), nil
}

var _ repository.MovimientoStockRepository = (*stubMovimientoRepo)(nil)

// ── Conciliaciones / outbox ───────────────────────────────────────────────────

type stubConciliacionRepo struct{ s *memStore }

func (r *stubConciliacionRepo) CreateTx(_ *gorm.DB, c *model.Conciliacion) error {
	if err := r.s.falla("conciliacion.create"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.conciliaciones[c.EntregaID]; ok {
		return gorm.ErrDuplicatedKey
	}
	r.s.conciliaciones[c.EntregaID] = *c
	return nil
}

func (r *stubConciliacionRepo) LockOrCreateTx(_ *gorm.DB, tenantID, entregaID uuid.UUID) (*model.Conciliacion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.conciliaciones[entregaID]
	if !ok {
		c = model.Conciliacion{EntregaID: entregaID, TenantID: tenantID}
		r.s.conciliaciones[entregaID] = c
	}
	return &c, nil
}

func (r *stubConciliacionRepo) SaveTx(_ *gorm.DB, c *model.Conciliacion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.conciliaciones[c.EntregaID] = *c
	return nil
}

func (r *stubConciliacionRepo) FindByEntregaID(_ context.Context, tenantID, entregaID uuid.UUID) (*model.Conciliacion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.conciliaciones[entregaID]
	if !ok || c.TenantID != tenantID {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func (r *stubConciliacionRepo) RegistrarFallo(_ context.Context, tenantID, entregaID uuid.UUID, msg string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.conciliaciones[entregaID]
	if !ok {
		c = model.Conciliacion{EntregaID: entregaID, TenantID: tenantID}
	}
	c.Intentos++
	c.UltimoError = &msg
	r.s.conciliaciones[entregaID] = c
	return nil
}

var _ repository.ConciliacionRepository = (*stubConciliacionRepo)(nil)

type stubEventoRepo struct{ s *memStore }

func (r *stubEventoRepo) CreateTx(_ *gorm.DB, ev *model.EventoEntrega) error {
	if err := r.s.falla("evento.create"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.eventos[ev.ID] = *ev
	return nil
}

func (r *stubEventoRepo) ListPendientes(_ context.Context, now time.Time, limit int) ([]model.EventoEntrega, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.EventoEntrega
	for _, ev := range r.s.eventos {
		if !ev.Publicado && (ev.NextRetryAt == nil || !ev.NextRetryAt.After(now)) {
			out = append(out, ev)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *stubEventoRepo) MarcarPublicado(_ context.Context, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ev := r.s.eventos[id]
	ev.Publicado, ev.PublicadoAt = true, &at
	r.s.eventos[id] = ev
	return nil
}

func (r *stubEventoRepo) MarcarPublicadoPorEntrega(_ context.Context, entregaID uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, ev := range r.s.eventos {
		if ev.EntregaID == entregaID {
			ev.Publicado, ev.PublicadoAt = true, &at
			r.s.eventos[id] = ev
		}
	}
	return nil
}

func (r *stubEventoRepo) RegistrarFallo(_ context.Context, id uuid.UUID, msg string, next time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ev := r.s.eventos[id]
	ev.Intentos++
	ev.LastError, ev.NextRetryAt = &msg, &next
	r.s.eventos[id] = ev
	return nil
}

var _ repository.EventoRepository = (*stubEventoRepo)(nil)

// ── Tenants / usuarios ────────────────────────────────────────────────────────

type stubTenantRepo struct{ s *memStore }

func (r *stubTenantRepo) Create(_ context.Context, t *model.Tenant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.tenants[t.ID] = *t
	return nil
}

func (r *stubTenantRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Tenant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tenants[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &t, nil
}

func (r *stubTenantRepo) FindByIDForUpdateTx(_ *gorm.DB, id uuid.UUID) (*model.Tenant, error) {
	return r.FindByID(context.Background(), id)
}

func (r *stubTenantRepo) IncrementarUsuariosTx(_ *gorm.DB, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t := r.s.tenants[id]
	t.UsuariosActuales++
	r.s.tenants[id] = t
	return nil
}

var _ repository.TenantRepository = (*stubTenantRepo)(nil)

type stubUsuarioRepo struct{ s *memStore }

func (r *stubUsuarioRepo) CreateTx(_ *gorm.DB, u *model.Usuario) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, otro := range r.s.usuarios {
		if otro.Username == u.Username {
			return gorm.ErrDuplicatedKey
		}
	}
	r.s.usuarios[u.ID] = *u
	return nil
}

func (r *stubUsuarioRepo) FindByUsername(_ context.Context, username string) (*model.Usuario, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.usuarios {
		if u.Activo && (u.Username == username || (u.Email != nil && strings.EqualFold(*u.Email, username))) {
			return &u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubUsuarioRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Usuario, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.usuarios[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

func (r *stubUsuarioRepo) List(_ context.Context, tenantID uuid.UUID) ([]model.Usuario, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Usuario
	for _, u := range r.s.usuarios {
		if u.TenantID == tenantID {
			out = append(out, u)
		}
	}
	return out, nil
}

var _ repository.UsuarioRepository = (*stubUsuarioRepo)(nil)

// ── Mocks ─────────────────────────────────────────────────────────────────────

type mockCache struct{ mock.Mock }

func (m *mockCache) Get(ctx context.Context, tenantID, productoID uuid.UUID) (int, bool) {
	args := m.Called(ctx, tenantID, productoID)
	return args.Int(0), args.Bool(1)
}

func (m *mockCache) Generacion(ctx context.Context, tenantID uuid.UUID) int64 {
	return m.Called(ctx, tenantID).Get(0).(int64)
}

func (m *mockCache) Set(ctx context.Context, tenantID, productoID uuid.UUID, cantidad int, gen int64) {
	m.Called(ctx, tenantID, productoID, cantidad, gen)
}

func (m *mockCache) Invalidar(ctx context.Context, tenantID uuid.UUID) {
	m.Called(ctx, tenantID)
}

var _ StockCache = (*mockCache)(nil)

type mockPublicador struct{ mock.Mock }

func (m *mockPublicador) EnqueueConciliacion(ctx context.Context, tenantID, entregaID uuid.UUID) error {
	return m.Called(ctx, tenantID, entregaID).Error(0)
}

var _ Publicador = (*mockPublicador)(nil)
