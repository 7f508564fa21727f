package service

import (
	"context"
	"errors"
	"testing"

	"repartos/internal/dto"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newInventarioConCache(f *fixture, cache StockCache, estricto bool) InventarioService {
	return NewInventarioService(
		f.invRepo,
		f.repos.Productos,
		&stubMovimientoRepo{s: f.store},
		&memTransactor{store: f.store},
		cache,
		estricto,
	)
}

func TestDisponible_UsaCacheCuandoHayHit(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	pid := f.productos["Soda 2L"]
	cache := &mockCache{}
	cache.On("Get", mock.Anything, f.tenantID, pid).Return(7, true)

	n, err := newInventarioConCache(f, cache, false).Disponible(context.Background(), f.tenantID, pid)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, 0, f.invRepo.lecturas)
	cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDisponible_MissLeeDeLaBaseYCachea(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	pid := f.productos["Soda 2L"]
	cache := &mockCache{}
	cache.On("Get", mock.Anything, f.tenantID, pid).Return(0, false)
	cache.On("Generacion", mock.Anything, f.tenantID).Return(int64(4)).Run(func(mock.Arguments) {
		// The generation must be taken before the row is read.
		assert.Equal(t, 0, f.invRepo.lecturas)
	})
	cache.On("Set", mock.Anything, f.tenantID, pid, 20, int64(4)).Return()

	n, err := newInventarioConCache(f, cache, false).Disponible(context.Background(), f.tenantID, pid)
	require.NoError(t, err)
	assert.Equal(t, 20, n)
	assert.Equal(t, 1, f.invRepo.lecturas)
	cache.AssertExpectations(t)
}

func TestDisponible_ProductoSinFila(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	n, err := f.inventario.Disponible(context.Background(), f.tenantID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestAjustar_RegistraMovimientoEInvalidaCache(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	pid := f.productos["Bidon 20L"]
	cache := &mockCache{}
	cache.On("Invalidar", mock.Anything, f.tenantID).Return().Once()

	cantidad := 35
	resp, err := newInventarioConCache(f, cache, false).Ajustar(context.Background(), f.tenantID, pid, dto.AjustarStockRequest{
		Cantidad: &cantidad,
		Motivo:   "carga de la mañana",
	})
	require.NoError(t, err)
	assert.Equal(t, 35, resp.Cantidad)
	assert.Equal(t, "Bidon 20L", resp.Nombre)
	assert.Equal(t, 35, f.stock("Bidon 20L"))

	require.Len(t, f.store.movimientos, 1)
	m := f.store.movimientos[0]
	assert.Equal(t, "ajuste_manual", m.Tipo)
	assert.Equal(t, 20, m.StockAnterior)
	assert.Equal(t, 35, m.StockNuevo)
	assert.Equal(t, 15, m.Cantidad)
	assert.Nil(t, m.ReferenciaID)
	cache.AssertExpectations(t)
}

func TestAjustar_Validaciones(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	neg := -1
	_, err := f.inventario.Ajustar(context.Background(), f.tenantID, f.productos["Soda 2L"], dto.AjustarStockRequest{Cantidad: &neg, Motivo: "x"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "cantidad", ve.Campo)

	cero := 0
	_, err = f.inventario.Ajustar(context.Background(), f.tenantID, uuid.New(), dto.AjustarStockRequest{Cantidad: &cero, Motivo: "x"})
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestAjustar_FalloRevierte(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.store.fallas["stock.upsert"] = errors.New("connection reset")
	cantidad := 3
	_, err := f.inventario.Ajustar(context.Background(), f.tenantID, f.productos["Soda 2L"], dto.AjustarStockRequest{Cantidad: &cantidad, Motivo: "rotura"})
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 20, f.stock("Soda 2L"))
	assert.Empty(t, f.store.movimientos)
}

func TestVerificarStock_AdvierteVehiculoYCatalogo(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	pid := f.productos["Soda 2L"]

	adv, err := f.inventario.VerificarStock(context.Background(), f.tenantID, []LineaStock{
		{ProductoID: pid, Nombre: "Soda 2L", Cantidad: 30, StockCatalogo: 25},
		{ProductoID: f.productos["Bidon 20L"], Nombre: "Bidon 20L", Cantidad: 5, StockCatalogo: 100},
		{ProductoID: f.productos["Bidon 10L"], Nombre: "Bidon 10L", Cantidad: 0, StockCatalogo: 0},
	})
	require.NoError(t, err)
	require.Len(t, adv, 2)
	assert.Equal(t, "vehiculo", adv[0].Origen)
	assert.Equal(t, 20, adv[0].Disponible)
	assert.Equal(t, "catalogo", adv[1].Origen)
	assert.Equal(t, 25, adv[1].Disponible)
}

func TestVerificarStock_Estricto(t *testing.T) {
	f := newFixture(t, fixtureOpts{estricto: true})
	_, err := f.inventario.VerificarStock(context.Background(), f.tenantID, []LineaStock{
		{ProductoID: f.productos["Soda 2L"], Nombre: "Soda 2L", Cantidad: 21, StockCatalogo: 100},
	})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Mensaje, "Soda 2L")

	adv, err := f.inventario.VerificarStock(context.Background(), f.tenantID, []LineaStock{
		{ProductoID: f.productos["Soda 2L"], Nombre: "Soda 2L", Cantidad: 20, StockCatalogo: 100},
	})
	require.NoError(t, err)
	assert.Empty(t, adv)
}

func TestSnapshotYMovimientos(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	snap, err := f.inventario.Snapshot(context.Background(), f.tenantID)
	require.NoError(t, err)
	assert.Len(t, snap.Items, 3)

	cantidad := 4
	_, err = f.inventario.Ajustar(context.Background(), f.tenantID, f.productos["Soda 2L"], dto.AjustarStockRequest{Cantidad: &cantidad, Motivo: "conteo"})
	require.NoError(t, err)

	list, err := f.inventario.ListarMovimientos(context.Background(), f.tenantID, dto.MovimientoFilter{
		ProductoID: f.productos["Soda 2L"].String(),
		Tipo:       "ajuste_manual",
		Page:       1,
		Limit:      100,
	})
	require.NoError(t, err)
	require.Len(t, list.Data, 1)
	assert.Equal(t, -16, list.Data[0].Cantidad)

	_, err = f.inventario.ListarMovimientos(context.Background(), f.tenantID, dto.MovimientoFilter{ProductoID: "bad"})
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}
