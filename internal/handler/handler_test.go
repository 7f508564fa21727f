package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"repartos/internal/dto"
	"repartos/internal/middleware"
	"repartos/internal/service"
	"repartos/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

// ── mocks ────────────────────────────────────────────────────────────────────

type mockEntregas struct{ mock.Mock }

func (m *mockEntregas) RegistrarEntrega(ctx context.Context, tenantID, usuarioID uuid.UUID, req dto.RegistrarEntregaRequest) (*dto.RegistrarEntregaResponse, error) {
	args := m.Called(ctx, tenantID, usuarioID, req)
	resp, _ := args.Get(0).(*dto.RegistrarEntregaResponse)
	return resp, args.Error(1)
}

func (m *mockEntregas) ObtenerEntrega(ctx context.Context, tenantID, id uuid.UUID) (*dto.EntregaResponse, error) {
	args := m.Called(ctx, tenantID, id)
	resp, _ := args.Get(0).(*dto.EntregaResponse)
	return resp, args.Error(1)
}

func (m *mockEntregas) ListarEntregas(ctx context.Context, tenantID uuid.UUID, filter dto.EntregaFilter) (*dto.EntregaListResponse, error) {
	args := m.Called(ctx, tenantID, filter)
	resp, _ := args.Get(0).(*dto.EntregaListResponse)
	return resp, args.Error(1)
}

type mockConciliacion struct{ mock.Mock }

func (m *mockConciliacion) ConciliarEntrega(ctx context.Context, tenantID, entregaID uuid.UUID) (*dto.ConciliacionResponse, error) {
	args := m.Called(ctx, tenantID, entregaID)
	resp, _ := args.Get(0).(*dto.ConciliacionResponse)
	return resp, args.Error(1)
}

func (m *mockConciliacion) ObtenerEstado(ctx context.Context, tenantID, entregaID uuid.UUID) (*dto.ConciliacionResponse, error) {
	args := m.Called(ctx, tenantID, entregaID)
	resp, _ := args.Get(0).(*dto.ConciliacionResponse)
	return resp, args.Error(1)
}

type mockAuth struct{ mock.Mock }

func (m *mockAuth) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*dto.LoginResponse)
	return resp, args.Error(1)
}

func (m *mockAuth) Refresh(ctx context.Context, token string) (*dto.LoginResponse, error) {
	args := m.Called(ctx, token)
	resp, _ := args.Get(0).(*dto.LoginResponse)
	return resp, args.Error(1)
}

func (m *mockAuth) CrearUsuario(ctx context.Context, tenantID uuid.UUID, req dto.CrearUsuarioRequest) (*dto.UsuarioResponse, error) {
	args := m.Called(ctx, tenantID, req)
	resp, _ := args.Get(0).(*dto.UsuarioResponse)
	return resp, args.Error(1)
}

func (m *mockAuth) ListarUsuarios(ctx context.Context, tenantID uuid.UUID) ([]dto.UsuarioResponse, error) {
	args := m.Called(ctx, tenantID)
	resp, _ := args.Get(0).([]dto.UsuarioResponse)
	return resp, args.Error(1)
}

type fixedDLQ struct {
	n   int64
	err error
	got string
}

func (d *fixedDLQ) Length(_ context.Context, queue string) (int64, error) {
	d.got = queue
	return d.n, d.err
}

// ── helpers ──────────────────────────────────────────────────────────────────

var (
	testTenant  = uuid.New()
	testUsuario = uuid.New()
)

// withClaims stands in for JWTAuth.
func withClaims(rol string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ClaimsKey, &middleware.JWTClaims{
			UserID:   testUsuario.String(),
			TenantID: testTenant.String(),
			Username: "ana",
			Rol:      rol,
		})
		c.Next()
	}
}

func send(r *gin.Engine, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func entregasRouter(svc service.EntregaService) *gin.Engine {
	r := gin.New()
	h := NewEntregasHandler(svc)
	g := r.Group("/v1", withClaims("repartidor"))
	g.POST("/entregas", h.Registrar)
	g.GET("/entregas", h.Listar)
	g.GET("/entregas/:id", h.Obtener)
	return r
}

func validEntregaBody() map[string]any {
	return map[string]any{
		"cliente_id": uuid.NewString(),
		"items":      []map[string]any{{"producto_id": uuid.NewString(), "cantidad": "2"}},
		"tipo_pago":  "no_pagado",
	}
}

// ── entregas ─────────────────────────────────────────────────────────────────

func TestRegistrar_Created(t *testing.T) {
	svc := new(mockEntregas)
	resp := &dto.RegistrarEntregaResponse{SaldoNuevo: decimal.NewFromInt(100)}
	svc.On("RegistrarEntrega", mock.Anything, testTenant, testUsuario, mock.Anything).Return(resp, nil)

	w := send(entregasRouter(svc), http.MethodPost, "/v1/entregas", validEntregaBody())

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"saldo_nuevo":"100"`)
	svc.AssertExpectations(t)
}

func TestRegistrar_DuplicadaDevuelve200(t *testing.T) {
	svc := new(mockEntregas)
	svc.On("RegistrarEntrega", mock.Anything, testTenant, testUsuario, mock.Anything).
		Return(&dto.RegistrarEntregaResponse{Duplicada: true}, nil)

	w := send(entregasRouter(svc), http.MethodPost, "/v1/entregas", validEntregaBody())
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRegistrar_IdempotencyKeyDesdeHeader(t *testing.T) {
	svc := new(mockEntregas)
	svc.On("RegistrarEntrega", mock.Anything, testTenant, testUsuario, mock.MatchedBy(func(req dto.RegistrarEntregaRequest) bool {
		return req.IdempotencyKey != nil && *req.IdempotencyKey == "k-1"
	})).Return(&dto.RegistrarEntregaResponse{}, nil)

	w := send(entregasRouter(svc), http.MethodPost, "/v1/entregas", validEntregaBody(), "Idempotency-Key", "k-1")
	assert.Equal(t, http.StatusCreated, w.Code)
	svc.AssertExpectations(t)
}

func TestRegistrar_IdempotencyKeyDelBodyTienePrioridad(t *testing.T) {
	svc := new(mockEntregas)
	svc.On("RegistrarEntrega", mock.Anything, testTenant, testUsuario, mock.MatchedBy(func(req dto.RegistrarEntregaRequest) bool {
		return req.IdempotencyKey != nil && *req.IdempotencyKey == "body"
	})).Return(&dto.RegistrarEntregaResponse{}, nil)

	body := validEntregaBody()
	body["idempotency_key"] = "body"
	w := send(entregasRouter(svc), http.MethodPost, "/v1/entregas", body, "Idempotency-Key", "header")
	assert.Equal(t, http.StatusCreated, w.Code)
	svc.AssertExpectations(t)
}

func TestRegistrar_IdempotencyKeyDelHeaderDemasiadoLarga(t *testing.T) {
	svc := new(mockEntregas)

	w := send(entregasRouter(svc), http.MethodPost, "/v1/entregas", validEntregaBody(),
		"Idempotency-Key", strings.Repeat("k", 65))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "IdempotencyKey")
	svc.AssertNotCalled(t, "RegistrarEntrega", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRegistrar_RequestInvalido(t *testing.T) {
	svc := new(mockEntregas)
	r := entregasRouter(svc)

	w := send(r, http.MethodPost, "/v1/entregas", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body := validEntregaBody()
	delete(body, "cliente_id")
	w = send(r, http.MethodPost, "/v1/entregas", body)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "ClienteID")

	svc.AssertNotCalled(t, "RegistrarEntrega", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRegistrar_ErroresDelServicio(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"validacion", &service.ValidationError{Campo: "monto_pagado", Mensaje: "requerido"}, http.StatusUnprocessableEntity, "monto_pagado"},
		{"no encontrado", &service.NotFoundError{Entidad: "cliente", ID: "x"}, http.StatusNotFound, "cliente x no encontrado"},
		{"conflicto", service.ErrConflictoConcurrencia, http.StatusConflict, "concurrentemente"},
		{"persistencia", &service.PersistenceError{Op: "crear entrega", Err: errors.New("pq: secreto")}, http.StatusInternalServerError, "Error interno"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(mockEntregas)
			svc.On("RegistrarEntrega", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, tc.err)

			w := send(entregasRouter(svc), http.MethodPost, "/v1/entregas", validEntregaBody())

			assert.Equal(t, tc.status, w.Code)
			assert.Contains(t, w.Body.String(), tc.body)
			assert.NotContains(t, w.Body.String(), "secreto")
		})
	}
}

func TestObtenerEntrega(t *testing.T) {
	svc := new(mockEntregas)
	id := uuid.New()
	svc.On("ObtenerEntrega", mock.Anything, testTenant, id).Return(&dto.EntregaResponse{ID: id.String()}, nil)
	r := entregasRouter(svc)

	w := send(r, http.MethodGet, "/v1/entregas/"+id.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), id.String())

	w = send(r, http.MethodGet, "/v1/entregas/no-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListarEntregas_FiltroInvalido(t *testing.T) {
	svc := new(mockEntregas)
	w := send(entregasRouter(svc), http.MethodGet, "/v1/entregas?limit=1000", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	svc.On("ListarEntregas", mock.Anything, testTenant, mock.MatchedBy(func(f dto.EntregaFilter) bool {
		return f.Page == 1 && f.Limit == 50
	})).Return(&dto.EntregaListResponse{Page: 1, Limit: 50}, nil)
	w = send(entregasRouter(svc), http.MethodGet, "/v1/entregas", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

// ── auth ─────────────────────────────────────────────────────────────────────

func TestLogin_Errores(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{service.ErrCredencialesInvalidas, http.StatusUnauthorized},
		{service.ErrTenantInactivo, http.StatusForbidden},
	}
	for _, tc := range cases {
		svc := new(mockAuth)
		svc.On("Login", mock.Anything, mock.Anything).Return(nil, tc.err)
		r := gin.New()
		r.POST("/login", NewAuthHandler(svc).Login)

		w := send(r, http.MethodPost, "/login", dto.LoginRequest{Username: "ana", Password: "secreto1"})
		assert.Equal(t, tc.status, w.Code)
	}
}

func TestRefresh_TokenInvalido(t *testing.T) {
	svc := new(mockAuth)
	svc.On("Refresh", mock.Anything, "x").Return(nil, errors.New("refresh token invalido o expirado"))
	r := gin.New()
	r.POST("/refresh", NewAuthHandler(svc).Refresh)

	w := send(r, http.MethodPost, "/refresh", dto.RefreshRequest{RefreshToken: "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCrearUsuario_UsaTenantDelToken(t *testing.T) {
	svc := new(mockAuth)
	svc.On("CrearUsuario", mock.Anything, testTenant, mock.Anything).
		Return(nil, &service.ValidationError{Campo: "plan", Mensaje: "el plan individual admite hasta 1 usuarios"})
	r := gin.New()
	r.POST("/usuarios", withClaims("administrador"), NewUsuariosHandler(svc).Crear)

	w := send(r, http.MethodPost, "/usuarios", dto.CrearUsuarioRequest{
		Username: "beto", Nombre: "Beto", Password: "12345678", Rol: "repartidor",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "plan")
	svc.AssertExpectations(t)
}

// ── conciliacion ─────────────────────────────────────────────────────────────

func TestConciliar(t *testing.T) {
	svc := new(mockConciliacion)
	id := uuid.New()
	svc.On("ConciliarEntrega", mock.Anything, testTenant, id).
		Return(&dto.ConciliacionResponse{EntregaID: id.String(), SaldoAplicado: true, InventarioAplicado: true, SinCambios: true}, nil)
	r := gin.New()
	r.POST("/entregas/:id/conciliar", withClaims("supervisor"), NewConciliacionHandler(svc, &fixedDLQ{}).Conciliar)

	w := send(r, http.MethodPost, "/entregas/"+id.String()+"/conciliar", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sin_cambios":true`)
}

func TestDLQ(t *testing.T) {
	dlq := &fixedDLQ{n: 3}
	r := gin.New()
	r.GET("/dlq", NewConciliacionHandler(new(mockConciliacion), dlq).DLQ)

	w := send(r, http.MethodGet, "/dlq", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, worker.QueueConciliacion, dlq.got)

	var resp dto.DLQResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(3), resp.Longitud)
	assert.Equal(t, "dlq:jobs:conciliacion", resp.Queue)

	dlq.err = errors.New("redis down")
	w = send(r, http.MethodGet, "/dlq", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
