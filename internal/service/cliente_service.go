package service

import (
	"context"

	"repartos/internal/dto"
	"repartos/internal/model"
	"repartos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ClienteService manages clients. It never writes saldo_pendiente: only the
// settlement engine and the reconciliation do, through liquidacion.Transicion.
type ClienteService interface {
	Crear(ctx context.Context, tenantID uuid.UUID, req dto.CrearClienteRequest) (*dto.ClienteResponse, error)
	Listar(ctx context.Context, tenantID uuid.UUID, filter dto.ClienteFilter) (*dto.ClienteListResponse, error)
	ObtenerPorID(ctx context.Context, tenantID, id uuid.UUID) (*dto.ClienteResponse, error)
	ObtenerSaldo(ctx context.Context, tenantID, id uuid.UUID) (*dto.SaldoResponse, error)
}

type clienteService struct {
	repo repository.ClienteRepository
}

func NewClienteService(repo repository.ClienteRepository) ClienteService {
	return &clienteService{repo: repo}
}

func (s *clienteService) Crear(ctx context.Context, tenantID uuid.UUID, req dto.CrearClienteRequest) (*dto.ClienteResponse, error) {
	c := &model.Cliente{
		ID:                      uuid.New(),
		TenantID:                tenantID,
		Nombre:                  req.Nombre,
		Telefono:                req.Telefono,
		Direccion:               req.Direccion,
		Email:                   req.Email,
		SaldoPendiente:          decimal.Zero,
		UltimoTotal:             decimal.Zero,
		CantidadesUltimaEntrega: datatypes.JSONMap{},
		Activo:                  true,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, &PersistenceError{Op: "crear cliente", Err: err}
	}
	resp := clienteToResponse(c)
	return &resp, nil
}

func (s *clienteService) Listar(ctx context.Context, tenantID uuid.UUID, filter dto.ClienteFilter) (*dto.ClienteListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}
	clientes, total, err := s.repo.List(ctx, tenantID, filter)
	if err != nil {
		return nil, &PersistenceError{Op: "listar clientes", Err: err}
	}
	resp := &dto.ClienteListResponse{
		Data:       make([]dto.ClienteResponse, 0, len(clientes)),
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages(total, filter.Limit),
	}
	for i := range clientes {
		resp.Data = append(resp.Data, clienteToResponse(&clientes[i]))
	}
	return resp, nil
}

func (s *clienteService) ObtenerPorID(ctx context.Context, tenantID, id uuid.UUID) (*dto.ClienteResponse, error) {
	c, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, notFoundOr(err, "cliente", id, "buscar cliente")
	}
	resp := clienteToResponse(c)
	return &resp, nil
}

func (s *clienteService) ObtenerSaldo(ctx context.Context, tenantID, id uuid.UUID) (*dto.SaldoResponse, error) {
	c, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, notFoundOr(err, "cliente", id, "buscar cliente")
	}
	full := clienteToResponse(c)
	return &dto.SaldoResponse{
		ClienteID:       full.ID,
		SaldoPendiente:  c.SaldoPendiente,
		UltimaEntregaAt: full.UltimaEntregaAt,
	}, nil
}
