package handler

import (
	"net/http"

	"repartos/internal/dto"
	"repartos/internal/middleware"
	"repartos/internal/service"

	"github.com/gin-gonic/gin"
)

type ClientesHandler struct{ svc service.ClienteService }

func NewClientesHandler(svc service.ClienteService) *ClientesHandler {
	return &ClientesHandler{svc: svc}
}

// Crear godoc
// @Summary  Crear cliente
// @Tags     clientes
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    body body     dto.CrearClienteRequest true "Cliente"
// @Success  201  {object} dto.ClienteResponse
// @Failure  422  {object} apierror.ValidationError
// @Router   /v1/clientes [post]
func (h *ClientesHandler) Crear(c *gin.Context) {
	var req dto.CrearClienteRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Crear(c.Request.Context(), middleware.TenantID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *ClientesHandler) Listar(c *gin.Context) {
	var filter dto.ClienteFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.Listar(c.Request.Context(), middleware.TenantID(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ClientesHandler) ObtenerPorID(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ObtenerPorID(c.Request.Context(), middleware.TenantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Saldo godoc
// @Summary  Saldo pendiente del cliente
// @Tags     clientes
// @Produce  json
// @Security BearerAuth
// @Param    id  path     string true "UUID del cliente"
// @Success  200 {object} dto.SaldoResponse
// @Failure  404 {object} apierror.APIError
// @Router   /v1/clientes/{id}/saldo [get]
func (h *ClientesHandler) Saldo(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ObtenerSaldo(c.Request.Context(), middleware.TenantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
