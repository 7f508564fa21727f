package handler

import (
	"net/http"
	"strings"

	"repartos/internal/apierror"
	"repartos/internal/dto"
	"repartos/internal/middleware"
	"repartos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type EntregasHandler struct{ svc service.EntregaService }

func NewEntregasHandler(svc service.EntregaService) *EntregasHandler {
	return &EntregasHandler{svc: svc}
}

// Registrar godoc
// @Summary      Registrar una entrega
// @Description  Liquida la entrega contra el saldo del cliente en una transaccion y encola la conciliacion de inventario.
// @Description  Reenvios con el mismo Idempotency-Key devuelven la entrega original.
// @Tags         entregas
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Idempotency-Key header string                      false "Clave de idempotencia"
// @Param        body            body   dto.RegistrarEntregaRequest true  "Entrega"
// @Success      201  {object} dto.RegistrarEntregaResponse
// @Success      200  {object} dto.RegistrarEntregaResponse "Reenvio ya registrado"
// @Failure      404  {object} apierror.APIError
// @Failure      409  {object} apierror.APIError
// @Failure      422  {object} apierror.ValidationError
// @Router       /v1/entregas [post]
func (h *EntregasHandler) Registrar(c *gin.Context) {
	var req dto.RegistrarEntregaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("JSON invalido: "+err.Error()))
		return
	}
	if req.IdempotencyKey == nil {
		if k := strings.TrimSpace(c.GetHeader("Idempotency-Key")); k != "" {
			req.IdempotencyKey = &k
		}
	}
	// Validated after the merge so the header obeys the same length limit.
	if !validateStruct(c, &req) {
		return
	}

	claims := middleware.GetClaims(c)
	usuarioID, _ := uuid.Parse(claims.UserID)

	resp, err := h.svc.RegistrarEntrega(c.Request.Context(), middleware.TenantID(c), usuarioID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusCreated
	if resp.Duplicada {
		status = http.StatusOK
	}
	c.JSON(status, resp)
}

// Obtener godoc
// @Summary  Obtener una entrega
// @Tags     entregas
// @Produce  json
// @Security BearerAuth
// @Param    id  path     string true "UUID de la entrega"
// @Success  200 {object} dto.EntregaResponse
// @Failure  404 {object} apierror.APIError
// @Router   /v1/entregas/{id} [get]
func (h *EntregasHandler) Obtener(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ObtenerEntrega(c.Request.Context(), middleware.TenantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Listar godoc
// @Summary  Listar entregas
// @Tags     entregas
// @Produce  json
// @Security BearerAuth
// @Param    cliente_id query string false "Filtrar por cliente"
// @Param    desde      query string false "YYYY-MM-DD"
// @Param    hasta      query string false "YYYY-MM-DD"
// @Param    page       query int    false "Pagina"
// @Param    limit      query int    false "Tamano de pagina"
// @Success  200 {object} dto.EntregaListResponse
// @Router   /v1/entregas [get]
func (h *EntregasHandler) Listar(c *gin.Context) {
	var filter dto.EntregaFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListarEntregas(c.Request.Context(), middleware.TenantID(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
