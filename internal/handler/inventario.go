package handler

import (
	"net/http"

	"repartos/internal/dto"
	"repartos/internal/middleware"
	"repartos/internal/service"

	"github.com/gin-gonic/gin"
)

type InventarioHandler struct{ svc service.InventarioService }

func NewInventarioHandler(svc service.InventarioService) *InventarioHandler {
	return &InventarioHandler{svc: svc}
}

// Snapshot godoc
// @Summary  Inventario del vehiculo
// @Tags     inventario
// @Produce  json
// @Security BearerAuth
// @Success  200 {object} dto.InventarioResponse
// @Router   /v1/inventario [get]
func (h *InventarioHandler) Snapshot(c *gin.Context) {
	resp, err := h.svc.Snapshot(c.Request.Context(), middleware.TenantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *InventarioHandler) Disponible(c *gin.Context) {
	productoID, ok := paramUUID(c, "producto_id")
	if !ok {
		return
	}
	n, err := h.svc.Disponible(c.Request.Context(), middleware.TenantID(c), productoID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.DisponibleResponse{ProductoID: productoID.String(), Disponible: n})
}

// Ajustar godoc
// @Summary      Ajuste manual de stock del vehiculo
// @Description  Fija la cantidad absoluta y registra un movimiento ajuste_manual.
// @Tags         inventario
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        producto_id path     string                  true "UUID del producto"
// @Param        body        body     dto.AjustarStockRequest true "Cantidad y motivo"
// @Success      200         {object} dto.StockVehiculoResponse
// @Failure      404         {object} apierror.APIError
// @Router       /v1/inventario/{producto_id} [put]
func (h *InventarioHandler) Ajustar(c *gin.Context) {
	productoID, ok := paramUUID(c, "producto_id")
	if !ok {
		return
	}
	var req dto.AjustarStockRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Ajustar(c.Request.Context(), middleware.TenantID(c), productoID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *InventarioHandler) Movimientos(c *gin.Context) {
	var filter dto.MovimientoFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListarMovimientos(c.Request.Context(), middleware.TenantID(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
