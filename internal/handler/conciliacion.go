package handler

import (
	"context"
	"net/http"

	"repartos/internal/apierror"
	"repartos/internal/dto"
	"repartos/internal/middleware"
	"repartos/internal/service"
	"repartos/internal/worker"

	"github.com/gin-gonic/gin"
)

// DLQCounter reports how many jobs are parked in a dead letter queue.
type DLQCounter interface {
	Length(ctx context.Context, queue string) (int64, error)
}

type ConciliacionHandler struct {
	svc service.ConciliacionService
	dlq DLQCounter
}

func NewConciliacionHandler(svc service.ConciliacionService, dlq DLQCounter) *ConciliacionHandler {
	return &ConciliacionHandler{svc: svc, dlq: dlq}
}

// Conciliar godoc
// @Summary      Re-ejecutar la conciliacion de una entrega
// @Description  Aplica los efectos pendientes (saldo e inventario). Idempotente: una segunda llamada no cambia nada.
// @Tags         conciliacion
// @Produce      json
// @Security     BearerAuth
// @Param        id  path     string true "UUID de la entrega"
// @Success      200 {object} dto.ConciliacionResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/entregas/{id}/conciliar [post]
func (h *ConciliacionHandler) Conciliar(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ConciliarEntrega(c.Request.Context(), middleware.TenantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ConciliacionHandler) Estado(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ObtenerEstado(c.Request.Context(), middleware.TenantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// DLQ godoc
// @Summary  Trabajos de conciliacion en la cola de fallidos
// @Tags     conciliacion
// @Produce  json
// @Security BearerAuth
// @Success  200 {object} dto.DLQResponse
// @Router   /v1/conciliacion/dlq [get]
func (h *ConciliacionHandler) DLQ(c *gin.Context) {
	n, err := h.dlq.Length(c.Request.Context(), worker.QueueConciliacion)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, apierror.New("Cola no disponible"))
		return
	}
	c.JSON(http.StatusOK, dto.DLQResponse{Queue: worker.DLQPrefix + worker.QueueConciliacion, Longitud: n})
}
