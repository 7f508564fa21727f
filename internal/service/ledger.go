package service

import (
	"time"

	"repartos/internal/dto"
	"repartos/internal/liquidacion"
	"repartos/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// tipoPagoDe returns the stored payment mode, deriving it from the pagado flag
// for records written before tipo_pago existed.
func tipoPagoDe(e *model.Entrega) liquidacion.TipoPago {
	if t := liquidacion.TipoPago(e.TipoPago); t.Valido() {
		return t
	}
	return liquidacion.TipoPagoLegacy(e.Pagado)
}

// transicionDe recomputes the balance effect of a persisted delivery.
func transicionDe(saldoAnterior decimal.Decimal, e *model.Entrega) (liquidacion.Resultado, error) {
	tipo := tipoPagoDe(e)
	monto := decimal.Zero
	if tipo == liquidacion.PagoParcial {
		monto = e.MontoPagado
	}
	return liquidacion.Transicion(saldoAnterior, e.Total, tipo, monto)
}

// snapshotVigente reports whether e is at least as recent as the delivery the
// client snapshot currently describes.
func snapshotVigente(c *model.Cliente, e *model.Entrega) bool {
	return c.UltimaEntregaAt == nil || !e.Fecha.Before(*c.UltimaEntregaAt)
}

// aplicarSnapshot copies the delivery's quantities and payment outcome onto
// the client's "last delivery" fields.
func aplicarSnapshot(c *model.Cliente, e *model.Entrega) {
	c.Sodas = e.Sodas
	c.Bidones10 = e.Bidones10
	c.Bidones20 = e.Bidones20
	c.EnvasesDevueltos = e.EnvasesDevueltos
	c.UltimoTotal = e.Total
	c.UltimoPagado = e.Pagado

	cantidades := datatypes.JSONMap{}
	for _, it := range e.Items {
		if it.Cantidad > 0 {
			cantidades[it.ProductoID.String()] = it.Cantidad
		}
	}
	c.CantidadesUltimaEntrega = cantidades

	id := e.ID
	fecha := e.Fecha
	c.UltimaEntregaID = &id
	c.UltimaEntregaAt = &fecha
}

func clienteToResponse(c *model.Cliente) dto.ClienteResponse {
	out := dto.ClienteResponse{
		ID:                      c.ID.String(),
		Nombre:                  c.Nombre,
		Telefono:                c.Telefono,
		Direccion:               c.Direccion,
		Email:                   c.Email,
		SaldoPendiente:          c.SaldoPendiente,
		Bidones10:               c.Bidones10,
		Bidones20:               c.Bidones20,
		Sodas:                   c.Sodas,
		EnvasesDevueltos:        c.EnvasesDevueltos,
		UltimoTotal:             c.UltimoTotal,
		UltimoPagado:            c.UltimoPagado,
		CantidadesUltimaEntrega: make(map[string]int, len(c.CantidadesUltimaEntrega)),
		Activo:                  c.Activo,
	}
	for k, v := range c.CantidadesUltimaEntrega {
		out.CantidadesUltimaEntrega[k] = liquidacion.NormalizarCantidad(v)
	}
	if c.UltimaEntregaID != nil {
		id := c.UltimaEntregaID.String()
		out.UltimaEntregaID = &id
	}
	if c.UltimaEntregaAt != nil {
		at := c.UltimaEntregaAt.UTC().Format(time.RFC3339)
		out.UltimaEntregaAt = &at
	}
	return out
}

func entregaToResponse(e *model.Entrega) dto.EntregaResponse {
	out := dto.EntregaResponse{
		ID:               e.ID.String(),
		ClienteID:        e.ClienteID.String(),
		Fecha:            e.Fecha.UTC().Format(time.RFC3339),
		Items:            make([]dto.EntregaItemResponse, 0, len(e.Items)),
		EnvasesDevueltos: e.EnvasesDevueltos,
		Total:            e.Total,
		Pagado:           e.Pagado,
		TipoPago:         string(tipoPagoDe(e)),
		MontoPagado:      e.MontoPagado,
		MedioPago:        e.MedioPago,
		Observaciones:    e.Observaciones,
		Sodas:            e.Sodas,
		Bidones10:        e.Bidones10,
		Bidones20:        e.Bidones20,
		SaldoAnterior:    e.SaldoAnterior,
		SaldoNuevo:       e.SaldoNuevo,
		ExcedeStock:      e.ExcedeStock,
	}
	if e.UsuarioID != nil {
		uid := e.UsuarioID.String()
		out.UsuarioID = &uid
	}
	for _, it := range e.Items {
		out.Items = append(out.Items, dto.EntregaItemResponse{
			ProductoID:     it.ProductoID.String(),
			Nombre:         it.Nombre,
			Cantidad:       it.Cantidad,
			PrecioUnitario: it.PrecioUnitario,
			Subtotal:       it.Subtotal,
		})
	}
	return out
}

func totalPages(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
