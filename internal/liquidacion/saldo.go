package liquidacion

import (
	"github.com/shopspring/decimal"
)

// Resultado is the outcome of applying one delivery to a client's balance.
type Resultado struct {
	SaldoAnterior decimal.Decimal
	TotalAdeudado decimal.Decimal // saldo anterior + total de la entrega
	MontoAplicado decimal.Decimal // amount the payment covered
	SaldoNuevo    decimal.Decimal
}

// Transicion is the only balance rule in the system. Both the delivery registration
// and the reconciliation of a persisted delivery call it.
//
// The delivery is always added to the existing debt before the payment is applied,
// so a payment pays down the oldest debt first:
//
//	no_pagado:        aplicado = 0;              nuevo = anterior + total
//	pagado_completo:  aplicado = anterior+total; nuevo = 0
//	pago_parcial:     aplicado = monto;          nuevo = max(0, anterior + total - monto)
//
// montoParcial is ignored unless tipo is PagoParcial.
func Transicion(saldoAnterior, total decimal.Decimal, tipo TipoPago, montoParcial decimal.Decimal) (Resultado, error) {
	if total.IsNegative() {
		return Resultado{}, &CampoError{Campo: "total", Mensaje: "no puede ser negativo"}
	}
	adeudado := saldoAnterior.Add(total)
	res := Resultado{SaldoAnterior: saldoAnterior, TotalAdeudado: adeudado}

	switch tipo {
	case NoPagado:
		res.MontoAplicado = decimal.Zero
		res.SaldoNuevo = adeudado
	case PagadoCompleto:
		res.MontoAplicado = adeudado
		res.SaldoNuevo = decimal.Zero
	case PagoParcial:
		if !montoParcial.IsPositive() {
			return Resultado{}, &CampoError{Campo: "monto_pagado", Mensaje: "requerido y mayor a cero para pago parcial"}
		}
		res.MontoAplicado = montoParcial
		res.SaldoNuevo = decimal.Max(decimal.Zero, adeudado.Sub(montoParcial))
	default:
		return Resultado{}, &CampoError{Campo: "tipo_pago", Mensaje: "tipo de pago desconocido"}
	}
	return res, nil
}
