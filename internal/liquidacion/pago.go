// Package liquidacion holds the pure settlement rules shared by the synchronous
// delivery registration and the asynchronous reconciliation: line totals, payment
// validation, the balance transition, and vehicle stock depletion.
//
// Nothing in this package performs I/O; callers load and persist state.
package liquidacion

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TipoPago is the payment mode chosen when a delivery is registered.
type TipoPago string

const (
	NoPagado       TipoPago = "no_pagado"
	PagadoCompleto TipoPago = "pagado_completo"
	PagoParcial    TipoPago = "pago_parcial"
)

// Valido reports whether t is one of the known payment modes.
func (t TipoPago) Valido() bool {
	switch t {
	case NoPagado, PagadoCompleto, PagoParcial:
		return true
	}
	return false
}

// Pagado reports whether a payment occurred under this mode.
func (t TipoPago) Pagado() bool { return t == PagadoCompleto || t == PagoParcial }

// TipoPagoLegacy derives the payment mode of records persisted before tipo_pago
// existed, where only the pagado flag was stored.
func TipoPagoLegacy(pagado bool) TipoPago {
	if pagado {
		return PagadoCompleto
	}
	return NoPagado
}

// MediosPago lists the accepted payment methods.
var MediosPago = []string{"efectivo", "transferencia", "debito", "credito", "mercado_pago"}

func medioPagoValido(m string) bool {
	for _, v := range MediosPago {
		if v == m {
			return true
		}
	}
	return false
}

// CampoError reports an invalid or inconsistent input field.
type CampoError struct {
	Campo   string
	Mensaje string
}

func (e *CampoError) Error() string { return fmt.Sprintf("%s: %s", e.Campo, e.Mensaje) }

// ValidarPago checks that the payment fields are consistent with the mode:
//   - pago_parcial requires monto > 0 with at most two decimals; other modes
//     require monto absent or zero.
//   - medio de pago is required iff a payment occurred.
func ValidarPago(tipo TipoPago, monto *decimal.Decimal, medio *string) error {
	if !tipo.Valido() {
		return &CampoError{Campo: "tipo_pago", Mensaje: fmt.Sprintf("tipo de pago desconocido %q", tipo)}
	}

	switch tipo {
	case PagoParcial:
		if monto == nil || !monto.IsPositive() {
			return &CampoError{Campo: "monto_pagado", Mensaje: "requerido y mayor a cero para pago parcial"}
		}
		// Balances are stored as decimal(12,2).
		if !monto.Equal(monto.Round(2)) {
			return &CampoError{Campo: "monto_pagado", Mensaje: "admite como maximo dos decimales"}
		}
	default:
		if monto != nil && !monto.IsZero() {
			return &CampoError{Campo: "monto_pagado", Mensaje: "solo se admite con pago parcial"}
		}
	}

	hayMedio := medio != nil && *medio != ""
	if tipo.Pagado() {
		if !hayMedio {
			return &CampoError{Campo: "medio_pago", Mensaje: "requerido cuando hay pago"}
		}
		if !medioPagoValido(*medio) {
			return &CampoError{Campo: "medio_pago", Mensaje: fmt.Sprintf("medio de pago desconocido %q", *medio)}
		}
	} else if hayMedio {
		return &CampoError{Campo: "medio_pago", Mensaje: "no corresponde a una entrega no pagada"}
	}
	return nil
}
