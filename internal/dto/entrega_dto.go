package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

// ItemEntregaRequest is one line of the delivery form. Cantidad is whatever
// the form sent (number, numeric string, empty) and is normalized server-side.
type ItemEntregaRequest struct {
	ProductoID string `json:"producto_id" validate:"required,uuid"`
	Cantidad   any    `json:"cantidad"`
}

type RegistrarEntregaRequest struct {
	ClienteID        string               `json:"cliente_id"        validate:"required,uuid"`
	Items            []ItemEntregaRequest `json:"items"             validate:"dive"`
	EnvasesDevueltos int                  `json:"envases_devueltos" validate:"min=0"`
	TipoPago         string               `json:"tipo_pago"         validate:"required"`
	MontoPagado      *decimal.Decimal     `json:"monto_pagado"`
	MedioPago        *string              `json:"medio_pago"`
	Observaciones    *string              `json:"observaciones"     validate:"omitempty,max=500"`
	// IdempotencyKey identifies one user-confirmed submission; retries reuse it.
	IdempotencyKey *string `json:"idempotency_key" validate:"omitempty,max=64"`
}

type EntregaFilter struct {
	ClienteID string `form:"cliente_id" validate:"omitempty,uuid"`
	Desde     string `form:"desde"      validate:"omitempty,datetime=2006-01-02"`
	Hasta     string `form:"hasta"      validate:"omitempty,datetime=2006-01-02"`
	Page      int    `form:"page,default=1"  validate:"min=1"`
	Limit     int    `form:"limit,default=50" validate:"min=1,max=200"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type EntregaItemResponse struct {
	ProductoID     string          `json:"producto_id"`
	Nombre         string          `json:"nombre"`
	Cantidad       int             `json:"cantidad"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario"`
	Subtotal       decimal.Decimal `json:"subtotal"`
}

type EntregaResponse struct {
	ID               string                `json:"id"`
	ClienteID        string                `json:"cliente_id"`
	UsuarioID        *string               `json:"usuario_id"`
	Fecha            string                `json:"fecha"`
	Items            []EntregaItemResponse `json:"items"`
	EnvasesDevueltos int                   `json:"envases_devueltos"`
	Total            decimal.Decimal       `json:"total"`
	Pagado           bool                  `json:"pagado"`
	TipoPago         string                `json:"tipo_pago"`
	MontoPagado      decimal.Decimal       `json:"monto_pagado"`
	MedioPago        *string               `json:"medio_pago"`
	Observaciones    *string               `json:"observaciones"`
	Sodas            int                   `json:"sodas"`
	Bidones10        int                   `json:"bidones10"`
	Bidones20        int                   `json:"bidones20"`
	SaldoAnterior    decimal.Decimal       `json:"saldo_anterior"`
	SaldoNuevo       decimal.Decimal       `json:"saldo_nuevo"`
	ExcedeStock      bool                  `json:"excede_stock"`
}

// AdvertenciaStock reports a line that asks for more than is on hand.
// Origen: "vehiculo" | "catalogo"
type AdvertenciaStock struct {
	ProductoID string `json:"producto_id"`
	Nombre     string `json:"nombre"`
	Solicitado int    `json:"solicitado"`
	Disponible int    `json:"disponible"`
	Origen     string `json:"origen"`
}

type RegistrarEntregaResponse struct {
	Entrega           EntregaResponse    `json:"entrega"`
	SaldoAnterior     decimal.Decimal    `json:"saldo_anterior"`
	SaldoNuevo        decimal.Decimal    `json:"saldo_nuevo"`
	MontoAplicado     decimal.Decimal    `json:"monto_aplicado"`
	AdvertenciasStock []AdvertenciaStock `json:"advertencias_stock"`
	// Duplicada is true when the idempotency key matched an earlier submission.
	Duplicada bool `json:"duplicada"`
}

type EntregaListResponse struct {
	Data       []EntregaResponse `json:"data"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"total_pages"`
}

// ConciliacionResponse describes which effects of a delivery have been applied.
type ConciliacionResponse struct {
	EntregaID          string           `json:"entrega_id"`
	SaldoAplicado      bool             `json:"saldo_aplicado"`
	InventarioAplicado bool             `json:"inventario_aplicado"`
	OrigenSaldo        *string          `json:"origen_saldo"`
	SaldoAnterior      *decimal.Decimal `json:"saldo_anterior"`
	SaldoNuevo         *decimal.Decimal `json:"saldo_nuevo"`
	Intentos           int              `json:"intentos"`
	UltimoError        *string          `json:"ultimo_error"`
	// SinCambios is true when the run found nothing left to apply.
	SinCambios bool `json:"sin_cambios"`
}

// DLQResponse is returned by the admin DLQ inspection endpoint.
type DLQResponse struct {
	Queue    string `json:"queue"`
	Longitud int64  `json:"longitud"`
}
