package dto

import "github.com/shopspring/decimal"

type CrearClienteRequest struct {
	Nombre    string  `json:"nombre"    validate:"required,min=2,max=120"`
	Telefono  *string `json:"telefono"  validate:"omitempty,max=40"`
	Direccion *string `json:"direccion" validate:"omitempty,max=200"`
	Email     *string `json:"email"     validate:"omitempty,email"`
}

type ClienteFilter struct {
	Nombre   string `form:"nombre"`
	ConDeuda bool   `form:"con_deuda"`
	Page     int    `form:"page,default=1"  validate:"min=1"`
	Limit    int    `form:"limit,default=50" validate:"min=1,max=200"`
}

type ClienteResponse struct {
	ID                      string          `json:"id"`
	Nombre                  string          `json:"nombre"`
	Telefono                *string         `json:"telefono"`
	Direccion               *string         `json:"direccion"`
	Email                   *string         `json:"email"`
	SaldoPendiente          decimal.Decimal `json:"saldo_pendiente"`
	Bidones10               int             `json:"bidones10"`
	Bidones20               int             `json:"bidones20"`
	Sodas                   int             `json:"sodas"`
	EnvasesDevueltos        int             `json:"envases_devueltos"`
	UltimoTotal             decimal.Decimal `json:"ultimo_total"`
	UltimoPagado            bool            `json:"ultimo_pagado"`
	CantidadesUltimaEntrega map[string]int  `json:"cantidades_ultima_entrega"`
	UltimaEntregaID         *string         `json:"ultima_entrega_id"`
	UltimaEntregaAt         *string         `json:"ultima_entrega_at"`
	Activo                  bool            `json:"activo"`
}

type ClienteListResponse struct {
	Data       []ClienteResponse `json:"data"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"total_pages"`
}

// SaldoResponse is returned by GET /v1/clientes/:id/saldo.
type SaldoResponse struct {
	ClienteID       string          `json:"cliente_id"`
	SaldoPendiente  decimal.Decimal `json:"saldo_pendiente"`
	UltimaEntregaAt *string         `json:"ultima_entrega_at"`
}
