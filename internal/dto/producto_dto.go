package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CrearProductoRequest struct {
	Nombre         string          `json:"nombre"          validate:"required,min=2,max=120"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario" validate:"min=0"`
	Stock          int             `json:"stock"           validate:"min=0"`
	SlotLegacy     *string         `json:"slot_legacy"     validate:"omitempty,oneof=sodas bidones10 bidones20"`
}

type ActualizarProductoRequest struct {
	Nombre         *string          `json:"nombre"          validate:"omitempty,min=2,max=120"`
	PrecioUnitario *decimal.Decimal `json:"precio_unitario"`
	Stock          *int             `json:"stock"           validate:"omitempty,min=0"`
	Activo         *bool            `json:"activo"`
	// SlotLegacy: "" clears the mapping.
	SlotLegacy *string `json:"slot_legacy" validate:"omitempty,oneof=sodas bidones10 bidones20"`
}

// ─── Filter / Pagination ─────────────────────────────────────────────────────

type ProductoFilter struct {
	Nombre string `form:"nombre"`
	Activo string `form:"activo"` // "true" (default) | "false" | "all"
	Page   int    `form:"page,default=1"  validate:"min=1"`
	Limit  int    `form:"limit,default=50" validate:"min=1,max=200"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ProductoResponse struct {
	ID             string          `json:"id"`
	Nombre         string          `json:"nombre"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario"`
	Stock          int             `json:"stock"`
	SlotLegacy     *string         `json:"slot_legacy"`
	Activo         bool            `json:"activo"`
}

type ProductoListResponse struct {
	Data       []ProductoResponse `json:"data"`
	Total      int64              `json:"total"`
	Page       int                `json:"page"`
	Limit      int                `json:"limit"`
	TotalPages int                `json:"total_pages"`
}
