package dto

type AjustarStockRequest struct {
	Cantidad *int   `json:"cantidad" validate:"required,min=0"`
	Motivo   string `json:"motivo"   validate:"required,min=3,max=200"`
}

type StockVehiculoResponse struct {
	ProductoID string `json:"producto_id"`
	Nombre     string `json:"nombre"`
	Cantidad   int    `json:"cantidad"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

type InventarioResponse struct {
	Items []StockVehiculoResponse `json:"items"`
}

type DisponibleResponse struct {
	ProductoID string `json:"producto_id"`
	Disponible int    `json:"disponible"`
}

type MovimientoFilter struct {
	ProductoID string `form:"producto_id" validate:"omitempty,uuid"`
	Tipo       string `form:"tipo"        validate:"omitempty,oneof=entrega ajuste_manual"`
	Page       int    `form:"page,default=1"   validate:"min=1"`
	Limit      int    `form:"limit,default=100" validate:"min=1,max=500"`
}

type MovimientoStockResponse struct {
	ID            string  `json:"id"`
	ProductoID    string  `json:"producto_id"`
	Tipo          string  `json:"tipo"`
	Cantidad      int     `json:"cantidad"`
	StockAnterior int     `json:"stock_anterior"`
	StockNuevo    int     `json:"stock_nuevo"`
	Motivo        string  `json:"motivo"`
	ReferenciaID  *string `json:"referencia_id"`
	CreatedAt     string  `json:"created_at"`
}

type MovimientoListResponse struct {
	Data  []MovimientoStockResponse `json:"data"`
	Total int64                     `json:"total"`
	Page  int                       `json:"page"`
	Limit int                       `json:"limit"`
}
