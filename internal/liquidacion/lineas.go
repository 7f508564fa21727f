package liquidacion

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Linea is one priced product line of a delivery.
type Linea struct {
	ProductoID     uuid.UUID
	Nombre         string
	Cantidad       int
	PrecioUnitario decimal.Decimal
}

// Subtotal returns cantidad × precio unitario.
func (l Linea) Subtotal() decimal.Decimal {
	return l.PrecioUnitario.Mul(decimal.NewFromInt(int64(l.Cantidad)))
}

// CalcularTotal sums the subtotals of every line with a positive quantity.
func CalcularTotal(lineas []Linea) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lineas {
		if l.Cantidad <= 0 {
			continue
		}
		total = total.Add(l.Subtotal())
	}
	return total
}

// NormalizarCantidad turns whatever the form sent into a non-negative integer.
// Non-numeric, empty and negative values become 0; fractions are truncated.
func NormalizarCantidad(v any) int {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case float64:
		f = x
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}
