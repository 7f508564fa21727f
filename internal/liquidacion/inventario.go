package liquidacion

import "github.com/google/uuid"

// Descontar applies a delivered quantity to a vehicle stock counter.
// The result is clamped at zero however large the decrement.
func Descontar(actual, cantidad int) int {
	if cantidad <= 0 {
		if actual < 0 {
			return 0
		}
		return actual
	}
	nuevo := actual - cantidad
	if nuevo < 0 {
		return 0
	}
	return nuevo
}

// Slot is one of the fixed stock-keeping fields older deliveries and the client
// snapshot still carry.
type Slot string

const (
	SlotSodas     Slot = "sodas"
	SlotBidones10 Slot = "bidones10"
	SlotBidones20 Slot = "bidones20"
)

// Slots lists the legacy slots in display order.
var Slots = []Slot{SlotSodas, SlotBidones10, SlotBidones20}

// Valido reports whether s is a known legacy slot.
func (s Slot) Valido() bool {
	for _, v := range Slots {
		if v == s {
			return true
		}
	}
	return false
}

// CantidadesPorSlot aggregates line quantities into the legacy slots. slotDe maps a
// product to its slot from stored catalog data; products without a slot are skipped.
func CantidadesPorSlot(lineas []Linea, slotDe func(productoID uuid.UUID) (Slot, bool)) map[Slot]int {
	out := make(map[Slot]int, len(Slots))
	for _, s := range Slots {
		out[s] = 0
	}
	for _, l := range lineas {
		if l.Cantidad <= 0 {
			continue
		}
		if s, ok := slotDe(l.ProductoID); ok {
			out[s] += l.Cantidad
		}
	}
	return out
}
