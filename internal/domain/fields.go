package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Fields lists, per semantic field, the raw keys to try in priority order.
type Fields struct {
	City         []string `yaml:"city"`
	Product      []string `yaml:"product"`
	ProductCode  []string `yaml:"product_code"`
	Place        []string `yaml:"place"`
	AveragePrice []string `yaml:"average_price"`
	WeeklyPrice  []string `yaml:"weekly_price"`
	PricePerKg   []string `yaml:"price_per_kg"`
	MaxPerKg     []string `yaml:"max_per_kg"`
	MinPerKg     []string `yaml:"min_per_kg"`
	CapturedAt   []string `yaml:"captured_at"`
	CreatedAt    []string `yaml:"created_at"`
	WeekDate     []string `yaml:"week_date"`
}

// DefaultFields returns the candidate keys observed across SIPSA operations.
func DefaultFields() Fields {
	return Fields{
		City:         []string{"ciudad", "Ciudad", "CIUDAD"},
		Product:      []string{"artiNombre", "nombreProducto", "producto", "Producto", "artiNombre_"},
		ProductCode:  []string{"codProducto", "artiId", "CodProducto"},
		Place:        []string{"fuenNombre", "fuenNombre_", "plaza", "Plaza", "fuente"},
		AveragePrice: []string{"precioPromedio", "PrecioPromedio", "precio_promedio"},
		WeeklyPrice:  []string{"precioPromedio", "precio_promedio", "promedioKg", "promedio_kg", "PrecioPromedio"},
		PricePerKg:   []string{"promedioKg"},
		MaxPerKg:     []string{"maximoKg"},
		MinPerKg:     []string{"minimoKg"},
		CapturedAt:   []string{"fechaCaptura", "FechaCaptura", "FECHACAPTURA"},
		CreatedAt:    []string{"fechaCreacion", "FechaCreacion"},
		WeekDate:     []string{"fechaIni", "enmaFecha", "fechaCaptura", "fechaCreacion", "fecha"},
	}
}

// Merge returns f with every non-empty list in override replacing its default.
func (f Fields) Merge(override Fields) Fields {
	pick := func(def, o []string) []string {
		if len(o) > 0 {
			return o
		}
		return def
	}
	return Fields{
		City:         pick(f.City, override.City),
		Product:      pick(f.Product, override.Product),
		ProductCode:  pick(f.ProductCode, override.ProductCode),
		Place:        pick(f.Place, override.Place),
		AveragePrice: pick(f.AveragePrice, override.AveragePrice),
		WeeklyPrice:  pick(f.WeeklyPrice, override.WeeklyPrice),
		PricePerKg:   pick(f.PricePerKg, override.PricePerKg),
		MaxPerKg:     pick(f.MaxPerKg, override.MaxPerKg),
		MinPerKg:     pick(f.MinPerKg, override.MinPerKg),
		CapturedAt:   pick(f.CapturedAt, override.CapturedAt),
		CreatedAt:    pick(f.CreatedAt, override.CreatedAt),
		WeekDate:     pick(f.WeekDate, override.WeekDate),
	}
}

// Lookup returns the value of the first candidate key present with a non-nil
// value, or nil when none match.
func Lookup(rec RawRecord, keys []string) any {
	for _, k := range keys {
		if v, ok := rec[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// LookupString returns the trimmed string form of Lookup, or "".
func LookupString(rec RawRecord, keys []string) string {
	v := Lookup(rec, keys)
	if v == nil {
		return ""
	}
	return strings.TrimSpace(stringify(v))
}

// LookupFloat returns the first candidate whose value coerces to a number.
// Unlike Lookup it keeps going past present-but-unparsable values.
func LookupFloat(rec RawRecord, keys []string) *float64 {
	for _, k := range keys {
		if f := ToFloat(rec[k], nil); f != nil {
			return f
		}
	}
	return nil
}

// stringify renders a raw value the way it appears in reports and IDs.
func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case time.Time:
		return x.Format(time.RFC3339)
	case *time.Time:
		if x == nil {
			return ""
		}
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}
