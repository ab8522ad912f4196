package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// RawRecord is one loosely-typed item returned by the SIPSA service.
// Values are nil, string, a numeric kind, time.Time or a nested RawRecord.
type RawRecord map[string]any

// Record is a normalized record that can be loaded into a sink.
type Record interface {
	ID() string
	Kind() string
}

const (
	KindCity   = "city"
	KindWeekly = "weekly"
)

// Batch is the output of one run, handed to every loader.
type Batch struct {
	Name        string // file stem, e.g. sipsa_medellin_20240502_1030
	Operation   string
	GeneratedAt time.Time
	Records     []Record
}

// CityRecord is the normalized form of a promediosSipsaCiudad item.
type CityRecord struct {
	City        string   `json:"ciudad"`
	Product     string   `json:"producto"`
	ProductCode string   `json:"codProducto"`
	Price       *float64 `json:"precioPromedio"`
	CapturedAt  *string  `json:"fechaCaptura"`
	CreatedAt   *string  `json:"fechaCreacion"`
}

func (r CityRecord) ID() string {
	return generateID(KindCity, r.City, r.ProductCode, r.Product, deref(r.CapturedAt))
}

func (CityRecord) Kind() string { return KindCity }

// WeeklyRecord is the normalized form of a promediosSipsaSemanaMadr item.
type WeeklyRecord struct {
	Product    string   `json:"producto"`
	Place      string   `json:"plaza"`
	Price      *float64 `json:"precio"`
	PricePerKg *float64 `json:"precioPromedioKg"`
	Date       *string  `json:"fecha"`
	MaxPerKg   *float64 `json:"maximoKg"`
	MinPerKg   *float64 `json:"minimoKg"`
}

func (r WeeklyRecord) ID() string {
	return generateID(KindWeekly, r.Product, r.Place, deref(r.Date))
}

func (WeeklyRecord) Kind() string { return KindWeekly }

// DisplayPrice returns the price shown in reports, falling back to the
// per-kg average when the main price is missing or zero.
func (r WeeklyRecord) DisplayPrice() *float64 {
	if r.Price != nil && *r.Price != 0 {
		return r.Price
	}
	if r.PricePerKg != nil && *r.PricePerKg != 0 {
		return r.PricePerKg
	}
	return nil
}

// weeklyKey identifies a weekly record for deduplication. hasDate keeps a
// missing date distinct from an empty one.
type weeklyKey struct {
	product string
	place   string
	date    string
	hasDate bool
}

func (r WeeklyRecord) dedupKey() weeklyKey {
	k := weeklyKey{product: r.Product, place: r.Place}
	if r.Date != nil {
		k.date, k.hasDate = *r.Date, true
	}
	return k
}

// generateID produces a deterministic ID from a record's identity fields.
func generateID(kind string, parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	short := hex.EncodeToString(hash[:8])
	if kind == "" {
		return short
	}
	return kind + "-" + short
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
