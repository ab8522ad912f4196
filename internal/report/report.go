// Package report renders run summaries as the Spanish console text operators
// already know from the SIPSA scripts.
package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/couchcryptid/sipsa-price-etl/internal/domain"
)

const (
	maxPlaces          = 15
	maxProductsByPlace = 5
	notAvailable       = "N/A"
)

// printer remembers the first write error so callers check once.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

// WriteCity prints the city summary: record count, cheapest and most
// expensive products, and the latest capture date.
func WriteCity(w io.Writer, r *domain.CityReport) error {
	p := &printer{w: w}
	p.printf("\n=== SIPSA %s ===\n", r.City)
	p.printf("Total registros para %s: %d\n\n", r.City, len(r.Records))

	p.printf("Top %d productos más baratos (precioPromedio):\n", len(r.Cheapest))
	writeRanking(p, r.Cheapest)
	p.printf("\nTop %d productos más caros (precioPromedio):\n", len(r.MostExpensive))
	writeRanking(p, r.MostExpensive)

	latest := notAvailable
	if r.MostRecent != nil {
		latest = *r.MostRecent
	}
	p.printf("\nfechaCaptura más reciente: %s\n\n", latest)
	if r.OutputPath != "" {
		p.printf("JSON guardado en: %s\n", r.OutputPath)
	}
	return p.err
}

func writeRanking(p *printer, records []domain.CityRecord) {
	for i, rec := range records {
		p.printf("  %2d. %s: %s\n", i+1, orNA(rec.Product), formatPrice(rec.Price))
	}
}

// WriteWeekly prints the weekly summary grouped by market: the largest 15
// markets with up to 5 products each.
func WriteWeekly(w io.Writer, r *domain.WeeklyReport) error {
	p := &printer{w: w}
	p.printf("\n=== SIPSA: Productos por plaza y precio (última semana) ===\n")
	p.printf("Total registros: %d\n\n", len(r.Records))

	groups := r.Groups
	if len(groups) > maxPlaces {
		groups = groups[:maxPlaces]
	}
	for _, g := range groups {
		p.printf("  Plaza: %s (%d registros)\n", g.Place, len(g.Records))
		shown := g.Records
		if len(shown) > maxProductsByPlace {
			shown = shown[:maxProductsByPlace]
		}
		for _, rec := range shown {
			p.printf("    - %s: %s\n", orNA(rec.Product), formatPrice(rec.DisplayPrice()))
		}
		if rest := len(g.Records) - len(shown); rest > 0 {
			p.printf("    ... y %d más\n", rest)
		}
		p.printf("\n")
	}
	p.printf("Plazas con datos: %d\n", len(r.Groups))
	if r.OutputPath != "" {
		p.printf("JSON guardado: %s\n", r.OutputPath)
	}
	return p.err
}

// WriteOperations lists the operations a WSDL declares, one per line.
func WriteOperations(w io.Writer, ops []string) error {
	p := &printer{w: w}
	p.printf("Operaciones disponibles (%d):\n", len(ops))
	for _, op := range ops {
		p.printf("  - %s\n", op)
	}
	return p.err
}

func formatPrice(v *float64) string {
	if v == nil {
		return notAvailable
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}
