package pipeline

import (
	"log/slog"

	"github.com/couchcryptid/sipsa-price-etl/internal/domain"
)

func normalizeCity(raw []domain.RawRecord, f domain.Fields) []domain.CityRecord {
	out := make([]domain.CityRecord, len(raw))
	for i, r := range raw {
		out[i] = domain.NormalizeCityRecord(r, f)
	}
	return out
}

func normalizeWeekly(raw []domain.RawRecord, f domain.Fields) []domain.WeeklyRecord {
	out := make([]domain.WeeklyRecord, 0, len(raw))
	for _, r := range raw {
		if r == nil {
			continue
		}
		out = append(out, domain.NormalizeWeeklyRecord(r, f))
	}
	return out
}

func toRecords[T domain.Record](records []T) []domain.Record {
	out := make([]domain.Record, len(records))
	for i, r := range records {
		out[i] = r
	}
	return out
}

// logUnpriced reports how many records will sort last for lack of a price.
func logUnpriced[T any](logger *slog.Logger, records []T, priceOf func(T) *float64) {
	n := 0
	for _, r := range records {
		if priceOf(r) == nil {
			n++
		}
	}
	if n > 0 {
		logger.Debug("records without a usable price", "count", n, "total", len(records))
	}
}
