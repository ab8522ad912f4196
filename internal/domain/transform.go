package domain

import "time"

// NormalizeCityRecord extracts a CityRecord from a raw city-operation item.
// Missing fields stay empty or nil.
func NormalizeCityRecord(raw RawRecord, f Fields) CityRecord {
	return CityRecord{
		City:        LookupString(raw, f.City),
		Product:     LookupString(raw, f.Product),
		ProductCode: LookupString(raw, f.ProductCode),
		Price:       ToFloat(Lookup(raw, f.AveragePrice), nil),
		CapturedAt:  dateString(Lookup(raw, f.CapturedAt)),
		CreatedAt:   dateString(Lookup(raw, f.CreatedAt)),
	}
}

// NormalizeWeeklyRecord extracts a WeeklyRecord from a raw weekly-operation
// item.
func NormalizeWeeklyRecord(raw RawRecord, f Fields) WeeklyRecord {
	return WeeklyRecord{
		Product:    LookupString(raw, f.Product),
		Place:      LookupString(raw, f.Place),
		Price:      LookupFloat(raw, f.WeeklyPrice),
		PricePerKg: ToFloat(Lookup(raw, f.PricePerKg), nil),
		Date:       dateString(Lookup(raw, f.WeekDate)),
		MaxPerKg:   ToFloat(Lookup(raw, f.MaxPerKg), nil),
		MinPerKg:   ToFloat(Lookup(raw, f.MinPerKg), nil),
	}
}

// WeekDateOf returns a date extractor for SelectWindow over raw records.
func WeekDateOf(f Fields) func(RawRecord) *time.Time {
	return func(r RawRecord) *time.Time {
		return ToTimestamp(Lookup(r, f.WeekDate))
	}
}

// CityPrice returns the sort key of a city record.
func CityPrice(r CityRecord) *float64 { return r.Price }
