package domain

import "sort"

// FilterByCity keeps the records whose city field matches target, ignoring
// case, accents and surrounding whitespace.
func FilterByCity(records []RawRecord, fields Fields, target string) []RawRecord {
	want := NormalizeText(target)
	out := make([]RawRecord, 0)
	for _, r := range records {
		if r == nil {
			continue
		}
		if NormalizeText(Lookup(r, fields.City)) == want {
			out = append(out, r)
		}
	}
	return out
}

// SortByPrice returns a copy of records in ascending price order. Records
// without a price go last and keep their relative order.
func SortByPrice[T any](records []T, priceOf func(T) *float64) []T {
	type keyed struct {
		price *float64
		rec   T
	}
	ks := make([]keyed, len(records))
	for i, r := range records {
		ks[i] = keyed{price: priceOf(r), rec: r}
	}
	sort.SliceStable(ks, func(i, j int) bool {
		a, b := ks[i].price, ks[j].price
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
	out := make([]T, len(ks))
	for i, k := range ks {
		out[i] = k.rec
	}
	return out
}

// Cheapest returns the first n records of an ascending sort.
func Cheapest[T any](sorted []T, n int) []T {
	if n > len(sorted) {
		n = len(sorted)
	}
	if n <= 0 {
		return []T{}
	}
	out := make([]T, n)
	copy(out, sorted[:n])
	return out
}

// MostExpensive returns the last n records of an ascending sort, largest
// first.
func MostExpensive[T any](sorted []T, n int) []T {
	if n > len(sorted) {
		n = len(sorted)
	}
	if n <= 0 {
		return []T{}
	}
	out := make([]T, 0, n)
	for i := len(sorted) - 1; i >= len(sorted)-n; i-- {
		out = append(out, sorted[i])
	}
	return out
}

// Dedup keeps the first record seen for each key, preserving order.
func Dedup[T any, K comparable](records []T, keyOf func(T) K) []T {
	seen := make(map[K]struct{}, len(records))
	out := make([]T, 0, len(records))
	for _, r := range records {
		k := keyOf(r)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// DedupWeekly removes weekly records repeating a (product, place, date) tuple.
func DedupWeekly(records []WeeklyRecord) []WeeklyRecord {
	return Dedup(records, WeeklyRecord.dedupKey)
}
