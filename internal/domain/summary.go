package domain

import (
	"sort"
	"strings"
	"time"
)

// NoPlace labels weekly records without a market name.
const NoPlace = "Sin plaza"

// MostRecent returns the newest date found under keys across records,
// formatted as RFC 3339. When no value parses as a date it falls back to the
// lexicographically greatest non-empty value. Returns nil when nothing is
// found.
func MostRecent(records []RawRecord, keys []string) *string {
	var (
		newest  *time.Time
		lexical string
	)
	for _, r := range records {
		v := Lookup(r, keys)
		if v == nil {
			continue
		}
		if ts := ToTimestamp(v); ts != nil {
			if newest == nil || ts.After(*newest) {
				newest = ts
			}
			continue
		}
		if s := strings.TrimSpace(stringify(v)); s > lexical {
			lexical = s
		}
	}
	if newest != nil {
		return FormatTimestamp(newest)
	}
	if lexical != "" {
		return &lexical
	}
	return nil
}

// PlaceGroup is the set of weekly records reported for one market.
type PlaceGroup struct {
	Place   string
	Records []WeeklyRecord
}

// GroupByPlace groups records by market, largest group first. Groups of equal
// size keep the order in which their market first appeared.
func GroupByPlace(records []WeeklyRecord) []PlaceGroup {
	index := make(map[string]int)
	var groups []PlaceGroup
	for _, r := range records {
		place := r.Place
		if place == "" {
			place = NoPlace
		}
		i, ok := index[place]
		if !ok {
			i = len(groups)
			index[place] = i
			groups = append(groups, PlaceGroup{Place: place})
		}
		groups[i].Records = append(groups[i].Records, r)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return len(groups[i].Records) > len(groups[j].Records)
	})
	return groups
}

// CityReport summarizes a city-mode run.
type CityReport struct {
	Operation     string
	City          string
	Fetched       int
	Records       []CityRecord // matching records, upstream order
	Cheapest      []CityRecord
	MostExpensive []CityRecord
	MostRecent    *string
	OutputPath    string
}

// WeeklyReport summarizes a weekly-mode run.
type WeeklyReport struct {
	Operation  string
	Fetched    int
	InWindow   int
	Tier       WindowTier
	Records    []WeeklyRecord // deduplicated
	Groups     []PlaceGroup
	OutputPath string
}
