package domain

import (
	"sort"
	"time"
)

// WindowPolicy configures trailing-window selection.
type WindowPolicy struct {
	Window time.Duration // how far back from "now" a record may be
	Skew   time.Duration // how far past "now" a record may be (clock skew, same-day loads)
	Cap    int           // pass-through limit when no record has a date; <= 0 means no limit
}

// DefaultWindowPolicy returns a 7-day window with 1 day of skew and a
// 5000-record pass-through cap.
func DefaultWindowPolicy() WindowPolicy {
	return WindowPolicy{
		Window: 7 * 24 * time.Hour,
		Skew:   24 * time.Hour,
		Cap:    5000,
	}
}

// Contains reports whether t falls within [now-Window, now+Skew].
func (p WindowPolicy) Contains(t, now time.Time) bool {
	return !t.Before(now.Add(-p.Window)) && !t.After(now.Add(p.Skew))
}

// WindowTier names the selection rule SelectWindow ended up applying.
type WindowTier string

const (
	TierEmpty       WindowTier = "empty"
	TierLiteral     WindowTier = "literal"
	TierSynthetic   WindowTier = "synthetic"
	TierPassthrough WindowTier = "passthrough"
)

// SelectWindow picks the records that fall in the trailing window ending at
// now. When none do, it anchors the window at the newest parsable timestamp
// instead and returns those records newest first. When no record has a
// parsable timestamp it returns the first Cap records unfiltered.
func SelectWindow[T any](records []T, dateOf func(T) *time.Time, now time.Time, p WindowPolicy) ([]T, WindowTier) {
	if len(records) == 0 {
		return []T{}, TierEmpty
	}

	type dated struct {
		at  time.Time
		rec T
	}
	var (
		literal []T
		all     []dated
	)
	for _, r := range records {
		ts := dateOf(r)
		if ts == nil {
			continue
		}
		all = append(all, dated{at: *ts, rec: r})
		if p.Contains(*ts, now) {
			literal = append(literal, r)
		}
	}
	if len(literal) > 0 {
		return literal, TierLiteral
	}

	if len(all) == 0 {
		n := len(records)
		if p.Cap > 0 && n > p.Cap {
			n = p.Cap
		}
		out := make([]T, n)
		copy(out, records[:n])
		return out, TierPassthrough
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].at.After(all[j].at) })
	newest := all[0].at
	out := make([]T, 0, len(all))
	for _, d := range all {
		if newest.Sub(d.at) <= p.Window {
			out = append(out, d.rec)
		}
	}
	return out, TierSynthetic
}
