package model

import (
	"sort"
	"time"
)

// DateLayout is the calendar date layout used for chart labels (day-month-year).
const DateLayout = "02-01-2006"

// SeriesPoint is one NDVI sample for a calendar date.
type SeriesPoint struct {
	Date  time.Time
	Value float64
}

// Label formats the point's date for chart axes.
func (p SeriesPoint) Label() string {
	return p.Date.Format(DateLayout)
}

// Series is an NDVI time series ordered by date ascending. An empty series
// means there is no data for the region.
type Series []SeriesPoint

// Empty reports whether the series has no points.
func (s Series) Empty() bool { return len(s) == 0 }

// Clone returns a copy that shares no backing array with s.
func (s Series) Clone() Series {
	if s == nil {
		return nil
	}
	out := make(Series, len(s))
	copy(out, s)
	return out
}

// Labels returns the formatted date of each point.
func (s Series) Labels() []string {
	out := make([]string, len(s))
	for i, p := range s {
		out[i] = p.Label()
	}
	return out
}

// Values returns the NDVI value of each point.
func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// Dates returns the date of each point.
func (s Series) Dates() []time.Time {
	out := make([]time.Time, len(s))
	for i, p := range s {
		out[i] = p.Date
	}
	return out
}

// SortByDate orders the series by date ascending, keeping the relative order
// of points that share a date.
func (s Series) SortByDate() {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].Date.Before(s[j].Date)
	})
}
