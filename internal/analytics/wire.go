package analytics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/signalsfoundry/ndvi-overlay/model"
)

// requestBody is the backend's collection-of-rings payload. This service only
// ever sends one ring, but the outer list is part of the contract.
type requestBody struct {
	Coordinates [][][2]float64 `json:"coordinates"`
}

// wirePoint is one element of the backend response. Extra fields the backend
// attaches (forage resource, woody cover) are ignored.
type wirePoint struct {
	Fecha string   `json:"fecha"`
	NDVI  *float64 `json:"NDVI"`
}

// EncodeRequest serializes region as {"coordinates": [[[lng, lat], ...]]}.
func EncodeRequest(region model.Region) ([]byte, error) {
	return json.Marshal(requestBody{Coordinates: [][][2]float64{region.Pairs()}})
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

// DecodeSeries parses a backend response into a Series ordered by date.
//
// The backend serializes the series itself and the HTTP layer encodes that
// string again, so the body may be either a JSON array or a JSON string that
// contains the array. Points whose NDVI is null carry nothing to plot and are
// skipped. Several images can fall on the same day; their values are averaged
// into one point per date.
func DecodeSeries(body []byte) (model.Series, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '"' {
		var inner string
		if err := json.Unmarshal(body, &inner); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		body = bytes.TrimSpace([]byte(inner))
	}
	if len(body) == 0 || body[0] != '[' {
		return nil, fmt.Errorf("%w: expected a JSON array", ErrDecode)
	}

	var points []wirePoint
	if err := json.Unmarshal(body, &points); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	series := make(model.Series, 0, len(points))
	for i, p := range points {
		date, err := parseDate(p.Fecha)
		if err != nil {
			return nil, fmt.Errorf("%w: point %d: %v", ErrDecode, i, err)
		}
		if p.NDVI == nil {
			continue
		}
		series = append(series, model.SeriesPoint{Date: date, Value: *p.NDVI})
	}
	series.SortByDate()
	return averageByDate(series), nil
}

// averageByDate collapses runs of equal dates in a sorted series into their
// mean.
func averageByDate(series model.Series) model.Series {
	out := series[:0]
	for i := 0; i < len(series); {
		j, sum := i, 0.0
		for ; j < len(series) && series[j].Date.Equal(series[i].Date); j++ {
			sum += series[j].Value
		}
		out = append(out, model.SeriesPoint{Date: series[i].Date, Value: sum / float64(j-i)})
		i = j
	}
	return out
}

// parseDate accepts a date or date-time and keeps only the calendar date as
// written, ignoring any clock time or offset.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("missing fecha")
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised fecha %q", s)
}
