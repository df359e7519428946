// Package chart renders NDVI series. The Canvas keeps the most recently
// rendered raster frame, which the overlay displays and the export endpoint
// downloads.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/signalsfoundry/ndvi-overlay/model"
)

const (
	// Width and Height are the raster frame size in pixels.
	Width  = 640
	Height = 400

	// SeriesName labels the plotted line.
	SeriesName = "NDVI"

	// ContentType is the MIME type of every frame.
	ContentType = "image/png"
)

// ErrEmptySeries is returned when asked to render a series with no points.
var ErrEmptySeries = errors.New("chart: empty series")

// Frame is one rendered chart image.
type Frame struct {
	PNG      []byte
	Revision uint64
	Points   int
}

// Canvas renders series into PNG frames and holds the current one. It is
// safe for concurrent use: the session loop renders while HTTP handlers read.
type Canvas struct {
	mu       sync.RWMutex
	current  Frame
	rendered bool
	revision uint64
}

// NewCanvas returns a canvas with no frame.
func NewCanvas() *Canvas { return &Canvas{} }

// Render draws series and, on success, makes it the current frame. A failed
// render drops the previous frame so it is never shown in place of series.
func (c *Canvas) Render(series model.Series) error {
	var png []byte
	err := ErrEmptySeries
	if !series.Empty() {
		png, err = renderPNG(series)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		if c.rendered {
			c.revision++
			c.current = Frame{}
			c.rendered = false
		}
		if errors.Is(err, ErrEmptySeries) {
			return err
		}
		return fmt.Errorf("render chart: %w", err)
	}
	c.revision++
	c.current = Frame{PNG: png, Revision: c.revision, Points: len(series)}
	c.rendered = true
	return nil
}

// Frame returns the current frame and whether one has ever been rendered.
// The returned bytes are a copy.
func (c *Canvas) Frame() (Frame, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.rendered {
		return Frame{}, false
	}
	f := c.current
	f.PNG = append([]byte(nil), c.current.PNG...)
	return f, true
}

// Revision returns the current frame revision, zero before the first render.
func (c *Canvas) Revision() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.revision
}

func renderPNG(series model.Series) ([]byte, error) {
	xs := series.Dates()
	ys := series.Values()
	// go-chart needs two distinct X values to build a range.
	first, last := xs[0], xs[0]
	for _, x := range xs[1:] {
		if x.Before(first) {
			first = x
		}
		if x.After(last) {
			last = x
		}
	}
	if first.Equal(last) {
		xs = append(xs, last.Add(24*time.Hour))
		ys = append(ys, ys[len(ys)-1])
	}

	lo, hi := ys[0], ys[0]
	for _, v := range ys[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	pad := (hi - lo) * 0.1
	if pad == 0 {
		pad = 0.05
	}

	line := drawing.ColorFromHex("2e7d32")
	graph := gochart.Chart{
		Width:      Width,
		Height:     Height,
		Background: gochart.Style{Padding: gochart.Box{Top: 20, Left: 16, Right: 16, Bottom: 20}},
		XAxis: gochart.XAxis{
			ValueFormatter: gochart.TimeValueFormatterWithFormat(model.DateLayout),
		},
		YAxis: gochart.YAxis{
			Name:  SeriesName,
			Range: &gochart.ContinuousRange{Min: lo - pad, Max: hi + pad},
		},
		Series: []gochart.Series{
			gochart.TimeSeries{
				Name:    SeriesName,
				XValues: xs,
				YValues: ys,
				Style: gochart.Style{
					StrokeColor: line,
					StrokeWidth: 2,
					DotColor:    line,
					DotWidth:    3,
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(gochart.PNG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
