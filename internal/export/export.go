// Package export turns the chart's current frame into a downloadable image.
package export

import (
	"errors"

	"github.com/signalsfoundry/ndvi-overlay/internal/chart"
)

// Filename is the fixed name offered for every download.
const Filename = "chart.png"

// ErrExportUnavailable is returned when no chart has been rendered yet.
var ErrExportUnavailable = errors.New("export unavailable: no chart has been rendered")

// FrameSource yields the most recently rendered chart frame.
// *chart.Canvas satisfies it.
type FrameSource interface {
	Frame() (chart.Frame, bool)
}

// Image is a downloadable chart image.
type Image struct {
	Data        []byte
	ContentType string
	Filename    string
	Revision    uint64
}

// Adapter reads straight through to its source on every call.
type Adapter struct {
	source FrameSource
}

// NewAdapter wraps source.
func NewAdapter(source FrameSource) *Adapter {
	return &Adapter{source: source}
}

// ExportCurrentFrame returns the source's current frame as a PNG image.
func (a *Adapter) ExportCurrentFrame() (Image, error) {
	if a == nil || a.source == nil {
		return Image{}, ErrExportUnavailable
	}
	frame, ok := a.source.Frame()
	if !ok || len(frame.PNG) == 0 {
		return Image{}, ErrExportUnavailable
	}
	return Image{
		Data:        frame.PNG,
		ContentType: chart.ContentType,
		Filename:    Filename,
		Revision:    frame.Revision,
	}, nil
}
