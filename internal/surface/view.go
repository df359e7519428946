package surface

import (
	"github.com/paulmach/orb/geojson"

	"github.com/signalsfoundry/ndvi-overlay/internal/overlay"
)

// User-facing notices.
const (
	NoticeInvalidGeometry = "Dibuje un polígono con al menos tres vértices."
	NoticeNoData          = "No hay datos NDVI para la región seleccionada."
	NoticeDrawPrompt      = "Por favor, dibuje un polígono para generar la gráfica."
)

// View is the immutable snapshot published after every transition. It is
// what the browser renders.
type View struct {
	Phase    string        `json:"phase"`
	Visible  bool          `json:"visible"`
	Dragging bool          `json:"dragging"`
	Position overlay.Point `json:"position"`

	Pending bool   `json:"pending"`
	Notice  string `json:"notice,omitempty"`
	// HasData gates the toggle button.
	HasData bool `json:"hasData"`

	Region [][2]float64 `json:"region,omitempty"`
	// Shape echoes the active region for the map to draw.
	Shape    *geojson.Feature `json:"shape,omitempty"`
	Centroid *[2]float64      `json:"centroid,omitempty"`
	AreaDeg2 float64          `json:"areaDeg2,omitempty"`

	FrameRevision uint64    `json:"frameRevision"`
	Labels        []string  `json:"labels"`
	Values        []float64 `json:"values"`
}
