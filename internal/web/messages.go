package web

import (
	"encoding/json"
	"fmt"

	"github.com/signalsfoundry/ndvi-overlay/internal/overlay"
	"github.com/signalsfoundry/ndvi-overlay/internal/surface"
)

// Inbound message types sent by the map page.
const (
	msgShapeCreated  = "shape.created"
	msgShapeDeleted  = "shape.deleted"
	msgOverlayToggle = "overlay.toggle"
	msgDragStart     = "drag.start"
	msgDragMove      = "drag.move"
	msgDragEnd       = "drag.end"
	msgDragCancel    = "drag.cancel"
)

// Outbound message types.
const (
	msgSession = "session"
	msgView    = "view"
	msgCapture = "capture"
)

type inbound struct {
	Type     string      `json:"type"`
	Vertices [][]float64 `json:"vertices,omitempty"`
	X        float64     `json:"x"`
	Y        float64     `json:"y"`
}

func (m inbound) point() overlay.Point { return overlay.Point{X: m.X, Y: m.Y} }

type sessionMsg struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type viewMsg struct {
	Type string       `json:"type"`
	View surface.View `json:"view"`
}

type captureMsg struct {
	Type   string `json:"type"`
	Active bool   `json:"active"`
}

// dispatch routes one inbound message to the controller.
func dispatch(ctrl *surface.Controller, raw []byte) error {
	var msg inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	switch msg.Type {
	case msgShapeCreated:
		ctrl.ShapeCreated(msg.Vertices)
	case msgShapeDeleted:
		ctrl.ShapeDeleted()
	case msgOverlayToggle:
		ctrl.Toggle()
	case msgDragStart:
		ctrl.DragStart(msg.point())
	case msgDragMove:
		ctrl.DragMove(msg.point())
	case msgDragEnd:
		ctrl.DragEnd()
	case msgDragCancel:
		ctrl.DragCancel()
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
	return nil
}
