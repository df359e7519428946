// Package overlay implements the floating chart panel as an explicit state
// machine. Visibility, drag position and the stored series change only
// through the Machine's transition methods.
//
// A Machine is not safe for concurrent use; it is owned by one session's event
// loop.
package overlay

import (
	"github.com/signalsfoundry/ndvi-overlay/model"
)

// Phase is the machine's current state.
type Phase int

const (
	Hidden Phase = iota
	Visible
	// Dragging is a sub-state of Visible.
	Dragging
)

func (p Phase) String() string {
	switch p {
	case Hidden:
		return "hidden"
	case Visible:
		return "visible"
	case Dragging:
		return "dragging"
	default:
		return "unknown"
	}
}

// Event names passed to the transition observer.
const (
	EventDataArrived = "data_arrived"
	EventToggle      = "toggle"
	EventDragStart   = "drag_start"
	EventDragEnd     = "drag_end"
	EventDragCancel  = "drag_cancel"
	EventHide        = "hide"
	EventClose       = "close"
)

// Point is a pointer location or panel offset in screen pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p + q.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Sub returns p - q.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// State is a read-only snapshot of the overlay.
type State struct {
	Visible  bool
	Dragging bool
	Position Point
	Series   model.Series
}

// Phase derives the machine phase from the snapshot flags.
func (s State) Phase() Phase {
	switch {
	case s.Dragging:
		return Dragging
	case s.Visible:
		return Visible
	default:
		return Hidden
	}
}

// Capture is the document-level pointer subscription that must be held
// exactly while the overlay is being dragged.
type Capture interface {
	Acquire()
	Release()
}

// Observer is told about every phase change. *observability.OverlayCollector
// satisfies it.
type Observer interface {
	ObserveTransition(from, to, event string)
}

// Option configures a Machine.
type Option func(*Machine)

// WithCapture installs the pointer capture collaborator.
func WithCapture(c Capture) Option {
	return func(m *Machine) { m.capture = c }
}

// WithObserver installs a transition observer.
func WithObserver(o Observer) Option {
	return func(m *Machine) { m.observer = o }
}

// Machine is the overlay state machine. The zero value is not usable; call
// New.
type Machine struct {
	phase    Phase
	position Point
	last     Point
	series   model.Series

	capture  Capture
	captured bool
	observer Observer
}

// New returns a machine in Hidden at the origin with no series.
func New(opts ...Option) *Machine {
	m := &Machine{phase: Hidden}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase { return m.phase }

// State returns a snapshot that shares nothing with the machine.
func (m *Machine) State() State {
	return State{
		Visible:  m.phase != Hidden,
		Dragging: m.phase == Dragging,
		Position: m.position,
		Series:   m.series.Clone(),
	}
}

// Captured reports whether pointer capture is currently held.
func (m *Machine) Captured() bool { return m.captured }

// DataArrived stores series and shows the overlay if it has points, hiding it
// otherwise. An active drag ends.
func (m *Machine) DataArrived(series model.Series) {
	m.series = series.Clone()
	m.endDrag()
	if len(series) > 0 {
		m.transition(Visible, EventDataArrived)
	} else {
		m.transition(Hidden, EventDataArrived)
	}
}

// Toggle flips between Hidden and Visible. During a drag it cancels the drag
// and the overlay stays Visible.
func (m *Machine) Toggle() {
	switch m.phase {
	case Hidden:
		m.transition(Visible, EventToggle)
	case Visible:
		m.transition(Hidden, EventToggle)
	case Dragging:
		m.endDrag()
		m.transition(Visible, EventToggle)
	}
}

// DragStart begins a drag at p. Ignored unless Visible.
func (m *Machine) DragStart(p Point) {
	if m.phase != Visible {
		return
	}
	m.last = p
	if m.capture != nil && !m.captured {
		m.capture.Acquire()
		m.captured = true
	}
	m.transition(Dragging, EventDragStart)
}

// DragMove moves the panel by the pointer's motion since the previous
// DragStart or DragMove. Ignored unless Dragging.
func (m *Machine) DragMove(p Point) {
	if m.phase != Dragging {
		return
	}
	m.position = m.position.Add(p.Sub(m.last))
	m.last = p
}

// DragEnd finishes a drag, keeping the position.
func (m *Machine) DragEnd() { m.finishDrag(EventDragEnd) }

// DragCancel finishes a drag when the pointer leaves the tracking surface.
// It behaves exactly like DragEnd.
func (m *Machine) DragCancel() { m.finishDrag(EventDragCancel) }

// Hide forces Hidden and drops the stored series.
func (m *Machine) Hide() {
	m.series = model.Series{}
	m.endDrag()
	m.transition(Hidden, EventHide)
}

// Close releases any capture on teardown. The overlay keeps its visibility
// but is no longer dragging.
func (m *Machine) Close() {
	if m.phase == Dragging {
		m.endDrag()
		m.transition(Visible, EventClose)
		return
	}
	m.release()
}

func (m *Machine) finishDrag(event string) {
	if m.phase != Dragging {
		return
	}
	m.endDrag()
	m.transition(Visible, event)
}

// endDrag clears drag bookkeeping and releases capture. The caller sets the
// next phase.
func (m *Machine) endDrag() {
	m.last = Point{}
	m.release()
}

func (m *Machine) release() {
	if !m.captured {
		return
	}
	m.captured = false
	if m.capture != nil {
		m.capture.Release()
	}
}

func (m *Machine) transition(to Phase, event string) {
	from := m.phase
	m.phase = to
	if from != to && m.observer != nil {
		m.observer.ObserveTransition(from.String(), to.String(), event)
	}
}
