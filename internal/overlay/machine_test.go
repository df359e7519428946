package overlay

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/signalsfoundry/ndvi-overlay/internal/observability"
	"github.com/signalsfoundry/ndvi-overlay/model"
)

type fakeCapture struct {
	acquired int
	released int
}

func (f *fakeCapture) Acquire() { f.acquired++ }
func (f *fakeCapture) Release() { f.released++ }

func onePoint(v float64) model.Series {
	return model.Series{{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Value: v}}
}

func TestNewMachineStartsHiddenAtOrigin(t *testing.T) {
	m := New()
	st := m.State()
	if st.Visible || st.Dragging || st.Position != (Point{}) || len(st.Series) != 0 {
		t.Fatalf("initial state = %+v", st)
	}
	if m.Phase() != Hidden {
		t.Fatalf("phase = %v, want hidden", m.Phase())
	}
}

func TestToggleTwiceRestoresVisibility(t *testing.T) {
	m := New()
	m.DataArrived(onePoint(0.3))
	m.DragStart(Point{X: 0, Y: 0})
	m.DragMove(Point{X: 15, Y: -4})
	m.DragEnd()
	m.Toggle()
	if m.Phase() != Hidden {
		t.Fatalf("setup phase = %v", m.Phase())
	}
	before := m.State()

	m.Toggle()
	if !m.State().Visible {
		t.Fatalf("first toggle should show overlay")
	}
	m.Toggle()

	after := m.State()
	if after.Visible != before.Visible || after.Position != before.Position {
		t.Fatalf("toggle twice: before %+v after %+v", before, after)
	}
}

func TestDragAccumulatesRelativeDeltas(t *testing.T) {
	cases := []struct {
		name       string
		pre        []Point
		p0, p1, p2 Point
	}{
		{name: "from origin", p0: Point{10, 10}, p1: Point{25, 5}, p2: Point{40, 30}},
		{name: "after earlier drag", pre: []Point{{0, 0}, {-7, 12}}, p0: Point{300, 200}, p1: Point{290, 210}, p2: Point{310, 250}},
		{name: "pointer returns", p0: Point{5, 5}, p1: Point{50, 50}, p2: Point{5, 5}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := New()
			m.DataArrived(onePoint(0.5))
			if len(tc.pre) == 2 {
				m.DragStart(tc.pre[0])
				m.DragMove(tc.pre[1])
				m.DragEnd()
			}
			pre := m.State().Position

			m.DragStart(tc.p0)
			m.DragMove(tc.p1)
			m.DragMove(tc.p2)
			m.DragEnd()

			want := pre.Add(tc.p2.Sub(tc.p1)).Add(tc.p1.Sub(tc.p0))
			got := m.State().Position
			if got != want {
				t.Fatalf("position = %+v, want %+v", got, want)
			}
			if m.Phase() != Visible {
				t.Fatalf("phase after drag = %v, want visible", m.Phase())
			}
		})
	}
}

func TestDataArrivedVisibility(t *testing.T) {
	m := New()
	m.DataArrived(onePoint(0.42))
	if m.Phase() != Visible {
		t.Fatalf("phase = %v, want visible", m.Phase())
	}
	st := m.State()
	if len(st.Series) != 1 || st.Series[0].Value != 0.42 {
		t.Fatalf("series = %+v", st.Series)
	}

	m.DataArrived(model.Series{})
	if m.Phase() != Hidden {
		t.Fatalf("empty data from visible: phase = %v, want hidden", m.Phase())
	}
	if len(m.State().Series) != 0 {
		t.Fatalf("series not replaced: %+v", m.State().Series)
	}

	// Non-empty data opens the overlay from any state, including mid-drag.
	m.DataArrived(onePoint(0.1))
	m.DragStart(Point{})
	m.DataArrived(onePoint(0.42))
	if m.Phase() != Visible {
		t.Fatalf("data during drag: phase = %v, want visible", m.Phase())
	}
}

func TestDraggingImpliesVisible(t *testing.T) {
	m := New()
	m.DragStart(Point{X: 1, Y: 1})
	if m.Phase() != Hidden {
		t.Fatalf("drag from hidden entered %v", m.Phase())
	}
	m.DragMove(Point{X: 100, Y: 100})
	if m.State().Position != (Point{}) {
		t.Fatalf("move outside drag changed position: %+v", m.State().Position)
	}

	m.DataArrived(onePoint(0.2))
	m.DragStart(Point{})
	st := m.State()
	if !st.Dragging || !st.Visible {
		t.Fatalf("state = %+v, want dragging and visible", st)
	}
}

func TestToggleDuringDragCancelsAndStaysVisible(t *testing.T) {
	capture := &fakeCapture{}
	m := New(WithCapture(capture))
	m.DataArrived(onePoint(0.2))
	m.DragStart(Point{X: 10})
	m.DragMove(Point{X: 30})
	m.Toggle()

	if m.Phase() != Visible {
		t.Fatalf("phase = %v, want visible", m.Phase())
	}
	if m.State().Position != (Point{X: 20}) {
		t.Fatalf("position = %+v", m.State().Position)
	}
	if capture.released != 1 || m.Captured() {
		t.Fatalf("capture released %d times, held=%v", capture.released, m.Captured())
	}
}

func TestCaptureReleasedExactlyOnce(t *testing.T) {
	cases := []struct {
		name string
		exit func(m *Machine)
	}{
		{name: "drag end", exit: func(m *Machine) { m.DragEnd() }},
		{name: "drag cancel", exit: func(m *Machine) { m.DragCancel() }},
		{name: "toggle", exit: func(m *Machine) { m.Toggle() }},
		{name: "data arrived", exit: func(m *Machine) { m.DataArrived(model.Series{}) }},
		{name: "hide", exit: func(m *Machine) { m.Hide() }},
		{name: "close", exit: func(m *Machine) { m.Close() }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			capture := &fakeCapture{}
			m := New(WithCapture(capture))
			m.DataArrived(onePoint(0.2))
			m.DragStart(Point{})
			if capture.acquired != 1 || !m.Captured() {
				t.Fatalf("acquired = %d, held = %v", capture.acquired, m.Captured())
			}

			tc.exit(m)
			// Further exits must not release again.
			m.DragEnd()
			m.DragCancel()
			m.Close()

			if capture.released != 1 {
				t.Fatalf("released = %d, want 1", capture.released)
			}
			if m.Phase() == Dragging {
				t.Fatalf("still dragging after %s", tc.name)
			}
		})
	}
}

func TestDragCancelMatchesDragEnd(t *testing.T) {
	run := func(finish func(*Machine)) State {
		m := New()
		m.DataArrived(onePoint(0.2))
		m.DragStart(Point{X: 3, Y: 4})
		m.DragMove(Point{X: 13, Y: 2})
		finish(m)
		return m.State()
	}
	ended := run((*Machine).DragEnd)
	cancelled := run((*Machine).DragCancel)
	if ended.Position != cancelled.Position || ended.Visible != cancelled.Visible || ended.Dragging || cancelled.Dragging {
		t.Fatalf("end %+v cancel %+v", ended, cancelled)
	}
}

func TestHideDropsSeriesKeepsPosition(t *testing.T) {
	m := New()
	m.DataArrived(onePoint(0.7))
	m.DragStart(Point{})
	m.DragMove(Point{X: 8, Y: 9})
	m.DragEnd()

	m.Hide()
	st := m.State()
	if st.Visible || len(st.Series) != 0 {
		t.Fatalf("after hide: %+v", st)
	}
	if st.Position != (Point{X: 8, Y: 9}) {
		t.Fatalf("hide reset position: %+v", st.Position)
	}
}

func TestStateSnapshotDoesNotAlias(t *testing.T) {
	in := onePoint(0.5)
	m := New()
	m.DataArrived(in)
	in[0].Value = 99

	st := m.State()
	st.Series[0].Value = -1
	if got := m.State().Series[0].Value; got != 0.5 {
		t.Fatalf("stored value = %v, want 0.5", got)
	}
}

func TestObserverReceivesPhaseChanges(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := observability.NewOverlayCollector(reg)
	if err != nil {
		t.Fatalf("NewOverlayCollector: %v", err)
	}

	m := New(WithObserver(collector))
	m.DataArrived(onePoint(0.4))
	m.DragStart(Point{})
	m.DragMove(Point{X: 1})
	m.DragCancel()
	m.Toggle()
	m.Toggle()
	m.Toggle() // visible -> hidden again

	checks := []struct {
		from, to, event string
		want            float64
	}{
		{"hidden", "visible", EventDataArrived, 1},
		{"visible", "dragging", EventDragStart, 1},
		{"dragging", "visible", EventDragCancel, 1},
		{"visible", "hidden", EventToggle, 2},
		{"hidden", "visible", EventToggle, 1},
	}
	for _, c := range checks {
		got := testutil.ToFloat64(collector.OverlayTransitions.WithLabelValues(c.from, c.to, c.event))
		if got != c.want {
			t.Fatalf("%s->%s on %s = %v, want %v", c.from, c.to, c.event, got, c.want)
		}
	}
}
