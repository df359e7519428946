package export

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/signalsfoundry/ndvi-overlay/internal/chart"
	"github.com/signalsfoundry/ndvi-overlay/model"
)

type stubSource struct {
	frame chart.Frame
	ok    bool
	calls int
}

func (s *stubSource) Frame() (chart.Frame, bool) {
	s.calls++
	return s.frame, s.ok
}

func TestExportUnavailableBeforeFirstRender(t *testing.T) {
	cases := []struct {
		name    string
		adapter *Adapter
	}{
		{name: "nil adapter"},
		{name: "nil source", adapter: NewAdapter(nil)},
		{name: "no frame", adapter: NewAdapter(&stubSource{})},
		{name: "fresh canvas", adapter: NewAdapter(chart.NewCanvas())},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.adapter.ExportCurrentFrame(); !errors.Is(err, ErrExportUnavailable) {
				t.Fatalf("err = %v, want ErrExportUnavailable", err)
			}
		})
	}
}

func TestExportPassesThroughEveryCall(t *testing.T) {
	src := &stubSource{frame: chart.Frame{PNG: []byte{1, 2, 3}, Revision: 4}, ok: true}
	a := NewAdapter(src)

	img, err := a.ExportCurrentFrame()
	if err != nil {
		t.Fatalf("ExportCurrentFrame: %v", err)
	}
	if img.Filename != "chart.png" || img.ContentType != "image/png" || img.Revision != 4 {
		t.Fatalf("image = %+v", img)
	}

	src.frame = chart.Frame{PNG: []byte{9}, Revision: 5}
	img, err = a.ExportCurrentFrame()
	if err != nil {
		t.Fatalf("ExportCurrentFrame: %v", err)
	}
	if !bytes.Equal(img.Data, []byte{9}) || src.calls != 2 {
		t.Fatalf("adapter cached: data %v calls %d", img.Data, src.calls)
	}
}

func TestExportFromRenderedCanvas(t *testing.T) {
	canvas := chart.NewCanvas()
	series := model.Series{{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Value: 0.42}}
	if err := canvas.Render(series); err != nil {
		t.Fatalf("Render: %v", err)
	}

	img, err := NewAdapter(canvas).ExportCurrentFrame()
	if err != nil {
		t.Fatalf("ExportCurrentFrame: %v", err)
	}
	if !bytes.HasPrefix(img.Data, []byte("\x89PNG")) {
		t.Fatalf("export is not a PNG")
	}
}
