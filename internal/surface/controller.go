// Package surface bridges drawing-tool events to the analytics client and the
// overlay state machine. Every operation is posted onto the session's event
// loop, so the controller's state is only ever touched by one goroutine.
package surface

import (
	"context"
	"errors"

	"github.com/signalsfoundry/ndvi-overlay/core"
	"github.com/signalsfoundry/ndvi-overlay/internal/analytics"
	"github.com/signalsfoundry/ndvi-overlay/internal/eventloop"
	"github.com/signalsfoundry/ndvi-overlay/internal/logging"
	"github.com/signalsfoundry/ndvi-overlay/internal/overlay"
	"github.com/signalsfoundry/ndvi-overlay/model"
)

// Submitter sends regions for analysis. *analytics.Client satisfies it; its
// dispatcher must be the same loop the controller posts to.
type Submitter interface {
	Submit(ctx context.Context, region model.Region, onResult func(analytics.Result)) analytics.Token
	Invalidate() analytics.Token
}

// Renderer turns a series into the current chart frame. *chart.Canvas
// satisfies it.
type Renderer interface {
	Render(series model.Series) error
	Revision() uint64
}

// Metrics counts rejected shapes.
type Metrics interface {
	IncInvalidGeometry()
}

// Option configures a Controller.
type Option func(*Controller)

// WithRenderer installs the chart renderer.
func WithRenderer(r Renderer) Option {
	return func(c *Controller) { c.renderer = r }
}

// WithSubscriber registers fn to receive every published View. fn runs on the
// loop and must not block.
func WithSubscriber(fn func(View)) Option {
	return func(c *Controller) { c.subscriber = fn }
}

// WithOverlayOptions forwards options to the overlay state machine.
func WithOverlayOptions(opts ...overlay.Option) Option {
	return func(c *Controller) { c.overlayOpts = append(c.overlayOpts, opts...) }
}

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Controller) { c.log = logging.OrNoop(l) }
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithContext sets the context passed to analytics submissions.
func WithContext(ctx context.Context) Option {
	return func(c *Controller) {
		if ctx != nil {
			c.ctx = ctx
		}
	}
}

// Controller owns the active region and the overlay for one session.
type Controller struct {
	loop     eventloop.Dispatcher
	client   Submitter
	machine  *overlay.Machine
	renderer Renderer

	subscriber  func(View)
	overlayOpts []overlay.Option
	log         logging.Logger
	metrics     Metrics
	ctx         context.Context

	region  model.Region
	token   analytics.Token
	pending bool
	notice  string
	last    View
}

// New builds a controller that runs its operations on loop.
func New(loop eventloop.Dispatcher, client Submitter, opts ...Option) *Controller {
	c := &Controller{
		loop:   loop,
		client: client,
		log:    logging.Noop(),
		ctx:    context.Background(),
		notice: NoticeDrawPrompt,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.machine = overlay.New(c.overlayOpts...)
	c.last = c.snapshot()
	return c
}

// ShapeCreated handles a completed drawing. raw is the ring as [lng, lat]
// pairs.
func (c *Controller) ShapeCreated(raw [][]float64) bool {
	return c.loop.Post(func() { c.shapeCreated(raw) })
}

// ShapeDeleted handles removal of the drawn shape.
func (c *Controller) ShapeDeleted() bool {
	return c.loop.Post(c.shapeDeleted)
}

// Toggle shows or hides the overlay.
func (c *Controller) Toggle() bool {
	return c.post(c.machine.Toggle)
}

// DragStart begins moving the overlay from pointer p.
func (c *Controller) DragStart(p overlay.Point) bool {
	return c.post(func() { c.machine.DragStart(p) })
}

// DragMove follows the pointer to p.
func (c *Controller) DragMove(p overlay.Point) bool {
	return c.post(func() { c.machine.DragMove(p) })
}

// DragEnd finishes a drag.
func (c *Controller) DragEnd() bool {
	return c.post(c.machine.DragEnd)
}

// DragCancel finishes a drag when the pointer leaves the surface.
func (c *Controller) DragCancel() bool {
	return c.post(c.machine.DragCancel)
}

// Close releases pointer capture. Later results still land on the loop but
// the session is expected to stop it.
func (c *Controller) Close() bool {
	return c.loop.Post(c.machine.Close)
}

// Publish re-sends the current View, e.g. to a freshly connected client.
func (c *Controller) Publish() bool {
	return c.loop.Post(c.publish)
}

// View returns the last published snapshot. Call it only from the loop.
func (c *Controller) View() View { return c.last }

// Series returns a copy of the overlay's series. Call it only from the loop.
func (c *Controller) Series() model.Series { return c.machine.State().Series }

func (c *Controller) post(fn func()) bool {
	return c.loop.Post(func() {
		fn()
		c.publish()
	})
}

func (c *Controller) shapeCreated(raw [][]float64) {
	region, err := core.Normalize(raw)
	if err != nil {
		if c.metrics != nil && errors.Is(err, core.ErrInvalidGeometry) {
			c.metrics.IncInvalidGeometry()
		}
		c.log.Info(c.ctx, "rejected drawn shape", logging.Int("vertices", len(raw)), logging.Err(err))
		c.notice = NoticeInvalidGeometry
		c.publish()
		return
	}

	c.region = region
	c.pending = true
	c.notice = ""
	c.token = c.client.Submit(c.ctx, region, c.applyResult)
	c.log.Debug(c.ctx, "submitted region",
		logging.Uint64("token", uint64(c.token)),
		logging.Int("vertices", region.Len()),
	)
	c.publish()
}

func (c *Controller) shapeDeleted() {
	c.region = model.Region{}
	c.pending = false
	c.notice = NoticeDrawPrompt
	c.token = c.client.Invalidate()
	c.machine.Hide()
	c.log.Debug(c.ctx, "shape deleted", logging.Uint64("token", uint64(c.token)))
	c.publish()
}

// applyResult runs on the loop after the client's own supersession check.
// A deleted shape never reopens the overlay even if the token still matched.
func (c *Controller) applyResult(res analytics.Result) {
	if res.Token != c.token || c.region.IsZero() {
		return
	}
	c.pending = false

	if res.Err != nil {
		c.notice = NoticeNoData
		c.machine.DataArrived(model.Series{})
		c.publish()
		return
	}

	series := res.Series
	c.notice = ""
	if series.Empty() {
		c.notice = NoticeNoData
	} else if c.renderer != nil {
		if err := c.renderer.Render(series); err != nil {
			c.log.Error(c.ctx, "chart render failed", logging.Int("points", len(series)), logging.Err(err))
			c.notice = NoticeNoData
			series = model.Series{}
		}
	}
	c.machine.DataArrived(series)
	c.publish()
}

func (c *Controller) publish() {
	c.last = c.snapshot()
	if c.subscriber != nil {
		c.subscriber(c.last)
	}
}

func (c *Controller) snapshot() View {
	st := c.machine.State()
	v := View{
		Phase:    st.Phase().String(),
		Visible:  st.Visible,
		Dragging: st.Dragging,
		Position: st.Position,
		Pending:  c.pending,
		Notice:   c.notice,
		HasData:  !st.Series.Empty(),
		Labels:   st.Series.Labels(),
		Values:   st.Series.Values(),
	}
	if c.renderer != nil {
		v.FrameRevision = c.renderer.Revision()
	}
	if !c.region.IsZero() {
		v.Region = c.region.Pairs()
		v.Shape = c.region.Feature()
		sum := core.Summarize(c.region)
		v.Centroid = &[2]float64{sum.Centroid.X(), sum.Centroid.Y()}
		v.AreaDeg2 = sum.Area
	}
	return v
}
