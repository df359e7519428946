package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/signalsfoundry/ndvi-overlay/internal/chart"
	"github.com/signalsfoundry/ndvi-overlay/internal/eventloop"
	"github.com/signalsfoundry/ndvi-overlay/internal/export"
	"github.com/signalsfoundry/ndvi-overlay/internal/logging"
	"github.com/signalsfoundry/ndvi-overlay/internal/surface"
	"github.com/signalsfoundry/ndvi-overlay/model"
)

const (
	// Time allowed to write a message to the client.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the client.
	pongWait = 60 * time.Second

	// Send pings to client with this period. Must be less than pongWait.
	pingPeriod = 15 * time.Second

	// Maximum message size allowed from client; large enough for a detailed
	// hand-drawn polygon.
	maxMessageSize = 256 << 10

	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     sameOrigin,
}

// sameOrigin admits the map page served by this host. Clients that send no
// Origin header are not browsers and are let through.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// Session is one connected map page: its own event loop, controller, chart
// canvas and export adapter.
type Session struct {
	ID string

	conn   *websocket.Conn
	loop   *eventloop.Loop
	ctrl   *surface.Controller
	canvas *chart.Canvas
	export *export.Adapter
	log    logging.Logger

	send     chan []byte
	once     sync.Once
	gone     chan struct{}
	stopLoop context.CancelFunc
}

func newSession(id string, conn *websocket.Conn, log logging.Logger) *Session {
	canvas := chart.NewCanvas()
	return &Session{
		ID:     id,
		conn:   conn,
		loop:   eventloop.New(),
		canvas: canvas,
		export: export.NewAdapter(canvas),
		log:    logging.OrNoop(log),
		send:   make(chan []byte, sendBuffer),
		gone:   make(chan struct{}),
	}
}

// Acquire tells the page to attach document-level pointer listeners.
func (s *Session) Acquire() { s.enqueue(captureMsg{Type: msgCapture, Active: true}) }

// Release tells the page to detach them.
func (s *Session) Release() { s.enqueue(captureMsg{Type: msgCapture, Active: false}) }

func (s *Session) publishView(v surface.View) {
	s.enqueue(viewMsg{Type: msgView, View: v})
}

// enqueue never blocks; it runs on the event loop.
func (s *Session) enqueue(msg any) {
	b, err := json.Marshal(msg)
	if err != nil {
		s.log.Error(context.Background(), "encode outbound message", logging.Err(err))
		return
	}
	select {
	case <-s.gone:
	case s.send <- b:
	default:
		s.log.Warn(context.Background(), "session send buffer full; dropping message", logging.Int("bytes", len(b)))
	}
}

// Series returns the overlay's current series, read on the session loop.
func (s *Session) Series(ctx context.Context) (model.Series, error) {
	var series model.Series
	err := s.loop.Call(ctx, func() { series = s.ctrl.Series() })
	return series, err
}

// run pumps the websocket until either side stops, then tears the session
// down.
func (s *Session) run(ctx context.Context) {
	stopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The loop outlives the pumps so teardown can still post to it.
	loopCtx, stopLoop := context.WithCancel(context.WithoutCancel(ctx))
	s.stopLoop = stopLoop
	go s.loop.Run(loopCtx)

	s.enqueue(sessionMsg{Type: msgSession, ID: s.ID})
	s.ctrl.Publish()

	var wg sync.WaitGroup
	wg.Add(2)
	go s.writeLoop(stopCtx, cancel, &wg)
	go s.readLoop(stopCtx, cancel, &wg)
	wg.Wait()

	s.teardown()
}

func (s *Session) teardown() {
	s.once.Do(func() {
		s.ctrl.Close()
		// FIFO: once this barrier runs, Close has run too.
		closeCtx, cancel := context.WithTimeout(context.Background(), writeWait)
		_ = s.loop.Call(closeCtx, func() {})
		cancel()
		s.stopLoop()
		s.loop.Close()
		close(s.gone)
		_ = s.conn.Close()
	})
}

func (s *Session) readLoop(stopCtx context.Context, cancel context.CancelFunc, wg *sync.WaitGroup) {
	defer func() {
		cancel()
		wg.Done()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if stopCtx.Err() != nil {
			return
		}
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn(stopCtx, "websocket closed unexpectedly", logging.Err(err))
			}
			return
		}
		if err := dispatch(s.ctrl, raw); err != nil {
			s.log.Warn(stopCtx, "ignoring client message", logging.Err(err))
		}
	}
}

func (s *Session) writeLoop(stopCtx context.Context, cancel context.CancelFunc, wg *sync.WaitGroup) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		// Unblocks the reader.
		_ = s.conn.Close()
		cancel()
		wg.Done()
	}()

	for {
		select {
		case <-stopCtx.Done():
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case b := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		}
	}
}
