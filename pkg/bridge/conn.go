package bridge

import (
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait = 5 * time.Second

	// maxTransportFrame bounds what the websocket will buffer for one frame.
	maxTransportFrame = 64 << 10
)

// ackMessage is the only frame the server sends on its own.
type ackMessage struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connection_id"`
}

// controllerConn is one open controller connection. It lives from the
// upgrade until the first read error or close frame.
type controllerConn struct {
	srv     *Server
	ws      *websocket.Conn
	id      string
	addr    string
	limiter *rate.Limiter

	wmu sync.Mutex // serialises data frames; control frames use WriteControl
}

// handleWebSocket upgrades the request and runs the connection on the
// request's goroutine, so every controller is handled independently.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("websocket upgrade error from %s: %v", r.RemoteAddr, err)
		return
	}

	c := &controllerConn{
		srv:  s,
		ws:   ws,
		id:   s.Config.NewID(),
		addr: r.RemoteAddr,
	}
	if s.Config.FrameRate > 0 {
		burst := s.Config.FrameBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(s.Config.FrameRate), burst)
	}
	c.serve()
}

func (c *controllerConn) serve() {
	s := c.srv
	if !s.track(c) {
		c.ws.Close()
		return
	}
	s.states.UpsertDefault(c.id)
	s.metrics.connOpened()
	s.logger.Printf("[ws:%s] controller connected from %s", c.id, c.addr)

	defer func() {
		if p := recover(); p != nil {
			s.logger.Printf("[ws:%s] handler panic: %v", c.id, p)
		}
		s.states.Remove(c.id)
		s.untrack(c)
		c.ws.Close()
		s.logger.Printf("[ws:%s] controller disconnected", c.id)
	}()

	c.ws.SetReadLimit(transportLimit(s.Config.MaxFrameBytes))
	c.ws.SetPingHandler(c.handlePing)

	if err := c.sendJSON(ackMessage{Type: "connected", ConnectionID: c.id}); err != nil {
		s.logger.Printf("[ws:%s] ack failed: %v", c.id, err)
		return
	}

	for {
		c.extendDeadline()
		payload, err := c.readFrame()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Printf("[ws:%s] read error: %v", c.id, err)
			}
			return
		}
		if payload != nil {
			c.handleFrame(payload)
		}
	}
}

// transportLimit is the hard per-frame cap handed to the websocket. Frames
// between MaxFrameBytes and this cap are drained and dropped; only frames
// above it end the connection.
func transportLimit(maxFrame int64) int64 {
	if maxFrame >= maxTransportFrame {
		return maxFrame + 1
	}
	return maxTransportFrame
}

// readFrame returns the next text frame. A nil payload with a nil error means
// the frame was consumed and dropped (binary or over MaxFrameBytes).
func (c *controllerConn) readFrame() ([]byte, error) {
	s := c.srv
	mt, r, err := c.ws.NextReader()
	if err != nil {
		return nil, err
	}
	if mt != websocket.TextMessage {
		s.metrics.frame(frameBinary)
		_, err := io.Copy(io.Discard, r)
		return nil, err
	}

	limit := s.Config.MaxFrameBytes
	if limit <= 0 {
		return io.ReadAll(r)
	}
	payload, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(payload)) <= limit {
		return payload, nil
	}
	n, err := io.Copy(io.Discard, r)
	if err != nil {
		return nil, err
	}
	s.metrics.frame(frameMalformed)
	if s.Config.Verbose {
		s.logger.Printf("[ws:%s] dropping oversized frame (%d bytes, limit %d)", c.id, int64(len(payload))+n, limit)
	}
	return nil, nil
}

// handleFrame runs one text frame through decode, gate and state store and
// queues the results. Bad or ungated frames are dropped without a reply.
func (c *controllerConn) handleFrame(payload []byte) {
	s := c.srv

	req, ok := DecodeRequest(payload)
	if !ok {
		s.metrics.frame(frameMalformed)
		if s.Config.Verbose {
			s.logger.Printf("[ws:%s] discarding malformed frame: %q", c.id, payload)
		}
		return
	}

	// Stop tags skip the frame limiter as they skip the threshold, so a
	// release is never lost behind a burst of peaks.
	if c.limiter != nil && !req.IsStop() && !c.limiter.Allow() {
		s.metrics.frame(frameRateLimited)
		return
	}

	tr, ok := s.states.Apply(c.id, req, s.threshold.Get())
	if !ok {
		s.metrics.frame(frameDiscarded)
		if s.Config.Verbose {
			if req.Known() {
				s.logger.Printf("[ws:%s] %s below threshold (pressure %.1f)", c.id, req.Action, req.Pressure)
			} else {
				s.logger.Printf("[ws:%s] ignoring unknown action %q", c.id, req.Action)
			}
		}
		return
	}

	now := s.Config.Now()
	evictedSnapshot := s.simultaneous.Push(snapshot(c.id, tr.State, now))
	var evictedAction bool
	if tr.Discrete {
		evictedAction = s.actions.Push(ActionEvent{
			ConnectionID: c.id,
			Action:       tr.Action,
			Pressure:     req.Pressure,
			Timestamp:    now,
		})
	}
	s.metrics.frame(frameApplied)
	s.metrics.queued(tr, evictedSnapshot, evictedAction)
}

// handlePing answers a ping with a pong carrying the same payload.
func (c *controllerConn) handlePing(data string) error {
	c.extendDeadline()
	err := c.ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return nil
	}
	return err
}

func (c *controllerConn) sendJSON(v any) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(v)
}

func (c *controllerConn) extendDeadline() {
	if d := c.srv.Config.ReadTimeout; d > 0 {
		c.ws.SetReadDeadline(time.Now().Add(d))
	}
}
