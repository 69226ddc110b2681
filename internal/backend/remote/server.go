// Package remote accepts input over websocket connections. Each connection
// becomes one input device for as long as it stays open, so a remote
// client can act as keyboard, pointer or touchscreen.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/dshills/waystorm/internal/backend"
	"github.com/dshills/waystorm/internal/geom"
	"github.com/dshills/waystorm/internal/input"
	"github.com/dshills/waystorm/internal/input/connection"
	"github.com/dshills/waystorm/internal/input/key"
)

// DefaultPath is the HTTP path the websocket endpoint is served on.
const DefaultPath = "/input"

const shutdownTimeout = 2 * time.Second

// Server is a websocket input source.
type Server struct {
	addr     string
	path     string
	logger   logrus.FieldLogger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	listener net.Listener
	sink     connection.Sink
	sessions map[string]*session
	closing  bool
	wg       sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithPath sets the websocket endpoint path.
func WithPath(path string) Option {
	return func(s *Server) {
		s.path = path
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a server that will listen on addr.
func NewServer(addr string, opts ...Option) *Server {
	l := logrus.New()
	l.SetOutput(io.Discard)
	s := &Server{
		addr:   addr,
		path:   DefaultPath,
		logger: l,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns "remote".
func (s *Server) Name() string { return "remote" }

// Open starts listening so address errors surface before Run.
func (s *Server) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("%w: %v", connection.ErrNoDeviceContext, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the listening address, or "" before Open.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Sessions returns the number of connected clients.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Run serves websocket clients until ctx is done. Open sessions are
// closed and their devices removed before Run returns.
func (s *Server) Run(ctx context.Context, sink connection.Sink) error {
	s.mu.Lock()
	ln := s.listener
	s.sink = sink
	s.closing = false
	s.mu.Unlock()
	if ln == nil {
		return ErrNotOpen
	}

	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handle)
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.closing = true
		s.mu.Unlock()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		s.closeSessions()
	}()

	s.logger.WithField("addr", ln.Addr().String()).Info("remote input listening")
	err := srv.Serve(ln)
	s.wg.Wait()

	s.mu.Lock()
	s.listener = nil
	s.mu.Unlock()
	if errors.Is(err, http.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// SetGrab is a no-op.
func (s *Server) SetGrab(bool) error { return nil }

// Close stops listening.
func (s *Server) Close() error {
	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	s.closing = true
	s.mu.Unlock()
	s.closeSessions()
	if ln == nil {
		return nil
	}
	if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (s *Server) closeSessions() {
	s.mu.Lock()
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()
	for _, sess := range sessions {
		_ = sess.conn.Close()
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	id := uuid.NewString()
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	sess := newSession(id, conn, backend.NewEmitter(s.sink, "remote-"+id[:8]))
	s.sessions[id] = sess
	s.wg.Add(1)
	s.mu.Unlock()

	log := s.logger.WithFields(logrus.Fields{
		"session": id,
		"remote":  r.RemoteAddr,
	})
	log.Info("remote input client connected")

	defer func() {
		sess.release()
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		_ = conn.Close()
		log.Info("remote input client disconnected")
		s.wg.Done()
	}()

	caps := parseCaps(r.URL.Query().Get("caps"))
	sess.emit.Added(caps...)
	if err := sess.write(reply(ReplyWelcome, "session", id, "device", sess.emit.Device())); err != nil {
		return
	}

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Debug("remote input read failed")
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		if err := sess.dispatch(data); err != nil {
			log.WithError(err).Debug("rejected remote input message")
			if werr := sess.write(reply(ReplyError, "message", err.Error())); werr != nil {
				return
			}
		}
	}
}

// parseCaps reads a comma separated capability list. An empty or
// unusable list means every capability.
func parseCaps(raw string) []input.Capability {
	var caps []input.Capability
	for _, name := range strings.Split(raw, ",") {
		for _, c := range input.Capabilities {
			if strings.EqualFold(strings.TrimSpace(name), c.String()) {
				caps = append(caps, c)
			}
		}
	}
	if len(caps) == 0 {
		return append([]input.Capability(nil), input.Capabilities...)
	}
	return caps
}

type session struct {
	id   string
	conn *websocket.Conn
	emit *backend.Emitter

	writeMu sync.Mutex

	// Held state is released when the client goes away.
	keys     map[key.Code]bool
	buttons  map[uint32]bool
	contacts map[int32]bool
}

func newSession(id string, conn *websocket.Conn, emit *backend.Emitter) *session {
	return &session{
		id:       id,
		conn:     conn,
		emit:     emit,
		keys:     make(map[key.Code]bool),
		buttons:  make(map[uint32]bool),
		contacts: make(map[int32]bool),
	}
}

func (s *session) write(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *session) dispatch(data []byte) error {
	if !gjson.ValidBytes(data) {
		return ErrMalformed
	}
	msg := gjson.ParseBytes(data)
	if !msg.IsObject() {
		return ErrMalformed
	}

	typ := msg.Get("type").String()
	if err := s.apply(typ, msg); err != nil {
		return err
	}

	switch {
	case typ == MsgPing:
		return s.write(reply(ReplyPong))
	case msg.Get("seq").Exists():
		return s.write(reply(ReplyAck, "seq", msg.Get("seq").Int()))
	}
	return nil
}

func (s *session) apply(typ string, msg gjson.Result) error {
	switch typ {
	case MsgKey:
		code, state, err := parseKey(msg)
		if err != nil {
			return err
		}
		s.keys[code] = state != input.KeyReleased
		s.emit.Key(code, state)
	case MsgButton:
		button, state, err := parseButton(msg)
		if err != nil {
			return err
		}
		s.buttons[button] = state == input.ButtonPressed
		s.emit.Button(button, state)
	case MsgMotion:
		dx, err := numberField(msg, "dx")
		if err != nil {
			return err
		}
		dy, err := numberField(msg, "dy")
		if err != nil {
			return err
		}
		s.emit.Motion(geom.Pt(dx, dy))
	case MsgMotionAbsolute:
		pos, output, err := parsePosition(msg)
		if err != nil {
			return err
		}
		s.emit.MotionAbsolute(pos, output)
	case MsgAxis:
		axis, delta, err := parseAxis(msg)
		if err != nil {
			return err
		}
		s.emit.Axis(axis, delta)
	case MsgTouchDown, MsgTouchMotion:
		id, err := parseTouchID(msg)
		if err != nil {
			return err
		}
		pos, output, err := parsePosition(msg)
		if err != nil {
			return err
		}
		if typ == MsgTouchDown {
			s.contacts[id] = true
			s.emit.TouchDown(id, pos, output)
		} else {
			s.emit.TouchMotion(id, pos, output)
		}
	case MsgTouchUp:
		id, err := parseTouchID(msg)
		if err != nil {
			return err
		}
		delete(s.contacts, id)
		s.emit.TouchUp(id)
	case MsgTouchFrame:
		s.emit.TouchFrame()
	case MsgTouchCancel:
		clear(s.contacts)
		s.emit.TouchCancel()
	case MsgPing:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMessage, typ)
	}
	return nil
}

// release lifts everything the client left held and removes the device.
func (s *session) release() {
	if len(s.contacts) > 0 {
		s.emit.TouchCancel()
	}
	for code, down := range s.keys {
		if down {
			s.emit.Key(code, input.KeyReleased)
		}
	}
	for button, down := range s.buttons {
		if down {
			s.emit.Button(button, input.ButtonReleased)
		}
	}
	s.emit.Removed()
}
