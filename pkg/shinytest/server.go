package shinytest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/olivroy/shiny/pkg/protocol"
)

// Timeout bounds every wait in this package.
var Timeout = 5 * time.Second

// ErrSessionClosed is returned by Next once the connection is gone.
var ErrSessionClosed = errors.New("shinytest: session closed")

// Option configures a Server.
type Option func(*Server)

// WithoutReady stops the server from answering Hello with Ready.
func WithoutReady() Option {
	return func(s *Server) { s.ready = false }
}

// WithCodec sets the codec for frames the server sends.
func WithCodec(c protocol.Codec) Option {
	return func(s *Server) { s.codec = c }
}

// Server is a fake reactive server.
type Server struct {
	// URL is the WebSocket endpoint.
	URL string

	// HTTPURL is the base URL of the underlying HTTP server.
	HTTPURL string

	httpServer *httptest.Server
	upgrader   websocket.Upgrader
	ready      bool
	codec      protocol.Codec
	accepted   chan *Session

	mu       sync.Mutex
	files    map[string]file
	sessions map[string]bool
	conns    int
	hits     map[string]int
}

type file struct {
	contentType string
	body        string
}

// NewServer starts a Server and closes it when the test ends.
func NewServer(tb testing.TB, opts ...Option) *Server {
	tb.Helper()
	s := &Server{
		ready:    true,
		codec:    protocol.JSON,
		accepted: make(chan *Session, 16),
		files:    make(map[string]file),
		sessions: make(map[string]bool),
		hits:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/websocket", s.handleWebSocket)
	r.Get("/deps/*", s.handleDep)

	s.httpServer = httptest.NewServer(r)
	s.HTTPURL = s.httpServer.URL
	s.URL = "ws" + strings.TrimPrefix(s.httpServer.URL, "http") + "/websocket"
	tb.Cleanup(s.Close)
	return s
}

// Close shuts the server down.
func (s *Server) Close() {
	s.httpServer.CloseClientConnections()
	s.httpServer.Close()
}

// Serve registers a dependency file at /deps/<path>.
func (s *Server) Serve(path, contentType, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[strings.TrimPrefix(path, "/")] = file{contentType: contentType, body: body}
}

// DepURL returns the absolute URL of a file registered with Serve.
func (s *Server) DepURL(path string) string {
	return s.HTTPURL + "/deps/" + strings.TrimPrefix(path, "/")
}

// Hits returns how many times /deps/<path> was requested.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[strings.TrimPrefix(path, "/")]
}

// Connections returns the number of WebSocket connections accepted.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}

// Accept returns the next session to complete its Hello.
func (s *Server) Accept(tb testing.TB) *Session {
	tb.Helper()
	select {
	case sess := <-s.accepted:
		return sess
	case <-time.After(Timeout):
		tb.Fatal("shinytest: no session accepted")
		return nil
	}
}

func (s *Server) handleDep(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	s.mu.Lock()
	f, ok := s.files[path]
	s.hits[path]++
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", f.contentType)
	w.Write([]byte(f.body))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conns++
	s.mu.Unlock()

	ws.SetReadDeadline(time.Now().Add(Timeout))
	_, data, err := ws.ReadMessage()
	if err != nil {
		ws.Close()
		return
	}
	ws.SetReadDeadline(time.Time{})
	msg, _, err := protocol.Decode(data)
	hello, ok := msg.(*protocol.Hello)
	if err != nil || !ok {
		ws.Close()
		return
	}

	sess := newSession(ws, s.codec, hello)
	s.mu.Lock()
	if hello.Resume && s.sessions[hello.SessionID] {
		sess.ID = hello.SessionID
	} else {
		sess.ID = uuid.NewString()
		s.sessions[sess.ID] = true
	}
	s.mu.Unlock()

	if s.ready {
		if err := sess.Send(&protocol.Ready{SessionID: sess.ID}); err != nil {
			ws.Close()
			return
		}
	}
	go sess.readLoop()
	s.accepted <- sess
}

// Session is one accepted client connection.
type Session struct {
	// ID is the session id the server assigned or resumed.
	ID string

	// Hello is the client's opening frame.
	Hello *protocol.Hello

	ws       *websocket.Conn
	codec    protocol.Codec
	writeMu  sync.Mutex
	received chan protocol.Message
	done     chan struct{}
}

func newSession(ws *websocket.Conn, codec protocol.Codec, hello *protocol.Hello) *Session {
	return &Session{
		Hello:    hello,
		ws:       ws,
		codec:    codec,
		received: make(chan protocol.Message, 256),
		done:     make(chan struct{}),
	}
}

// Send writes msg to the client.
func (s *Session) Send(msg protocol.Message) error {
	data, err := protocol.Encode(s.codec, msg)
	if err != nil {
		return err
	}
	return s.SendRaw(data)
}

// SendRaw writes data to the client as is, for malformed frame tests.
func (s *Session) SendRaw(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.ws.SetWriteDeadline(time.Now().Add(Timeout))
	return s.ws.WriteMessage(websocket.BinaryMessage, data)
}

func (s *Session) readLoop() {
	defer close(s.done)
	for {
		_, data, err := s.ws.ReadMessage()
		if err != nil {
			return
		}
		msg, _, err := protocol.Decode(data)
		if err != nil {
			continue
		}
		if ping, ok := msg.(*protocol.Ping); ok {
			s.Send(&protocol.Pong{Timestamp: ping.Timestamp})
			continue
		}
		select {
		case s.received <- msg:
		default:
		}
	}
}

// Next returns the next client message other than Ping.
func (s *Session) Next(ctx context.Context) (protocol.Message, error) {
	select {
	case msg := <-s.received:
		return msg, nil
	case <-s.done:
		select {
		case msg := <-s.received:
			return msg, nil
		default:
		}
		return nil, ErrSessionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// NextUpdate returns the next Update frame, skipping other messages.
func (s *Session) NextUpdate(tb testing.TB) *protocol.Update {
	tb.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), Timeout)
	defer cancel()
	for {
		msg, err := s.Next(ctx)
		if err != nil {
			tb.Fatalf("shinytest: waiting for Update: %v", err)
			return nil
		}
		if upd, ok := msg.(*protocol.Update); ok {
			return upd
		}
	}
}

// Drop severs the connection without a close handshake.
func (s *Session) Drop() {
	s.ws.UnderlyingConn().Close()
}

// Close ends the session with a server Close frame.
func (s *Session) Close(reason protocol.CloseReason, message string) error {
	err := s.Send(&protocol.Close{Reason: reason, Message: message})
	s.ws.Close()
	return err
}

// Done is closed when the connection ends.
func (s *Session) Done() <-chan struct{} { return s.done }
