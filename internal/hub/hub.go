// Package hub serves a tracking.Store to remote clients over websockets and
// plain HTTP.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"

	"github.com/iburimskiy/sayyes/internal/protocol"
	"github.com/iburimskiy/sayyes/internal/tracking"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendQueueSize  = 64
)

type Config struct {
	Logger *slog.Logger
}

type Handler struct {
	store    tracking.Store
	log      *slog.Logger
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

func NewHandler(store tracking.Store, cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		store: store,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		mux: http.NewServeMux(),
	}
	h.mux.HandleFunc("GET /ws", h.serveWS)
	h.mux.HandleFunc("GET /records/{id}", h.serveRecord)
	h.mux.HandleFunc("GET /schema", h.serveSchema)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Schema describes the record served by /records/{id}.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{}
	schema := reflector.Reflect(new(tracking.Record))
	schema.Title = "Prank record"
	schema.Description = "Remote audit trail of one shared link"
	return schema
}

func (h *Handler) serveSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Schema())
}

func (h *Handler) serveRecord(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.log.Warn("get record failed", "sid", id, "err", err)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	if rec == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		h:      h,
		conn:   conn,
		log:    h.log.With("remote", r.RemoteAddr),
		send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
		subs:   make(map[string]func()),
		ctx:    ctx,
		cancel: cancel,
	}
	go s.writePump()
	s.readPump()
}

// session is one websocket connection. Only writePump writes to conn.
type session struct {
	h    *Handler
	conn *websocket.Conn
	log  *slog.Logger

	send chan []byte
	done chan struct{}
	once sync.Once

	mu   sync.Mutex
	subs map[string]func()

	ctx    context.Context
	cancel context.CancelFunc
}

func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
		s.cancel()
		s.mu.Lock()
		subs := s.subs
		s.subs = map[string]func(){}
		s.mu.Unlock()
		for _, unsub := range subs {
			unsub()
		}
		s.conn.Close()
	})
}

func (s *session) readPump() {
	defer s.close()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Info("connection dropped", "err", err)
			}
			return
		}
		env, err := protocol.DecodeEnvelope(data)
		if err != nil {
			s.log.Debug("discarding malformed message", "err", err)
			continue
		}
		s.handle(env)
	}
}

func (s *session) handle(env protocol.Envelope) {
	switch env.T {
	case protocol.TypeApply:
		p, err := protocol.DecodePayload[protocol.Apply](env)
		if err != nil {
			s.reply(protocol.TypeErr, env.Seq, protocol.Err{Code: protocol.CodeInvalid, Message: err.Error()})
			return
		}
		rec, err := s.h.store.Apply(s.ctx, p.ID, p.M)
		if err != nil {
			s.log.Debug("apply rejected", "sid", p.ID, "op", p.M.Op, "err", err)
			s.reply(protocol.TypeErr, env.Seq, protocol.ErrFrom(err))
			return
		}
		s.reply(protocol.TypeAck, env.Seq, protocol.Ack{Record: rec})

	case protocol.TypeSub:
		p, err := protocol.DecodePayload[protocol.Sub](env)
		if err != nil {
			s.reply(protocol.TypeErr, env.Seq, protocol.Err{Code: protocol.CodeInvalid, Message: err.Error()})
			return
		}
		if err := s.subscribe(p.ID); err != nil {
			s.reply(protocol.TypeErr, env.Seq, protocol.ErrFrom(err))
			return
		}
		s.reply(protocol.TypeAck, env.Seq, nil)

	case protocol.TypeUnsub:
		p, err := protocol.DecodePayload[protocol.Sub](env)
		if err == nil {
			s.unsubscribe(p.ID)
		}
		s.reply(protocol.TypeAck, env.Seq, nil)

	default:
		s.reply(protocol.TypeErr, env.Seq, protocol.Err{Code: protocol.CodeInvalid, Message: "unknown message type " + string(env.T)})
	}
}

func (s *session) subscribe(id string) error {
	s.mu.Lock()
	_, dup := s.subs[id]
	s.mu.Unlock()
	if dup {
		return nil
	}

	unsub, err := s.h.store.Subscribe(s.ctx, id, func(rec *tracking.Record) {
		data, err := protocol.Encode(protocol.TypeSnap, 0, protocol.Snap{ID: id, Record: rec})
		if err != nil {
			s.log.Warn("encode snapshot failed", "sid", id, "err", err)
			return
		}
		s.push(data)
	})
	if err != nil {
		return errors.Wrapf(err, "subscribe %s", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		unsub()
		return tracking.ErrClosed
	default:
	}
	s.subs[id] = unsub
	return nil
}

func (s *session) unsubscribe(id string) {
	s.mu.Lock()
	unsub := s.subs[id]
	delete(s.subs, id)
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (s *session) reply(t protocol.Type, seq uint64, payload any) {
	data, err := protocol.Encode(t, seq, payload)
	if err != nil {
		s.log.Warn("encode reply failed", "type", t, "err", err)
		return
	}
	s.push(data)
}

// push queues data for the writer. A client that cannot keep up is dropped
// rather than served stale snapshots.
func (s *session) push(data []byte) {
	select {
	case s.send <- data:
	case <-s.done:
	default:
		s.log.Warn("send queue full, closing connection")
		go s.close()
	}
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case data := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}
