// Package booth runs live capture sessions over WebSocket.
//
// The browser owns the physical camera: it streams preview frames up the
// socket and reports acquisition failures with their classification. The
// server side adapts that stream into the capture.Camera interface and runs
// the session state machine, pushing a state snapshot down the socket after
// every transition. One socket = one session = one camera stream.
package booth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"framebooth/capture"
	"framebooth/core"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1 << 20,
	WriteBufferSize: 1 << 20,
	// The booth page may be served from a different origin than the API.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type (
	// inbound is the client -> server message envelope.
	inbound struct {
		Type      string `json:"type"`
		Data      string `json:"data,omitempty"`
		Kind      string `json:"kind,omitempty"`
		SlotID    string `json:"slotId,omitempty"`
		ShotIndex int    `json:"shotIndex,omitempty"`
	}

	// outbound is the server -> client message envelope.
	outbound struct {
		Type     string            `json:"type"`
		State    *capture.Snapshot `json:"state,omitempty"`
		Message  string            `json:"message,omitempty"`
		Filename string            `json:"filename,omitempty"`
	}
)

// Manager tracks the active booth sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*session
	cfg      capture.Config
}

// NewManager creates a session manager with the given capture pacing.
func NewManager(cfg capture.Config) *Manager {
	return &Manager{
		sessions: make(map[string]*session),
		cfg:      cfg,
	}
}

type session struct {
	id      string
	slug    string
	conn    *websocket.Conn
	send    chan []byte
	machine *capture.Machine
	feed    *frameFeed

	closeOnce sync.Once
	done      chan struct{}
}

// HandleWS upgrades the connection and runs a capture session for the slug's
// template. Unknown slugs are a plain 404 before any upgrade happens.
func (m *Manager) HandleWS(store core.TemplateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")
		tpl, err := store.Get(r.Context(), slug)
		if err != nil {
			if errors.Is(err, core.ErrTemplateNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, map[string]string{"error": "Template not found"})
				return
			}
			logrus.WithFields(logrus.Fields{"error": err, "slug": slug}).Error("Failed to get template")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to get template"})
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logrus.WithError(err).Warn("WebSocket upgrade failed")
			return
		}

		feed := newFrameFeed()
		s := &session{
			id:      uuid.NewString(),
			slug:    slug,
			conn:    conn,
			send:    make(chan []byte, 64),
			machine: capture.New(tpl, feed, m.cfg),
			feed:    feed,
			done:    make(chan struct{}),
		}
		s.machine.OnChange(func(snap capture.Snapshot) {
			s.pushState(snap)
		})

		m.mu.Lock()
		m.sessions[s.id] = s
		m.mu.Unlock()
		logrus.WithFields(logrus.Fields{"session_id": s.id, "slug": slug}).Info("Booth session opened")

		go s.writePump()
		go s.readPump(func() {
			m.mu.Lock()
			delete(m.sessions, s.id)
			m.mu.Unlock()
		})

		// Initial state so the client can render before any command.
		s.pushState(s.machine.Snapshot())
	}
}

// SessionCount reports the number of open booth sessions.
func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (s *session) readPump(onClose func()) {
	defer func() {
		onClose()
		s.close()
		// A dropped socket must not keep the camera or a running sequence
		// alive.
		s.machine.Reset()
		logrus.WithFields(logrus.Fields{"session_id": s.id, "slug": s.slug}).Info("Booth session closed")
	}()

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg inbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.pushError("Malformed message")
			continue
		}
		s.handle(msg)
	}
}

func (s *session) handle(msg inbound) {
	switch msg.Type {
	case "frame":
		if err := s.feed.push(msg.Data); err != nil {
			logrus.WithError(err).WithField("session_id", s.id).Debug("Dropped undecodable frame")
		}
	case "camera-error":
		s.feed.fail(capture.CameraErrorKind(msg.Kind))
	case "acquire":
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := s.machine.AcquireCamera(ctx); err != nil {
				logrus.WithError(err).WithField("session_id", s.id).Warn("Camera acquisition failed")
			}
		}()
	case "start":
		go func() {
			if err := s.machine.Start(context.Background()); err != nil {
				logrus.WithError(err).WithField("session_id", s.id).Warn("Capture sequence ended with error")
			}
		}()
	case "assign":
		if err := s.machine.Assign(msg.SlotID, msg.ShotIndex); err != nil {
			s.pushError(err.Error())
		}
	case "clear":
		if err := s.machine.ClearSlot(msg.SlotID); err != nil {
			s.pushError(err.Error())
		}
	case "confirm":
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.machine.Confirm(ctx); err != nil {
				s.pushError(err.Error())
				return
			}
			s.pushMessage(outbound{Type: "final", Filename: s.machine.DownloadFilename()})
		}()
	case "reset":
		s.machine.Reset()
	default:
		s.pushError("Unknown message type")
	}
}

func (s *session) writePump() {
	for {
		select {
		case msg, ok := <-s.send:
			if !ok {
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.close()
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *session) pushState(snap capture.Snapshot) {
	s.pushMessage(outbound{Type: "state", State: &snap})
}

func (s *session) pushError(message string) {
	s.pushMessage(outbound{Type: "error", Message: message})
}

func (s *session) pushMessage(msg outbound) {
	raw, err := json.Marshal(msg)
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal outbound message")
		return
	}
	select {
	case s.send <- raw:
	case <-s.done:
	default:
		// Slow consumer; drop rather than block the state machine.
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}
