package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jogardn/order-console/internal/form"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 8192
	sendBufferSize = 64
)

const (
	MessageFormState = "form_state"
	MessageError     = "error"
)

// ActionMessage is sent by the page when a form button is pressed. Values
// carries the page's current inputs for that form.
type ActionMessage struct {
	Form   string            `json:"form"`
	Action string            `json:"action"`
	Values map[string]string `json:"values"`
}

type Message struct {
	Type      string            `json:"type"`
	SessionID string            `json:"session_id"`
	Form      string            `json:"form,omitempty"`
	Values    map[string]string `json:"values,omitempty"`
	Flash     string            `json:"flash"`
	Data      interface{}       `json:"data,omitempty"`
	Timestamp string            `json:"timestamp"`
}

func stateMessage(sessionID, formName string, m form.Model) Message {
	return Message{
		Type:      MessageFormState,
		SessionID: sessionID,
		Form:      formName,
		Values:    m.Values,
		Flash:     m.Flash,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

type Session struct {
	id     string
	conn   *websocket.Conn
	send   chan Message
	done   chan struct{}
	once   sync.Once
	hub    *Hub
	forms  map[string]*form.Controller
	logger *logrus.Logger
}

func (s *Session) close() {
	s.once.Do(func() {
		close(s.done)
	})
}

// enqueue never blocks: a state pushed after the session closed, or into
// a full buffer, is dropped.
func (s *Session) enqueue(msg Message) {
	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.send <- msg:
	case <-s.done:
	default:
		s.logger.WithField("session_id", s.id).Warn("Session send buffer full, dropping message")
	}
}

func (s *Session) sendInitialState() {
	for _, name := range []string{"order", "item"} {
		s.enqueue(stateMessage(s.id, name, s.forms[name].Model()))
	}
}

func (s *Session) sendError(err error) {
	s.enqueue(Message{
		Type:      MessageError,
		SessionID: s.id,
		Data:      err.Error(),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (s *Session) readPump() {
	defer func() {
		select {
		case s.hub.unregister <- s:
		case <-s.hub.done:
			s.close()
		}
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.WithError(err).WithField("session_id", s.id).Error("WebSocket error")
			}
			return
		}

		if err := s.handle(data); err != nil {
			s.logger.WithError(err).WithField("session_id", s.id).Warn("Rejected console message")
			s.sendError(err)
		}
	}
}

// handle reads the page's inputs into the form and plans the request
// before returning, so the next frame cannot change what this click sends.
// Only the network round trip runs on its own goroutine.
func (s *Session) handle(data []byte) error {
	var msg ActionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}

	controller, ok := s.forms[msg.Form]
	if !ok {
		return fmt.Errorf("unknown form %q", msg.Form)
	}
	action, err := form.ParseAction(msg.Action)
	if err != nil {
		return err
	}
	if !controller.Resource().Supports(action) {
		return fmt.Errorf("%w: %s on %s", form.ErrUnsupportedAction, action, msg.Form)
	}

	call, err := controller.Begin(msg.Values, action)
	if err != nil {
		return err
	}
	go call.Finish(context.Background())
	return nil
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				s.logger.WithError(err).WithField("session_id", s.id).Debug("Failed to write WebSocket message")
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
