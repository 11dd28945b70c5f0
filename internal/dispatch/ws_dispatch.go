// Package dispatch pushes confirmation page views to connected browsers
// over websockets.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/transfer-booking/internal/confirm"
)

const writeWait = 5 * time.Second

// WSSession is one connected browser.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) Send(v confirm.View) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}

func (s *WSSession) close(code int, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := websocket.FormatCloseMessage(code, text)
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = s.conn.Close()
}

// WSRegistry holds the sessions watching each page.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]map[*WSSession]struct{}
	logger   *slog.Logger
}

func NewWSRegistry(logger *slog.Logger) *WSRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSRegistry{sessions: make(map[string]map[*WSSession]struct{}), logger: logger}
}

func (r *WSRegistry) Add(pageID string, conn *websocket.Conn) *WSSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &WSSession{conn: conn}
	if r.sessions[pageID] == nil {
		r.sessions[pageID] = make(map[*WSSession]struct{})
	}
	r.sessions[pageID][s] = struct{}{}
	r.logger.Debug("ws session opened", "page", pageID, "sessions", len(r.sessions[pageID]))
	return s
}

func (r *WSRegistry) Remove(pageID string, s *WSSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions[pageID], s)
	left := len(r.sessions[pageID])
	if left == 0 {
		delete(r.sessions, pageID)
	}
	r.logger.Debug("ws session closed", "page", pageID, "sessions", left)
}

func (r *WSRegistry) Count(pageID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[pageID])
}

// CloseAll disconnects every session, e.g. on shutdown.
func (r *WSRegistry) CloseAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]map[*WSSession]struct{})
	r.mu.Unlock()
	if len(all) > 0 {
		r.logger.Info("closing ws sessions", "pages", len(all))
	}
	for _, set := range all {
		for s := range set {
			s.close(websocket.CloseGoingAway, "shutting down")
		}
	}
}

// Serve forwards views to conn until the view stream ends, a redirect has
// been delivered, the client goes away or ctx is done.
func (r *WSRegistry) Serve(ctx context.Context, pageID string, conn *websocket.Conn, views <-chan confirm.View) error {
	s := r.Add(pageID, conn)
	defer r.Remove(pageID, s)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.close(websocket.CloseNormalClosure, "")
			return ctx.Err()
		case v, ok := <-views:
			if !ok {
				s.close(websocket.CloseNormalClosure, "page closed")
				return nil
			}
			if err := s.Send(v); err != nil {
				r.logger.Warn("ws send failed", "page", pageID, "error", err)
				_ = conn.Close()
				return err
			}
			if v.Redirect != "" {
				s.close(websocket.CloseNormalClosure, "redirect")
				return nil
			}
		}
	}
}
