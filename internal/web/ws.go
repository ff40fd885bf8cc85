// pattern: Imperative Shell

package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const streamWriteTimeout = 10 * time.Second

// handleStream upgrades to a WebSocket and pushes the full snapshot as JSON
// on connect and after every replacement. Client messages are ignored.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	// Restrict to localhost origins to prevent cross-origin WebSocket attacks.
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"127.0.0.1:*", "localhost:*"},
	})
	if err != nil {
		s.logger.Error("websocket accept failed", "error", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()

	// CloseRead discards client frames and cancels ctx when the peer goes away.
	ctx := conn.CloseRead(context.Background())

	st := s.tracker.Store()
	ch := st.Subscribe()
	defer st.Unsubscribe(ch)

	s.logger.Debug("stream client connected", "remote", r.RemoteAddr)

	send := func() error {
		wctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
		defer cancel()
		return wsjson.Write(wctx, conn, st.Current())
	}

	if err := send(); err != nil {
		s.logger.Debug("stream write failed", "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("stream client disconnected", "remote", r.RemoteAddr)
			return
		case <-ch:
			if err := send(); err != nil {
				if !errors.Is(err, context.Canceled) {
					s.logger.Debug("stream write failed", "error", err)
				}
				return
			}
		}
	}
}
