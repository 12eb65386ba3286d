package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/snowy615/alphaBook/internal/infra"
	"github.com/snowy615/alphaBook/internal/venue"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS is handled by the HTTP middleware
		return true
	},
}

// handleBookStream upgrades the connection and streams book updates for one
// symbol. The first frame is a full snapshot plus the current reference
// price; after that every book change is pushed as it happens.
func (s *Server) handleBookStream(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	// Subscribe before the hello frame so no change between the snapshot and
	// the first push is lost.
	sub := s.hub.Subscribe(symbol)

	hello := wsHello{
		Type:   "hello",
		Symbol: symbol,
		Book:   s.registry.Snapshot(symbol, 0),
	}
	if px, ok := s.prices.RefPrice(symbol); ok {
		v := px.String()
		hello.RefPrice = &v
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(hello); err != nil {
		sub.Close()
		conn.Close()
		return
	}
	infra.GlobalMetrics.IncrementStreams()

	go s.writePump(conn, sub)
	go s.readPump(conn, sub)
}

// writePump pushes book updates to the connection until the subscription is
// closed or a write fails.
func (s *Server) writePump(conn *websocket.Conn, sub *venue.Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sub.Close()
		conn.Close()
		infra.GlobalMetrics.DecrementStreams()
	}()

	for {
		select {
		case upd, ok := <-sub.C():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Dropped by the hub or unsubscribed
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(upd); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames and tears the subscription down when the
// peer goes away.
func (s *Server) readPump(conn *websocket.Conn, sub *venue.Subscription) {
	defer func() {
		sub.Close()
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Debug("websocket read error", slog.Any("error", err))
			}
			return
		}
	}
}
