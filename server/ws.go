package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"trenchsocial/runtime"
	"trenchsocial/sink"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients connect cross-origin, matching the open CORS policy of
	// the REST surface.
	CheckOrigin: func(*http.Request) bool { return true },
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	connectionSink := sink.NewConnectionSink(s.log, s.connectionBufferSize)
	connection := runtime.NewConnection(connectionSink)
	if err := s.hub.Join(connection); err != nil {
		s.log.Warn("Join refused", "error", err)
		_ = ws.Close()
		return
	}

	client := &wsClient{
		log:        s.log.With("connection_id", connection.ID),
		ws:         ws,
		hub:        s.hub,
		connection: connection,
		sink:       connectionSink,
		closed:     make(chan struct{}),
	}
	go client.writePump()
	go client.readPump()
}

// wsClient pumps frames between one WebSocket and the hub. readPump owns the
// connection teardown; writePump exits when closed is closed.
type wsClient struct {
	log        *slog.Logger
	ws         *websocket.Conn
	hub        *runtime.BroadcastHub
	connection *runtime.Connection
	sink       *sink.ConnectionSink
	closed     chan struct{}
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.Leave(c.connection)
		close(c.closed)
		_ = c.ws.Close()
	}()

	c.ws.SetReadLimit(maxInboundBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame inboundFrame
		if err := c.ws.ReadJSON(&frame); err != nil {
			if isUnexpectedClose(err) {
				c.log.Warn("WebSocket read failed", "error", err)
			}
			return
		}
		if frame.Type != "publish" {
			c.log.Debug("Ignoring unknown frame", "type", frame.Type)
			continue
		}
		c.hub.Publish(c.connection, frame.Author, frame.Body)
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case e := <-c.sink.Events:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			frame := toFrame(e)
			if frame == nil {
				continue
			}
			if err := c.ws.WriteJSON(frame); err != nil {
				c.log.Debug("WebSocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// isUnexpectedClose filters out the close codes a well-behaved browser sends
// when the tab goes away.
func isUnexpectedClose(err error) bool {
	return websocket.IsUnexpectedCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}
