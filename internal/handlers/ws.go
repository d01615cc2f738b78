// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/rps-arena/server/internal/lobby"
	"github.com/rps-arena/server/internal/middleware"
	"github.com/rps-arena/server/internal/protocol"
)

// WSHandler upgrades the connection and runs the read/write pumps against
// the lobby actor. The socket carries the whole realtime protocol; there is
// one endpoint for lobby and room traffic alike.
func WSHandler(logger *logrus.Logger, lob *lobby.Lobby) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		client := lobby.NewClient(r.RemoteAddr)
		lob.Connect(client)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		go writePump(ctx, c, client, logger)
		readPump(ctx, c, lob, client, logger)

		lob.Disconnect(client)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, nil)
	}
}

// readPump decodes inbound frames and hands them to the lobby actor. It
// blocks until the connection drops.
func readPump(ctx context.Context, c *websocket.Conn, lob *lobby.Lobby, client *lobby.Client, logger *logrus.Logger) {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				logger.Infof("websocket closed normally for %s", client.RemoteAddr)
			} else if strings.Contains(err.Error(), "context canceled") {
				// Shutdown path, nothing to report.
			} else {
				logger.Warnf("websocket read error for %s: %v (CloseStatus: %d)", client.RemoteAddr, err, closeStatus)
			}
			return
		}
		if typ != websocket.MessageText {
			logger.Warnf("ignoring non-text message type %d from %s", typ, client.RemoteAddr)
			continue
		}

		var msg protocol.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warnf("invalid json from %s: %v", client.RemoteAddr, err)
			sendDirect(client, protocol.Err("Invalid JSON format"))
			continue
		}
		if msg.Type == "" {
			sendDirect(client, protocol.Err("Missing message type"))
			continue
		}
		lob.Handle(client, msg)
	}
}

// writePump drains the client's outbound channel onto the socket and keeps
// the connection alive with periodic pings.
func writePump(ctx context.Context, c *websocket.Conn, client *lobby.Client, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-client.Out:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				logger.Warnf("failed to marshal outgoing msg for %s: %v", client.RemoteAddr, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("failed to write to websocket for %s: %v", client.RemoteAddr, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("failed to ping %s: %v, assuming disconnect", client.RemoteAddr, err)
				return
			}
		}
	}
}

// sendDirect bypasses the lobby for connection-level errors.
func sendDirect(client *lobby.Client, msg any) {
	select {
	case client.Out <- msg:
	default:
	}
}
