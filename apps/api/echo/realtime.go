package echoapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/quantumqp/portal/core"
	"github.com/quantumqp/portal/services/realtime"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsMaxMessage = 512
)

type realtimeApi struct {
	hub      *realtime.Hub
	logger   core.Logger
	upgrader websocket.Upgrader
}

func registerRealtimeAPI(g *echo.Group, hub *realtime.Hub, conf *core.Config, logger core.Logger) {
	frontend := strings.TrimRight(conf.FrontendBaseURL, "/")
	api := realtimeApi{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || conf.Debug || strings.TrimRight(origin, "/") == frontend
			},
		},
	}
	g.GET("/ws", api.connect)
}

// connect upgrades the request and streams hub events until either side goes away.
// Viewers never send commands; reads only serve to notice the disconnect.
func (api *realtimeApi) connect(ctx echo.Context) error {
	conn, err := api.upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		// the upgrader already wrote the error response
		api.logger.Debug(fmt.Sprintf("websocket upgrade: %v", err))
		return nil
	}

	sess := api.hub.Connect()
	done := make(chan struct{})

	go api.readPump(conn, sess, done)
	api.writePump(conn, sess, done)
	return nil
}

func (api *realtimeApi) readPump(conn *websocket.Conn, sess *realtime.Session, done chan<- struct{}) {
	defer func() {
		api.hub.Disconnect(sess)
		close(done)
	}()

	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (api *realtimeApi) writePump(conn *websocket.Conn, sess *realtime.Session, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
		api.hub.Disconnect(sess)
	}()

	for {
		select {
		case msg, ok := <-sess.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				// hub closed the session
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
