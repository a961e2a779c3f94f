// Package api wires the HTTP surface: a health check and the websocket
// upgrade route that hands each connection off to a conn.Handler.
package api

import (
	"net/http"

	"parley/conn"
	"parley/delegation"
	"parley/domain"
	"parley/pipeline"
	"parley/room"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Deps bundles the already-constructed domain components a connection
// handler needs.
type Deps struct {
	Journals domain.JournalStorage
	Blocks   domain.BlockStorage
	Rooms    *room.Manager
	Engine   *delegation.Engine
	Pipeline *pipeline.Pipeline
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewRouter builds the gin engine serving the health check and the
// websocket route.
func NewRouter(deps Deps) *gin.Engine {
	r := gin.Default()
	r.ForwardedByClientIP = true
	r.SetTrustedProxies(nil)
	r.Use(otelgin.Middleware("parley"))

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	r.GET("/ws", func(c *gin.Context) {
		wsConn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Debug().Err(err).Msg("websocket upgrade failed")
			return
		}
		defer wsConn.Close()

		h := conn.New(wsConn, deps.Journals, deps.Blocks, deps.Rooms, deps.Engine, deps.Pipeline)
		h.Serve(c.Request.Context())
	})

	return r
}
