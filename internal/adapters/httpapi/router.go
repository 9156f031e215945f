// Package httpapi wires the poll-based realtime API, the media-token
// endpoint, and the websocket upgrade into one gin router.
package httpapi

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/careloop/signaling/internal/adapters/push"
	"github.com/careloop/signaling/internal/config"
)

func SetupRouter(ctx context.Context, cfg *config.Config, h *Handlers, ws *push.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	log.Info().Str("module", "httpapi").Str("mode", cfg.Mode).Msg("router setup")

	api := r.Group("/api")
	api.Use(Auth(cfg.Secret))

	rt := api.Group("/realtime")
	rt.POST("/connect", h.Connect)
	rt.POST("/disconnect", h.Disconnect)
	rt.POST("/send-message", h.SendMessage)
	rt.POST("/initiate-call", h.InitiateCall)
	rt.POST("/accept-call", h.AcceptCall)
	rt.POST("/reject-call", h.RejectCall)
	rt.POST("/end-call", h.EndCall)
	rt.POST("/poll", h.Poll)
	rt.POST("/message-history", h.History)

	api.POST("/media/token", h.MediaToken)

	api.GET("/ws", func(c *gin.Context) {
		ws.HandleWS(ctx, c)
	})

	return r
}
