package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Relay/internal/adapters/ws"
	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/config"
	"github.com/dkeye/Relay/internal/core"
)

func BodyLimitMiddleware(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit <= 0 {
			c.Next()
			return
		}
		if c.Request.ContentLength > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, response{Data: nil, Message: "Request body too large"})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

// SetupRouter builds the HTTP surface. wsServer is nil when the game
// transport is UDP; otherwise its upgrade route is mounted at cfg.WSPath
// and frames are dispatched to h.
func SetupRouter(ctx context.Context, cfg *config.Config, store *app.Store, wsServer *ws.Server, h core.Handler) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(BodyLimitMiddleware(cfg.BodyLimit))

	rooms := &RoomHandlers{Store: store}
	limiter := NewClientRateLimiter(cfg.IssueRate, cfg.IssueBurst)

	api := r.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "Server is healthy")
	})

	roomsGroup := api.Group("/rooms")
	roomsGroup.GET("", rooms.List)
	roomsGroup.POST("/create", limiter.Middleware(), rooms.Create)
	roomsGroup.POST("/join", limiter.Middleware(), rooms.Join)

	if wsServer != nil {
		r.GET(cfg.WSPath, wsServer.Handler(ctx, h))
		log.Info().Str("module", "adapters.http").Str("path", cfg.WSPath).Str("transport", string(wsServer.Kind())).Msg("ws route mounted")
	}

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
