// Package httpapi wires the HTTP transport (Gin) of the chat relay: the REST
// pull endpoints, the websocket upgrade, static attachments and the ops
// endpoints, behind the shared middleware chain (tracing, correlation ids,
// redacted logging, recovery, metrics, idempotency, rate limiting, CORS,
// security headers and gzip).
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-chat-relay/docs"
	"github.com/tbourn/go-chat-relay/internal/config"
	"github.com/tbourn/go-chat-relay/internal/http/handlers"
	"github.com/tbourn/go-chat-relay/internal/http/middleware"
	"github.com/tbourn/go-chat-relay/internal/media"
	"github.com/tbourn/go-chat-relay/internal/realtime"
	"github.com/tbourn/go-chat-relay/internal/repo"
)

// WebsocketPath is the root-level upgrade endpoint.
const WebsocketPath = "/ws"

// Deps are the collaborators mounted by RegisterRoutes.
type Deps struct {
	Messages    handlers.MessageStore
	Views       handlers.Views
	Sender      handlers.Sender
	Realtime    http.Handler                 // websocket hub; nil disables /ws
	Live        LiveStats                    // reported by /health when set
	Idempotency middleware.IdempotencyLookup // nil disables replay detection
	UploadDir   string                       // served under /uploads; "" disables
}

// LiveStats exposes connection and upload counters.
type LiveStats interface {
	Stats() realtime.Stats
}

// IdempotencyLookup answers replay checks from the idempotency table.
func IdempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, senderID, receiverID uint, key string, now time.Time) (bool, error) {
		rec, err := repo.GetIdempotency(ctx, db, senderID, receiverID, key, now)
		if err != nil || rec == nil {
			return false, err
		}
		return true, nil
	}
}

// RegisterRoutes installs the middleware chain and every endpoint.
//
// Middleware order matters:
//  1. OpenTelemetry
//  2. RequestID
//  3. RedactingLogger (attaches the request-scoped logger)
//  4. Recovery
//  5. Body size limit
//  6. Metrics
//  7. Idempotency validator (before the limiter so replays bypass it)
//  8. Rate limiter
//  9. CORS, security headers, gzip
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(bodyLimit(cfg)))
	r.Use(middleware.Metrics())
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, deps.Idempotency))
	r.Use(middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP()).Handler())
	r.Use(corsHandlers(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
		UploadsPath:  media.WebPrefix,
	}))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{WebsocketPath, media.WebPrefix, "/metrics"})))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Ops
	r.GET("/health", func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		if deps.Live != nil {
			body["live"] = deps.Live.Stats()
		}
		c.JSON(http.StatusOK, body)
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Realtime and attachments live at the root, outside API_BASE_PATH.
	if deps.Realtime != nil {
		r.GET(WebsocketPath, gin.WrapH(deps.Realtime))
	}
	if deps.UploadDir != "" {
		r.Static(media.WebPrefix, deps.UploadDir)
	}

	h := handlers.New(deps.Messages, deps.Views, deps.Sender)
	h.MaintenanceToken = cfg.MaintenanceToken

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.GET("/messages", h.ListMessages)
		api.GET("/messages/select", h.ListMessages)
		api.POST("/messages", h.PostMessage)
		api.DELETE("/messages", h.PurgeMessages)

		api.GET("/conversations", h.ListConversations)
		api.GET("/conversations/admin", h.ListAdminConversations)
	}
}

// corsHandlers allows every origin when none is configured, otherwise only
// the listed ones (echoed back with Vary: Origin).
func corsHandlers(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization",
			middleware.HeaderUserID, middleware.HeaderIdempotencyKey, middleware.HeaderMaintenanceToken,
		},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag", "Idempotency-Replayed"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	if len(origins) == 0 {
		base.AllowAllOrigins = true
		return []gin.HandlerFunc{
			// ACAO even without an Origin header, for probes and curl.
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	base.AllowOrigins = origins
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(base),
	}
}

// bodyLimit admits one inline attachment per request.
func bodyLimit(cfg config.Config) int64 {
	if cfg.WS.MaxMessageBytes > 0 {
		return cfg.WS.MaxMessageBytes
	}
	return 1 << 20
}

func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
