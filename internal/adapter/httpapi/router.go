// Package httpapi exposes the user and chat repositories over REST.
package httpapi

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"chatstore/internal/domain"
	"chatstore/internal/repository"
)

// Registrar is the cross-repository operation the store factories offer.
type Registrar interface {
	RegisterUserWithInitialMessage(ctx context.Context, u *domain.User, m *domain.ChatMessage) error
}

// Deps carries everything the handlers need.
type Deps struct {
	Users     repository.UserRepository
	Chat      repository.ChatRepository
	Registrar Registrar
	// Health reports storage availability; nil means always healthy.
	Health func(ctx context.Context) error
	Log    *slog.Logger
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(deps Deps) *gin.Engine {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(deps.Log))

	h := &handlers{deps: deps}

	r.GET("/healthz", h.health)

	api := r.Group("/api")
	{
		api.POST("/users", h.createUser)
		api.GET("/users", h.listUsers)
		api.GET("/users/:id", h.getUser)
		api.PUT("/users/:id", h.updateUser)
		api.DELETE("/users/:id", h.deleteUser)
		api.GET("/users/:id/sessions", h.userSessions)
		api.GET("/users/:id/messages", h.userMessages)

		api.POST("/messages", h.createMessage)
		api.GET("/messages", h.listMessages)
		api.GET("/messages/:id", h.getMessage)
		api.PUT("/messages/:id", h.updateMessage)
		api.DELETE("/messages/:id", h.deleteMessage)

		api.GET("/sessions", h.listSessions)
		api.GET("/sessions/:id/messages", h.sessionHistory)
		api.DELETE("/sessions/:id", h.deleteSession)

		api.POST("/register", h.register)
	}

	return r
}

// requestLogger logs one line per request in the service's slog format.
func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", time.Since(start),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}
		if status >= 500 {
			log.Error("request failed", attrs...)
		} else {
			log.Debug("request handled", attrs...)
		}
	}
}
