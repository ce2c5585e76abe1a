package api

import (
	"dm-chat/auth"
	"dm-chat/errors"
	"dm-chat/observability"
	"dm-chat/services"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type Settings struct {
	ConnectionBufferSize int
	InternalAPIKey       string
	WriteWait            time.Duration
	PongWait             time.Duration
}

type Server struct {
	log        *slog.Logger
	chat       services.IChatService
	presence   services.IPresenceService
	tokens     *auth.TokenManager
	monitoring *observability.MonitoringManager
	settings   Settings
}

func NewServer(log *slog.Logger, chat services.IChatService, presence services.IPresenceService,
	tokens *auth.TokenManager, monitoring *observability.MonitoringManager, settings Settings) *Server {
	return &Server{log: log, chat: chat, presence: presence, tokens: tokens, monitoring: monitoring, settings: settings}
}

// Router exposes the messaging API. Every /api route and /ws require a token,
// the caller identity is always taken from it.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	api := router.Group("/api", auth.Authenticate(s.tokens))
	messages := api.Group("/messages")
	messages.POST("/send", s.sendMessage)
	messages.GET("/online-status", s.listPresence)
	messages.GET("/online-status/:id", s.getPresence)
	messages.PUT("/read", s.markReadBatch)
	messages.PUT("/read/:id", s.markReadOne)
	messages.GET("/:otherId", s.fetchConversation)

	router.GET("/ws", auth.Authenticate(s.tokens), s.openSession)

	internal := router.Group("/internal", auth.RequireInternalKey(s.settings.InternalAPIKey))
	internal.PUT("/users/:id", s.upsertUser)

	router.GET("/debug/stats", s.stats)
	return router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("HTTP request",
			"method", c.Request.Method, "path", c.FullPath(),
			"status", c.Writer.Status(), "duration", time.Since(start))
	}
}

// fail translates the error taxonomy. Server faults stay opaque to the caller.
func (s *Server) fail(c *gin.Context, err error) {
	status := errors.MapToHTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.log.Error("Request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"message": errors.PublicMessage(err)})
}

func (s *Server) stats(c *gin.Context) {
	c.JSON(http.StatusOK, s.monitoring.Snapshot())
}
