package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"whatsapp-group-automation/internal/api"
	"whatsapp-group-automation/internal/config"
	"whatsapp-group-automation/internal/webhook"
	"whatsapp-group-automation/internal/ws"
)

// newRouter wires the ingress webhook, the management API and the live event feed
func newRouter(cfg *config.Config, db *gorm.DB, engine webhook.MessageProcessor, hub *ws.Hub, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	// CORS Middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, "+webhook.TokenHeader)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		state := "ok"
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status = http.StatusServiceUnavailable
			state = "database unavailable"
		}
		c.JSON(status, gin.H{"status": state})
	})

	webhookHandler := webhook.NewHandler(cfg, engine, hub, logger)
	automationHandler := api.NewAutomationHandler(db, cfg.MaxPatternLength)

	// Webhook Routes
	r.POST("/webhook/:companyId/group", webhookHandler.HandleGroupMessage)

	// Management API Routes
	automationHandler.RegisterRoutes(r.Group("/api"))

	// WebSocket Routes
	r.GET("/ws/companies/:companyId/automation", hub.ServeWs)

	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
