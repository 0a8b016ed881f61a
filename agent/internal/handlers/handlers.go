package handlers

import (
	"ca-monitor/agent/internal/dispatch"
	"ca-monitor/agent/internal/engine"
	"ca-monitor/agent/internal/registry"
	"ca-monitor/shared/logger"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type tokenStatus struct {
	Address        string  `json:"address"`
	Name           string  `json:"name"`
	Ticker         string  `json:"ticker,omitempty"`
	TotalMentions  int     `json:"totalMentions"`
	AverageHourly  float64 `json:"averageHourly"`
	MonitoringTime string  `json:"monitoringTime"`
}

func RegisterRoutes(router *gin.Engine, appLogger *logger.Logger) {
	router.GET("/", func(c *gin.Context) {
		appLogger.Info("Root endpoint accessed")
		c.JSON(http.StatusOK, gin.H{"message": "API is running. Monitor active!"})
	})
}

func RegisterAPIRoutes(router *gin.Engine, appLogger *logger.Logger, reg *registry.Registry, disp *dispatch.Dispatcher, control *engine.Control) {
	apiGroup := router.Group("/api/v1")
	{
		apiGroup.GET("/health", func(c *gin.Context) {
			appLogger.Info("API Health endpoint called")
			c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "API Service is running"})
		})

		apiGroup.GET("/status", func(c *gin.Context) {
			var chatID int64
			if raw := c.Query("chatId"); raw != "" {
				parsed, err := strconv.ParseInt(raw, 10, 64)
				if err != nil {
					appLogger.Warn("Invalid chatId query parameter", zap.String("chatId", raw))
					c.JSON(http.StatusBadRequest, gin.H{"error": "chatId must be an integer"})
					return
				}
				chatID = parsed
			}

			now := time.Now()
			ranked := reg.RankedActive(chatID)
			tokens := make([]tokenStatus, 0, len(ranked))
			for _, st := range ranked {
				tokens = append(tokens, tokenStatus{
					Address:        st.Address,
					Name:           st.DisplayName(),
					Ticker:         st.Ticker,
					TotalMentions:  st.RunningTotal,
					AverageHourly:  st.AverageMentionRate(now),
					MonitoringTime: st.MonitoringTimeString(now),
				})
			}

			c.JSON(http.StatusOK, gin.H{
				"mode":         disp.Mode(),
				"sleeping":     control.Sleeping(),
				"activeTokens": len(tokens),
				"globalActive": reg.ActiveCount(0),
				"tokens":       tokens,
			})
		})
	}
	appLogger.Info("API routes registered under /api/v1")
}
