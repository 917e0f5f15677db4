package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vinylops/wrap-report/internal/service"
)

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authService service.AuthService,
	reportService service.ReportService,
	maxFileSize int64,
) {
	telegramHandler := NewTelegramHandler(authService)
	reportHandler := NewReportHandler(reportService, maxFileSize)

	sessionMiddleware := SessionMiddleware(jwtSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	apiGroup := router.Group("/api")
	{
		telegramGroup := apiGroup.Group("/telegram")
		{
			telegramGroup.POST("/verify", telegramHandler.Verify)
		}

		// Report routes require a session token minted by the verify
		// endpoint, so only clients with valid signed init data upload.
		reportGroup := apiGroup.Group("/report")
		reportGroup.Use(sessionMiddleware)
		{
			reportGroup.POST("", reportHandler.Submit)
			reportGroup.GET("/list", reportHandler.List)
			reportGroup.GET("/history", reportHandler.History)
		}
	}
}
