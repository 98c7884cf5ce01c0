package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"form-consent/controllers"
	"form-consent/middleware"
)

// SetupRouter wires the controllers to their routes.
func SetupRouter(
	cc *controllers.ConsentController,
	ac *controllers.AdminController,
	corsOrigins []string,
	adminKeyHash string,
	logger *slog.Logger,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger(logger))

	allowCredentials := true
	for _, origin := range corsOrigins {
		if origin == "*" {
			allowCredentials = false
			break
		}
	}

	r.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: allowCredentials,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.POST("/forms/:identifier/submit", cc.Submit)

		consent := api.Group("/consent")
		{
			consent.GET("/approve", cc.Approve)
			consent.GET("/dismiss", cc.Dismiss)
		}

		api.GET("/meta/icons", controllers.GetIcons)

		admin := api.Group("/admin", middleware.RequireAPIKey(adminKeyHash))
		{
			admin.GET("/consents", ac.ListConsents)
			admin.GET("/consents/:id", ac.GetConsent)
			admin.GET("/consents/:id/logs", ac.GetConsentLogs)
			admin.DELETE("/consents/:id", ac.DeleteConsent)
			admin.POST("/gc", ac.GarbageCollect)

			admin.GET("/forms/:identifier", ac.GetForm)
			admin.PUT("/forms/:identifier", ac.UpsertForm)

			admin.GET("/files", ac.DownloadFile)
		}
	}

	return r
}
