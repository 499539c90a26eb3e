package api

import (
	"net/http"

	authdelivery "inboxpilot-backend/internal/auth/delivery"
	authUsecase "inboxpilot-backend/internal/auth/usecase"
	classdelivery "inboxpilot-backend/internal/classification/delivery"
	commanddelivery "inboxpilot-backend/internal/command/delivery"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups the feature handlers mounted by SetupRoutes.
type Handlers struct {
	Auth           *authdelivery.AuthHandler
	Classification *classdelivery.ClassificationHandler
	Command        *commanddelivery.CommandHandler
	Settings       *SettingsHandler
	Metrics        http.Handler
}

func SetupRoutes(r *gin.Engine, authUc authUsecase.AuthUsecase, h Handlers) {
	authRequired := authdelivery.AuthMiddleware(authUc)

	metrics := h.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	r.GET("/metrics", gin.WrapH(metrics))

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		auth := api.Group("/auth")
		{
			auth.POST("/google", h.Auth.GoogleSignIn)
			auth.POST("/imap", h.Auth.IMAPSignIn)
			auth.POST("/refresh", h.Auth.RefreshToken)
			auth.POST("/logout", h.Auth.Logout)
			auth.GET("/me", authRequired, h.Auth.Me)
		}

		fcm := api.Group("/fcm")
		fcm.Use(authRequired)
		{
			fcm.POST("/register", h.Auth.RegisterFCMToken)
			fcm.DELETE("/:token", h.Auth.UnregisterFCMToken)
		}

		// Pub/Sub pushes carry no user token.
		api.POST("/emails/notification", h.Classification.Notification)

		emails := api.Group("/emails")
		emails.Use(authRequired)
		{
			emails.POST("/process_latest", h.Classification.ProcessLatest)
			emails.POST("/watch", h.Classification.Watch)
			emails.POST("/stop_watch", h.Classification.StopWatch)
			emails.GET("/buckets", h.Classification.GetBuckets)
			emails.POST("/read_all", h.Classification.ReadAll)
			emails.POST("/quick_remove", h.Classification.QuickRemove)
			emails.POST("/clean_promotions", h.Classification.CleanPromotions)
			emails.POST("/analyze_user", h.Classification.AnalyzeStyle)
			emails.GET("/get_analysis", h.Classification.GetStyleProfile)
			emails.GET("/search", h.Classification.Search)
			emails.GET("/sync_runs", h.Classification.ListSyncRuns)
		}

		api.POST("/chat", authRequired, h.Command.Chat)

		settings := api.Group("/settings")
		settings.Use(authRequired)
		{
			settings.GET("/ollama", h.Settings.GetOllamaSettings)
			settings.PUT("/ollama", h.Settings.UpdateOllamaSettings)
			settings.POST("/ollama/test", h.Settings.TestOllamaConnection)
		}
	}
}
