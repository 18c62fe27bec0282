package cmd

import (
	"crypto/rsa"
	"net/http"

	"github.com/akademi-crypto/vidhub/pkg/catalog"
	"github.com/akademi-crypto/vidhub/pkg/upload"
	"github.com/akademi-crypto/vidhub/pkg/vhdb/stor"
	"github.com/akademi-crypto/vidhub/pkg/webapi"
	"github.com/akademi-crypto/vidhub/pkg/webapi/apimiddleware"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

type RouteOpts struct {
	db               *gorm.DB
	stors            *stor.Stors
	uploads          *upload.Service
	catalog          *catalog.Service
	discord          webapi.DiscordAuthenticator
	tus              webapi.TusSessions
	tusHandler       http.Handler
	tusBasePath      string
	clerkKey         *rsa.PublicKey
	webhookSecret    string
	adminEmailDomain string
	spoolDir         string
}

func setupRoutes(e *echo.Echo, opts RouteOpts) {
	auth := apimiddleware.ClerkAuth(apimiddleware.ClerkAuthConfig{PublicKey: opts.clerkKey})

	setupVideoRoutes(e, opts)

	categoryController := webapi.NewCategoryController(opts.stors.CategoryStor)
	categories := e.Group("/api/categories")
	categories.GET("", categoryController.ListCategories)
	categories.POST("", categoryController.CreateCategory)
	categories.GET("/:id", categoryController.GetCategory)
	categories.PUT("/:id", categoryController.UpdateCategory)
	categories.DELETE("/:id", categoryController.DeleteCategory)

	userController := webapi.NewUserController(opts.stors.UserStor)
	users := e.Group("/api/users", auth)
	users.GET("", userController.ListUsers, apimiddleware.RequireAdmin)
	users.GET("/:id", userController.GetUser)
	users.PUT("/:id", userController.UpdateUser)

	webhookController := webapi.NewWebhookController(opts.stors.UserStor, opts.webhookSecret, opts.adminEmailDomain)
	e.POST("/webhook/clerk", webhookController.ClerkWebhook)

	discordController := webapi.NewDiscordController(opts.discord, opts.stors.UserStor)
	e.POST("/auth/discord/callback", discordController.DiscordCallback)

	healthController := webapi.NewHealthController(opts.db)
	e.GET("/health", healthController.GetHealthStatus)
	e.GET("/health/db", healthController.GetDatabaseHealth)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	logController := webapi.NewLogController()
	admin := e.Group("/admin", auth, apimiddleware.RequireAdmin)
	admin.GET("/log", logController.ShowCurrentLogging)
	admin.POST("/log", logController.SetLogging)
}

func setupVideoRoutes(e *echo.Echo, opts RouteOpts) {
	g := e.Group("/api/videos")

	videoController := webapi.NewVideoController(opts.uploads, opts.catalog, opts.spoolDir)
	g.POST("/upload", videoController.UploadVideo)
	g.GET("", videoController.ListVideos)
	g.POST("/bulk-delete", videoController.BulkDeleteVideos)

	progressController := webapi.NewProgressController(opts.uploads)
	g.GET("/progress", progressController.GetAllUploadProgress)
	g.GET("/progress/stats", progressController.GetUploadStats)
	g.GET("/progress/:uploadId", progressController.GetUploadProgress)
	g.GET("/progress/:uploadId/stream", progressController.StreamUploadProgress)
	g.GET("/progress/:uploadId/ws", progressController.WatchUploadProgress)
	g.DELETE("/progress/:uploadId/cancel", progressController.CancelUpload)

	g.GET("/:id", videoController.GetVideo)
	g.PUT("/:id", videoController.UpdateVideo)
	g.DELETE("/:id", videoController.DeleteVideo)

	if opts.tus != nil {
		tusController := webapi.NewTusController(opts.tus)
		g.GET("/tus/:tusId", tusController.GetTusSession)
	}

	if opts.tusHandler != nil {
		mountTus(e, opts.tusBasePath, opts.tusHandler)
	}
}

// mountTus serves the tus protocol under basePath.
func mountTus(e *echo.Echo, basePath string, h http.Handler) {
	e.Any(basePath+"*", echo.WrapHandler(http.StripPrefix(basePath, h)))
}
