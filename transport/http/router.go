package http

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/keepsake/service"
	"github.com/sirupsen/logrus"
)

// Options configures the optional parts of the router
type Options struct {
	StaticDir    string
	PhotosDir    string
	AllowOrigins []string
}

// SetupRouter sets up the Gin router
func SetupRouter(unlockService *service.UnlockService, logger *logrus.Logger, opts Options) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger))

	if len(opts.AllowOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:  opts.AllowOrigins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost},
			AllowHeaders:  []string{"Content-Type", "Authorization", headerRequestID},
			ExposeHeaders: []string{headerRequestID},
			MaxAge:        12 * time.Hour,
		}))
	}

	// Create handlers
	handlers := NewUnlockHandlers(unlockService)

	api := router.Group("/api")
	{
		api.GET("/config", handlers.Config)
		api.POST("/verify", handlers.Verify)
		api.POST("/progress", handlers.StartProgress)

		// Progress routes need a valid token
		progress := api.Group("/progress")
		progress.Use(ProgressMiddleware(unlockService))
		{
			progress.GET("", handlers.Progress)
			progress.POST("/reset", handlers.Reset)
		}
	}

	if opts.PhotosDir != "" {
		router.Static("/photos", opts.PhotosDir)
	}

	router.NoRoute(spaFallback(opts.StaticDir))

	return router
}

// spaFallback serves files from dir and falls back to index.html for any
// other non-API GET so client side routes keep working
func spaFallback(dir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqPath := c.Request.URL.Path
		if dir == "" || strings.HasPrefix(reqPath, "/api/") ||
			(c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}

		// Cleaning against "/" keeps the path inside dir
		file := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+reqPath)))
		if info, err := os.Stat(file); err == nil && info.Mode().IsRegular() {
			c.File(file)
			return
		}

		index := filepath.Join(dir, "index.html")
		if _, err := os.Stat(index); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		c.File(index)
	}
}
