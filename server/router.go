package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	httpHandler "github.com/Methodus-dev/methodus-shorts-planner/interfaces/http"
	"github.com/Methodus-dev/methodus-shorts-planner/interfaces/middleware"
)

var defaultOrigins = []string{"http://localhost:3000", "http://localhost:5173"}

type RouterConfig struct {
	AllowOrigins []string
	SecretKey    string
	// YouTubeAuth enables the OAuth consent routes when set.
	YouTubeAuth httpHandler.IYouTubeAuthHandler
}

func InitiateRouter(
	cfg RouterConfig,
	trendHandler httpHandler.ITrendHandler,
	healthHandler httpHandler.IHealthHandler,
	stream gin.HandlerFunc,
	metrics http.Handler,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = defaultOrigins
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", healthHandler.Healthz)
	router.GET("/readyz", healthHandler.Readyz)
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	api := router.Group("api")
	trends := api.Group("trends")
	trends.GET("", trendHandler.GetTrending)
	trends.GET("/filters", trendHandler.GetFilterOptions)
	trends.GET("/keywords", trendHandler.GetKeywordTrends)
	trends.GET("/export.csv", trendHandler.ExportCSV)
	trends.GET("/status", trendHandler.Status)
	if stream != nil {
		trends.GET("/stream", stream)
	}

	admin := api.Group("admin")
	admin.Use(middleware.AdminAuth(cfg.SecretKey))
	admin.POST("/refresh", trendHandler.Refresh)

	if cfg.YouTubeAuth != nil {
		admin.GET("/youtube/auth", cfg.YouTubeAuth.GetAuthURL)
		router.GET("/auth/youtube/callback", cfg.YouTubeAuth.HandleCallback)
	}

	return router
}
