package rest

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dfryer1193/blogspace/internal/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type RouterConfig struct {
	AllowedOrigins []string

	// TrustedProxies may set X-Forwarded-For. Empty means the client IP is the peer address.
	TrustedProxies []string

	// RateLimitPerMinute limits write requests per client IP. Zero disables the limit.
	RateLimitPerMinute int
}

// NewRouter builds the gin engine with middleware and all routes
func NewRouter(cfg RouterConfig, svc PostService) (*gin.Engine, error) {
	router := gin.New()
	if err := router.SetTrustedProxies(trimmed(cfg.TrustedProxies)); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}
	router.Use(middleware.LoggingMiddleware())
	router.Use(gin.CustomRecovery(middleware.HandlePanics()))
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	var writeLimit []gin.HandlerFunc
	if cfg.RateLimitPerMinute > 0 {
		writeLimit = append(writeLimit, middleware.NewRateLimiter(cfg.RateLimitPerMinute).Middleware())
	}

	NewApi(router, NewPostsApi(svc), writeLimit...)
	return router, nil
}

func trimmed(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// NewApi registers the post routes. writeLimit runs in front of every mutating route.
func NewApi(router *gin.Engine, posts *PostsApi, writeLimit ...gin.HandlerFunc) {
	write := func(h gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, writeLimit...), h)
	}

	postsGroup := router.Group("/posts")
	{
		postsGroup.GET("", posts.GetPosts)
		postsGroup.GET("/:postId", posts.GetPost)
		postsGroup.POST("", write(posts.CreatePost)...)
		postsGroup.PATCH("/:postId", write(posts.UpdatePost)...)
		postsGroup.DELETE("/:postId", write(posts.DeletePost)...)
	}

	// Paths used by existing clients
	legacy := router.Group("/api", markLegacy)
	{
		legacy.GET("/GetBlogs", posts.GetPosts)
		legacy.GET("/GetBlogs/:postId", posts.GetPost)
		legacy.POST("/create", write(posts.CreatePost)...)
		legacy.PATCH("/Update/:postId", write(posts.UpdatePost)...)
		legacy.DELETE("/Delete/:postId", write(posts.DeletePost)...)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Accept", "Content-Type", "Origin"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        300 * time.Second,
	}

	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if origin == "*" {
			cfg.AllowAllOrigins = true
			cfg.AllowOrigins = nil
			return cfg
		}
		cfg.AllowOrigins = append(cfg.AllowOrigins, origin)
	}

	if len(cfg.AllowOrigins) == 0 {
		cfg.AllowAllOrigins = true
	}
	return cfg
}
