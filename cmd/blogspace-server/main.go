package main

import (
	"context"

	"github.com/dfryer1193/blogspace/blog/application"
	"github.com/dfryer1193/blogspace/internal/config"
	"github.com/dfryer1193/blogspace/internal/httpserver"
	"github.com/dfryer1193/blogspace/internal/logging"
	"github.com/dfryer1193/blogspace/internal/rest"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func main() {
	conf, err := config.New(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Setup(conf.Log)
	gin.SetMode(conf.HTTPServer.GinMode)

	ctx := context.Background()

	repo, closeStore, err := openPostRepository(ctx, conf)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open post store")
	}
	defer closeStore()

	repo, closeCache := withCache(ctx, conf.Redis, repo)
	defer closeCache()

	media, err := openMediaStore(ctx, conf)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up media store")
	}

	postService := application.NewPostService(repo, media, application.ServiceOptions{
		SanitizeContent: conf.Content.Sanitize,
		MediaTimeout:    conf.Media.Timeout,
	})
	defer func() {
		if err := postService.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to gracefully close post service")
		}
	}()

	router, err := rest.NewRouter(rest.RouterConfig{
		AllowedOrigins:     conf.HTTPServer.AllowedOrigins,
		TrustedProxies:     conf.HTTPServer.TrustedProxies,
		RateLimitPerMinute: conf.RateLimit.PerMinute,
	}, postService)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build router")
		return
	}

	if err := httpserver.New(conf.HTTPServer, router).Run(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP server stopped with error")
		return
	}

	log.Info().Msg("Server stopped")
}
