package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dfryer1193/blogspace/blog/domain"
	"github.com/dfryer1193/blogspace/blog/media"
	"github.com/dfryer1193/blogspace/blog/persistence"
	"github.com/dfryer1193/blogspace/internal/config"
	"github.com/dfryer1193/blogspace/shared/db"
	"github.com/dfryer1193/blogspace/shared/db/mongo"
	"github.com/dfryer1193/blogspace/shared/db/postgres"
	"github.com/dfryer1193/blogspace/shared/db/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const closeTimeout = 5 * time.Second

// openPostRepository connects the backend named by DATABASE_URL. The returned func closes it.
func openPostRepository(ctx context.Context, conf *config.Config) (domain.PostRepository, func(), error) {
	switch conf.Database.Kind() {
	case config.DatabaseMongo:
		mdb := mongo.NewMongoDB(&mongo.MongoConfig{
			URI:        conf.Database.URL,
			Database:   conf.Database.Name,
			Collection: conf.Database.Collection,
		})
		if err := mdb.Connect(ctx); err != nil {
			return nil, nil, err
		}
		log.Info().Str("database", conf.Database.Name).Str("collection", conf.Database.Collection).Msg("Connected to MongoDB")

		closeFn := func() {
			ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
			defer cancel()
			if err := mdb.Close(ctx); err != nil {
				log.Error().Err(err).Msg("Failed to close MongoDB client")
			}
		}
		return persistence.NewMongoPostRepository(mdb.Collection()), closeFn, nil

	case config.DatabasePostgres:
		return openSQL(postgres.NewPostgresDB(&postgres.PostgresConfig{
			DSN:         conf.Database.URL,
			MaxOpen:     conf.Database.MaxOpen,
			MaxIdle:     conf.Database.MaxIdle,
			MaxLifetime: conf.Database.MaxLifetime,
		}), "PostgreSQL")

	default:
		return openSQL(sqlite.NewSQLiteDB(sqlite.NewSQLiteConfig(conf.Database.URL)), "SQLite")
	}
}

func openSQL(database db.Database, name string) (domain.PostRepository, func(), error) {
	if err := database.Connect(); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", name, err)
	}
	log.Info().Str("driver", name).Msg("Connected to database")

	closeFn := func() {
		if err := database.Close(); err != nil {
			log.Error().Err(err).Str("driver", name).Msg("Failed to close database")
		}
	}
	return persistence.NewPostRepository(database.DB()), closeFn, nil
}

// withCache wraps repo in a Redis read cache when REDIS_ADDR is set and reachable
func withCache(ctx context.Context, conf config.Redis, repo domain.PostRepository) (domain.PostRepository, func()) {
	if conf.Addr == "" {
		return repo, func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, closeTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", conf.Addr).Msg("Redis unreachable, running without cache")
		_ = rdb.Close()
		return repo, func() {}
	}
	log.Info().Str("addr", conf.Addr).Dur("ttl", conf.CacheTTL).Msg("Post cache enabled")

	closeFn := func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close Redis client")
		}
	}
	return persistence.NewCachedPostRepository(repo, rdb, conf.CacheTTL), closeFn
}

func openMediaStore(ctx context.Context, conf *config.Config) (domain.MediaStore, error) {
	switch conf.Media.Backend {
	case config.MediaBackendMinIO:
		return media.NewMinIOStore(ctx, media.MinIOConfig{
			Endpoint:  conf.MinIO.Endpoint,
			User:      conf.MinIO.User,
			Password:  conf.MinIO.Password,
			Bucket:    conf.MinIO.Bucket,
			UseSSL:    conf.MinIO.UseSSL,
			PublicURL: conf.MinIO.PublicURL,
		})
	default:
		return media.NewCloudinaryStore(media.CloudinaryConfig{
			CloudName: conf.Cloudinary.CloudName,
			APIKey:    conf.Cloudinary.APIKey,
			APISecret: conf.Cloudinary.APISecret,
		})
	}
}
