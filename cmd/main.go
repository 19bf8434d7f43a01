package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/weiawesome/wes-io-social/internal/cache"
	"github.com/weiawesome/wes-io-social/internal/config"
	"github.com/weiawesome/wes-io-social/internal/consumer"
	"github.com/weiawesome/wes-io-social/internal/handler"
	"github.com/weiawesome/wes-io-social/internal/reconciler"
	"github.com/weiawesome/wes-io-social/internal/repository"
	"github.com/weiawesome/wes-io-social/internal/service"
	"github.com/weiawesome/wes-io-social/pkg/database"
	"github.com/weiawesome/wes-io-social/pkg/jwt"
	pkglog "github.com/weiawesome/wes-io-social/pkg/log"
	"github.com/weiawesome/wes-io-social/pkg/middleware"
	"github.com/weiawesome/wes-io-social/pkg/pubsub"
	"github.com/weiawesome/wes-io-social/pkg/storage"
)

type stores struct {
	users repository.UserRepository
	posts repository.PostRepository
	close func()
}

// openStores connects the configured backend and prepares its schema.
func openStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*stores, error) {
	switch cfg.Database.Driver {
	case "memory":
		logger.Warn().Msg("using in-memory store; data is lost on restart")
		return &stores{
			users: repository.NewMemoryUserRepository(),
			posts: repository.NewMemoryPostRepository(),
			close: func() {},
		}, nil

	case "mongo":
		client, db, err := database.NewMongo(ctx, cfg.Database.Mongo)
		if err != nil {
			return nil, err
		}
		users := repository.NewMongoUserRepository(db)
		posts := repository.NewMongoPostRepository(db)
		if err := users.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure user indexes: %w", err)
		}
		if err := posts.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure post indexes: %w", err)
		}
		logger.Info().Str("database", cfg.Database.Mongo.Database).Msg("mongo indexes ensured")
		return &stores{
			users: users,
			posts: posts,
			close: func() { _ = client.Disconnect(context.Background()) },
		}, nil

	default:
		db, err := database.New(&cfg.Database.Config)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
		}
		users := repository.NewGormUserRepository(db)
		posts := repository.NewGormPostRepository(db)
		models := append(users.Models(), posts.Models()...)
		if err := database.AutoMigrate(db, models...); err != nil {
			return nil, fmt.Errorf("failed to auto-migrate: %w", err)
		}
		logger.Info().Str("driver", cfg.Database.Driver).Msg("database migration completed")
		return &stores{
			users: users,
			posts: posts,
			close: func() { _ = sqlDB.Close() },
		}, nil
	}
}

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// 2. Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: "social-service",
	})
	logger := pkglog.L()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Store
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to open store")
	}
	defer st.close()

	// 4. Cache and repair queue share the Redis connection
	var (
		profileCache cache.Cache
		repairQueue  reconciler.Queue
	)
	if cfg.Cache.Driver == "redis" {
		rc, err := cache.NewRedisCache(cache.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		profileCache = rc
		repairQueue = reconciler.NewRedisQueue(rc.Client(), cfg.Cache.Prefix)
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	} else {
		mc, err := cache.NewMemoryCache(cfg.Cache.MemorySize)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create memory cache")
		}
		profileCache = mc
		repairQueue = reconciler.NewMemoryQueue()
	}
	defer profileCache.Close()

	// 5. Event publisher
	publisher, err := pubsub.NewPublisher(cfg.Events)
	if err != nil {
		logger.Warn().Err(err).Str("driver", cfg.Events.Driver).Msg("failed to create event publisher, events disabled")
		publisher = pubsub.NopPublisher{}
	}
	defer publisher.Close()

	// 6. Avatar storage
	var avatars service.AvatarStorage
	if objStore, err := storage.New(ctx, cfg.Storage); err != nil {
		logger.Warn().Err(err).Str("driver", cfg.Storage.Driver).Msg("avatar storage unavailable, uploads disabled")
	} else {
		avatars = objStore
	}

	// 7. Tokens
	tokens, err := jwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL, cfg.Auth.Issuer)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create token manager")
	}

	// 8. Services
	timeouts := service.Timeouts{Query: cfg.Database.QueryTimeout, Cache: cfg.Cache.OpTimeout}
	keys := cache.NewKeyBuilder(cfg.Cache.Prefix)
	invalidator := service.NewInvalidator(profileCache, keys, cfg.Cache.OpTimeout)
	rec := reconciler.New(repairQueue, st.users, invalidator, reconciler.Config{
		Interval:  cfg.Reconciler.Interval,
		BatchSize: cfg.Reconciler.BatchSize,
	})
	topic := cfg.Events.Topic

	userSvc := service.NewUserService(st.users, tokens, avatars, invalidator, publisher, topic, timeouts)
	svc := handler.Services{
		Users:   userSvc,
		Follows: service.NewFollowService(st.users, invalidator, repairQueue, publisher, topic, timeouts),
		Profile: service.NewProfileService(st.users, st.posts, profileCache, keys, service.ProfileOptions{
			TTL:              cfg.Cache.ProfileTTL,
			RecentPostsLimit: cfg.Profile.RecentPostsLimit,
			Timeouts:         timeouts,
		}),
		Posts: service.NewPostService(st.posts, st.users, profileCache, keys, cfg.Cache.ProfileTTL, invalidator, publisher, topic, timeouts),
		Admin: service.NewAdminService(st.users, st.posts, tokens, invalidator, repairQueue, rec, publisher, topic, timeouts),
	}

	// 9. Avatar-processed consumer
	var kafkaConsumer *consumer.ConfluentConsumer
	if cfg.Kafka.Brokers != "" && avatars != nil {
		kc, err := consumer.NewConfluentConsumer(
			cfg.Kafka.Brokers,
			cfg.Kafka.AvatarTopic,
			cfg.Kafka.GroupID,
			consumer.NewAvatarHandler(userSvc),
		)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to create kafka consumer, avatar updates disabled")
		} else if err := kc.Start(ctx); err != nil {
			logger.Warn().Err(err).Msg("failed to start kafka consumer")
		} else {
			kafkaConsumer = kc
		}
	} else {
		logger.Warn().Msg("KAFKA_BROKERS or storage not configured; avatar consumer disabled")
	}

	// 10. Reconciler and token revocation cleanup
	rec.Start(ctx)
	logger.Info().Dur("interval", cfg.Reconciler.Interval).Int("batch_size", cfg.Reconciler.BatchSize).Msg("reconciler started")

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tokens.CleanupExpiredRevocations()
			}
		}
	}()

	// 11. Router
	authMiddleware := middleware.NewAuthMiddleware(tokens)
	followLimiter := middleware.NewRateLimiter(cfg.RateLimit)
	httpHandler := handler.NewHandler(svc, authMiddleware, followLimiter)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger, "/health"))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	httpHandler.RegisterRoutes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logger.Info().Str("addr", addr).Str("store", cfg.Database.Driver).Str("cache", cfg.Cache.Driver).Msg("social-service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// 12. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutdown signal received")

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		cancel()

		if kafkaConsumer != nil {
			if err := kafkaConsumer.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing kafka consumer")
			}
		}

		rec.Stop()
		<-rec.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("HTTP server forced to shutdown")
		}
	}()

	select {
	case <-shutdownDone:
		logger.Info().Msg("social-service stopped gracefully")
	case <-time.After(cfg.Server.ShutdownTimeout):
		logger.Warn().Msg("graceful shutdown timed out")
	}
}
