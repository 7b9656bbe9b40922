package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-petevents/internal/analytics"
	analytics_api "ms-petevents/internal/analytics/api"
	"ms-petevents/internal/auth"
	"ms-petevents/internal/config"
	"ms-petevents/internal/database/migrations"
	"ms-petevents/internal/enrollment"
	enrolldb "ms-petevents/internal/enrollment/db"
	"ms-petevents/internal/enrollment/enrollment_api"
	enrollredis "ms-petevents/internal/enrollment/redis"
	"ms-petevents/internal/events"
	eventdb "ms-petevents/internal/events/db"
	"ms-petevents/internal/events/event_api"
	"ms-petevents/internal/kafka"
	"ms-petevents/internal/logger"
	"ms-petevents/internal/metrics"
	"ms-petevents/internal/owners"
	ownerdb "ms-petevents/internal/owners/db"
	"ms-petevents/internal/owners/owner_api"
	"ms-petevents/internal/pets"
	petdb "ms-petevents/internal/pets/db"
	"ms-petevents/internal/pets/pet_api"
	"ms-petevents/internal/qr"
	"ms-petevents/internal/reviews"
	reviewdb "ms-petevents/internal/reviews/db"
	"ms-petevents/internal/reviews/review_api"
	"ms-petevents/internal/sse"
	"ms-petevents/internal/utils"
)

// domainPublisher is satisfied by both kafka.DomainPublisher and kafka.NoopPublisher.
type domainPublisher interface {
	events.KafkaPublisher
	enrollment.KafkaPublisher
	reviews.KafkaPublisher
}

func verifyConnections(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*bun.DB, *redis.Client) {
	var sqldb *sql.DB
	var err error
	maxRetries := cfg.Database.ConnRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	for i := 0; i < maxRetries; i++ {
		logger.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			logger.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.PingContext(ctx)
		if err == nil {
			break
		}

		logger.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		sqldb.Close()
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	logger.Info("DATABASE", "✅ PostgreSQL connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}

	_, err = redisClient.ConfigSet(ctx, "notify-keyspace-events", "Ex").Result()
	if err != nil {
		logger.Warn("REDIS", fmt.Sprintf("Failed to enable keyspace notifications: %v", err))
	} else {
		logger.Info("REDIS", "Keyspace notifications enabled for expired events")
	}

	logger.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Redis.Addr, redisClient.Options().DB))
	return bunDB, redisClient
}

func newVerifier(ctx context.Context, cfg config.AuthConfig, redisClient *redis.Client, logger *logger.Logger) auth.TokenVerifier {
	var verifier auth.TokenVerifier
	switch cfg.Mode {
	case "hs256":
		v, err := auth.NewHS256Verifier(cfg.JWTSecret)
		if err != nil {
			logger.Fatal("AUTH", fmt.Sprintf("HS256 verifier: %v", err))
		}
		logger.Warn("AUTH", "Using HS256 shared-secret tokens, do not run this in production")
		verifier = v
	default:
		v, err := auth.NewOIDCVerifier(ctx, cfg.OIDCIssuer)
		if err != nil {
			logger.Fatal("AUTH", fmt.Sprintf("OIDC verifier for %q: %v", cfg.OIDCIssuer, err))
		}
		logger.Info("AUTH", fmt.Sprintf("Verifying bearer tokens against %s", cfg.OIDCIssuer))
		verifier = v
	}
	return auth.NewCachingVerifier(verifier, redisClient, cfg.ClaimsCacheTTL, logger)
}

// requestLogger logs every request with its matched status and duration.
func requestLogger(logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			path := r.URL.Path
			if token, err := auth.ExtractTokenFromRequest(r); err == nil {
				if sub, err := auth.ExtractUserIDFromJWT(token); err == nil {
					path = fmt.Sprintf("%s (user %s)", path, sub)
				}
			}
			logger.LogAPI(r.Method, path, fmt.Sprint(ww.Status()), time.Since(start).Round(time.Millisecond).String())
		})
	}
}

func healthHandler(bunDB *bun.DB, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := bunDB.PingContext(ctx); err != nil {
			utils.WriteJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("database unavailable", err.Error()))
			return
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			utils.WriteJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("redis unavailable", err.Error()))
			return
		}
		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("ok", nil))
	}
}

func main() {
	logger := logger.NewLogger()
	defer logger.Close()

	logger.Info("APP", "Starting Pet Events Service initialization")

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}
	cfg := config.Load()

	ctx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	logger.Info("APP", "Verifying database connections")
	bunDB, redisClient := verifyConnections(ctx, cfg, logger)
	defer bunDB.Close()
	defer redisClient.Close()

	if cfg.Migrations.AutoMigrate {
		runner := migrations.NewRunner(bunDB, migrations.OptionsFromConfig(cfg.Migrations), logger)
		if err := runner.RunMigrations(); err != nil {
			logger.Fatal("MIGRATION", fmt.Sprintf("Failed to run migrations: %v", err))
		}
	}

	verifier := newVerifier(ctx, cfg.Auth, redisClient, logger)
	m := metrics.NewDefault()

	var publisher domainPublisher = kafka.NoopPublisher{}
	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		logger.Info("KAFKA", fmt.Sprintf("Using Kafka brokers %v", cfg.Kafka.Brokers))
		producer = kafka.NewProducer(cfg.Kafka.Brokers, logger)
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, cfg.Kafka.Topics.All(), logger); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			logger.Info("KAFKA", "Required topics ensured successfully")
		}
		domain := kafka.NewDomainPublisher(producer, cfg.Kafka.Topics)
		domain.OnFailure = m.ObservePublishFailure
		publisher = domain
	} else {
		logger.Warn("KAFKA", "Kafka disabled, domain events are dropped")
	}

	ownerStore := &ownerdb.DB{Bun: bunDB}
	petStore := &petdb.DB{Bun: bunDB}
	eventStore := &eventdb.DB{Bun: bunDB}
	codes := qr.NewQRGenerator(cfg.Enrollment.PassSecretKey)
	counts := sse.NewEnrollmentCountEmitter()

	ownerService := owners.NewOwnerService(ownerStore)
	petService := pets.NewPetService(petStore, ownerService, logger)
	eventService := events.NewEventService(eventStore, ownerService, publisher, codes, logger, cfg.Server.PublicBaseURL, cfg.Enrollment.DefaultListMax)
	enrollmentService := enrollment.NewEnrollmentService(
		&enrolldb.DB{Bun: bunDB},
		petStore,
		eventStore,
		enrollredis.NewRedis(redisClient, cfg.Enrollment.LockTTL, logger),
		publisher,
		codes,
		logger,
	)
	enrollmentService.Counts = counts
	enrollmentService.Metrics = m
	reviewService := reviews.NewReviewService(&reviewdb.DB{Bun: bunDB}, eventStore, ownerService, publisher, logger)

	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled && cfg.Kafka.Reconcile {
		consumer = kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.EnrollmentCreated, cfg.Kafka.GroupID, logger)
		go func() {
			if err := consumer.Start(ctx, enrollmentService.HandleEnrollmentCreated); err != nil {
				logger.Error("KAFKA", fmt.Sprintf("Enrollment consumer exited: %v", err))
			}
		}()
	}

	logger.Info("REDIS", "Starting enrollment lock expiry subscription")
	enrollredis.SubscribeLockExpiry(ctx, redisClient, logger, func(ctx context.Context, eventID, _ string) {
		if _, _, err := enrollmentService.ReconcileCount(ctx, eventID); err != nil {
			logger.Error("ENROLL_LOCK", fmt.Sprintf("Reconcile after lock expiry failed for event %s: %v", eventID, err))
		}
	})

	ownerHandler := owner_api.NewHandler(ownerService, logger)
	petHandler := pet_api.NewHandler(petService, logger)
	eventHandler := event_api.NewHandler(eventService, logger)
	enrollmentHandler := enrollment_api.NewHandler(enrollmentService, logger)
	countsHandler := enrollment_api.NewSSEHandler(enrollmentService, counts, logger)
	reviewHandler := review_api.NewHandler(reviewService, logger)
	analyticsHandler := analytics_api.NewHandler(analytics.NewService(bunDB), logger)

	logger.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))
	r.Use(m.Middleware)

	r.Get("/healthz", healthHandler(bunDB, redisClient))
	r.Handle("/metrics", m.Handler())

	// --- Public Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.OptionalMiddleware(verifier, logger))

		r.Get("/api/events", eventHandler.ListEvents)
		r.Get("/api/events/{eventId}", eventHandler.GetEvent)
		r.Get("/api/events/{eventId}/qr", eventHandler.EventQR)
		r.Get("/api/events/{eventId}/reviews", reviewHandler.ListReviews)
		r.Get("/api/events/{eventId}/reviews/summary", reviewHandler.Summary)
		r.Get("/api/events/{eventId}/enrollments/stream", countsHandler.HandleEnrollmentCounts)
		logger.Info("ROUTER", "Public event routes registered under /api/events")
	})

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(verifier, logger))
		logger.Info("AUTH", "Bearer token middleware applied to protected API routes")

		r.Get("/api/me", ownerHandler.GetMe)
		r.Put("/api/me", ownerHandler.UpdateMe)
		r.Get("/api/me/events", eventHandler.ListMyEvents)

		r.Get("/api/pets", petHandler.ListPets)
		r.Post("/api/pets", petHandler.CreatePet)
		r.Get("/api/pets/{petId}", petHandler.GetPet)
		r.Delete("/api/pets/{petId}", petHandler.DeletePet)
		logger.Info("ROUTER", "Owner and pet routes registered under /api/me and /api/pets")

		r.Post("/api/events", eventHandler.CreateEvent)
		r.Put("/api/events/{eventId}", eventHandler.UpdateEvent)
		r.Delete("/api/events/{eventId}", eventHandler.DeleteEvent)
		r.Post("/api/events/{eventId}/enroll", enrollmentHandler.Enroll)
		r.Post("/api/events/{eventId}/reconcile", enrollmentHandler.Reconcile)
		r.Get("/api/events/{eventId}/enrollments", enrollmentHandler.Roster)
		r.Post("/api/events/{eventId}/passes/verify", enrollmentHandler.VerifyPass)
		r.Post("/api/events/{eventId}/reviews", reviewHandler.CreateReview)
		r.Get("/api/enrollments/{enrollmentId}/pass", enrollmentHandler.Pass)
		logger.Info("ROUTER", "Event, enrollment and review routes registered under /api/events")

		analyticsHandler.RegisterRoutes(r)
		logger.Info("ROUTER", "Organizer analytics routes registered")
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 Pet Events Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	cancelRoot()
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "✅ Pet Events Service shutdown complete")
	}

	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Consumer close: %v", err))
		}
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Producer close: %v", err))
		}
	}
}
