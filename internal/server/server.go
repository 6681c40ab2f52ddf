// Package server assembles the stores, services and HTTP stack from config.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/repohub/repohub-backend/internal/auth"
	"github.com/repohub/repohub-backend/internal/config"
	"github.com/repohub/repohub-backend/internal/database"
	"github.com/repohub/repohub-backend/internal/handlers"
	"github.com/repohub/repohub-backend/internal/logging"
	"github.com/repohub/repohub-backend/internal/mailer"
	"github.com/repohub/repohub-backend/internal/middleware"
	"github.com/repohub/repohub-backend/internal/ratelimit"
	"github.com/repohub/repohub-backend/internal/routes"
	"github.com/repohub/repohub-backend/internal/services"
	"github.com/repohub/repohub-backend/internal/storage"
	"github.com/repohub/repohub-backend/internal/store"
	"github.com/repohub/repohub-backend/internal/store/memstore"
)

// Server owns every long-lived connection of the process.
type Server struct {
	cfg     *config.Config
	log     logging.Logger
	handler http.Handler

	mongo *mongo.Client
	redis *redis.Client
}

// New connects the backing services and builds the router. Background
// workers started here stop when ctx is cancelled.
func New(ctx context.Context, cfg *config.Config, log logging.Logger) (*Server, error) {
	s := &Server{cfg: cfg, log: log}

	var db *mongo.Database
	var stores store.Stores
	if cfg.StoreBackend == "memory" {
		stores = memstore.New()
		log.Warn(ctx, "⚠️  Using in-memory stores; data is lost on restart")
	} else {
		log.Info(ctx, "Connecting to MongoDB...", "uri", database.MaskURI(cfg.MongoURI))
		client, mdb, err := database.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		s.mongo, db = client, mdb
		stores = store.NewMongoStores(db)
		log.Info(ctx, "✅ Connected to MongoDB", "db", db.Name())

		if err := database.EnsureIndexes(ctx, db); err != nil {
			log.Warn(ctx, "⚠️  failed to ensure MongoDB indexes", "err", err)
		} else {
			log.Info(ctx, "✅ MongoDB indexes ensured")
		}
	}

	if cfg.RedisURI != "" {
		client, err := database.ConnectRedis(ctx, cfg.RedisURI)
		if err != nil {
			log.Warn(ctx, "⚠️  Redis unavailable, continuing without it", "err", err)
		} else {
			s.redis = client
			log.Info(ctx, "✅ Connected to Redis")
		}
	}

	blobs, err := buildStorage(ctx, cfg, db, log)
	if err != nil {
		s.Close()
		return nil, err
	}

	signer := auth.NewTokenSigner(cfg.JWTSecret, cfg.SessionTTL)
	limiter := ratelimit.NewLimiter(s.resendStore(ctx, db), ratelimit.Policy{
		Window:       cfg.ResendWindow,
		MaxPerWindow: cfg.ResendMaxAttempts,
		MinInterval:  cfg.ResendMinInterval,
	})

	hub := services.NewNotificationHub(s.redis, log)
	hub.Start(ctx)
	notifications := services.NewNotificationService(stores.Notifications, hub, log)

	authSvc := services.NewAuthService(stores, limiter, mailer.New(cfg.SMTP, log), signer, services.AuthConfig{
		AppName:       cfg.AppName,
		FrontendURL:   cfg.FrontendURL,
		TwoFATTL:      cfg.TwoFATTL,
		ResetTokenTTL: cfg.ResetTokenTTL,
	}, log)
	membership := services.NewMembershipService(stores, notifications, cfg.InvitationTTL, log)
	files := services.NewFileService(stores, blobs, cfg.Storage.MaxUploadBytes, log)
	users := services.NewUserService(stores.Users)

	res := handlers.NewResponder(log, cfg.IsDevelopment())
	authn := middleware.NewAuthenticator(signer)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	if cfg.IsProduction() {
		for _, mw := range middleware.ProductionSecurity(ctx, cfg.AllowedHost) {
			r.Use(mw)
		}
		log.Info(ctx, "✅ Production security enabled (security headers, host check, per-IP + credential rate limiting)")
	} else if s.redis != nil {
		r.Use(middleware.NewRedisRateLimiter(s.redis, log).Handler)
	}

	routes.SetupRoutes(r, routes.Handlers{
		Auth:          handlers.NewAuthHandler(authSvc, res),
		Repositories:  handlers.NewRepositoryHandler(membership, files, res),
		Invitations:   handlers.NewInvitationHandler(membership, res),
		Applications:  handlers.NewApplicationHandler(membership, res),
		Files:         handlers.NewFileHandler(files, cfg.Storage.MaxUploadBytes, res),
		Notifications: handlers.NewNotificationHandler(notifications, hub, authn, res),
		Users:         handlers.NewUserHandler(users, res),
	}, authn)

	s.handler = r
	return s, nil
}

// resendStore picks the attempt log. Missing backends fall back to memory.
func (s *Server) resendStore(ctx context.Context, db *mongo.Database) ratelimit.Store {
	switch {
	case s.cfg.ResendStore == "redis" && s.redis != nil:
		return ratelimit.NewRedisStore(s.redis, ratelimit.RetentionTTL)
	case s.cfg.ResendStore == "mongo" && db != nil:
		return ratelimit.NewMongoStore(db)
	}
	if s.cfg.ResendStore != "memory" {
		s.log.Warn(ctx, "resend store unavailable, using memory", "store", s.cfg.ResendStore)
	}
	mem := ratelimit.NewMemoryStore(ratelimit.RetentionTTL)
	mem.StartJanitor(ctx, 10*time.Minute)
	return mem
}

func buildStorage(ctx context.Context, cfg *config.Config, db *mongo.Database, log logging.Logger) (*storage.Storage, error) {
	var primary storage.ObjectStorage
	var err error
	switch cfg.Storage.Backend {
	case "s3":
		primary, err = storage.NewS3Client(ctx, cfg.Storage.S3)
	case "minio":
		primary, err = storage.NewMinioClient(cfg.Storage.Minio)
	case "gcs":
		primary, err = storage.NewGCSClient(ctx, cfg.Storage.GCS)
	case "cloudinary":
		primary, err = storage.NewCloudinaryClient(cfg.Storage.Cloudinary)
	case "gridfs", "":
		if db == nil {
			primary = storage.NewMemoryBackend()
			break
		}
		primary, err = storage.NewGridFSClient(db, cfg.Storage.GridFSBucket)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s storage: %w", cfg.Storage.Backend, err)
	}

	var extra []storage.ObjectStorage
	if db != nil && primary.Scheme() != "gridfs" {
		// Keep files written before a backend switch readable.
		if g, err := storage.NewGridFSClient(db, cfg.Storage.GridFSBucket); err == nil {
			extra = append(extra, g)
		}
	}
	blobs := storage.NewStorage(primary, extra...)
	if err := blobs.EnsureBucket(ctx); err != nil {
		log.Warn(ctx, "⚠️  failed to ensure storage bucket", "scheme", blobs.Scheme(), "err", err)
	}
	log.Info(ctx, "✅ File storage ready", "scheme", blobs.Scheme())
	return blobs, nil
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is done, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "🚀 RepoHub backend running", "addr", srv.Addr, "env", s.cfg.Environment)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s.log.Info(shutdownCtx, "shutting down")
	return srv.Shutdown(shutdownCtx)
}

// Close releases the database connections.
func (s *Server) Close() {
	ctx := context.Background()
	if err := database.DisconnectRedis(s.redis); err != nil {
		s.log.Warn(ctx, "redis disconnect failed", "err", err)
	}
	if err := database.Disconnect(s.mongo); err != nil {
		s.log.Warn(ctx, "mongo disconnect failed", "err", err)
	}
}
