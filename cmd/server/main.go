package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"marginalia/internal/anchor"
	"marginalia/internal/auth"
	"marginalia/internal/config"
	"marginalia/internal/domain/repositories"
	annotationRepo "marginalia/internal/domain/repositories/annotation"
	"marginalia/internal/handler"
	"marginalia/internal/highlight"
	"marginalia/internal/middleware"
	"marginalia/internal/repository/cache"
	"marginalia/internal/repository/memory"
	"marginalia/internal/repository/postgres"
	postgresAnnotation "marginalia/internal/repository/postgres/annotation"
	"marginalia/internal/service/annotation"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	logger, closeLog, err := config.NewLogger(cfg, "server")
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closeLog()
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"store", cfg.Store,
		"table_prefix", cfg.TablePrefix,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// JWT verifier for Supabase authentication; without one, requests run as DEV_USER_ID
	var jwtVerifier auth.JWTVerifier
	if cfg.SupabaseJWKSURL != "" {
		v, err := auth.NewJWTVerifier(ctx, cfg.SupabaseJWKSURL, logger)
		if err != nil {
			log.Fatalf("Failed to create JWT verifier: %v", err)
		}
		defer v.Close()
		jwtVerifier = v
	} else {
		if cfg.Environment == "prod" {
			log.Fatal("SUPABASE_URL is required in prod")
		}
		logger.Warn("no JWKS configured, authenticating every request as the dev user", "dev_user_id", cfg.DevUserID)
	}

	// Storage
	var (
		commentRepo annotationRepo.CommentRepository
		chapterRepo annotationRepo.ChapterRepository
		txManager   repositories.TransactionManager
		pinger      handler.Pinger
	)
	switch cfg.Store {
	case "memory":
		db := memory.Open()
		commentRepo = memory.NewCommentRepository(db)
		chapterRepo = memory.NewChapterRepository(db)
		txManager = memory.NewTransactionManager()
		logger.Warn("using in-memory store, comments are lost on restart")

	case "postgres":
		pool, err := postgres.CreateConnectionPool(ctx, cfg.SupabaseDBURL, logger)
		if err != nil {
			log.Fatalf("Failed to create connection pool: %v", err)
		}
		defer pool.Close()

		tables := postgres.NewTableNames(cfg.TablePrefix)
		if cfg.AutoSchema {
			if err := postgres.EnsureSchema(ctx, pool, tables, logger); err != nil {
				log.Fatalf("Failed to ensure schema: %v", err)
			}
		}

		repoConfig := &postgres.RepositoryConfig{
			Pool:   pool,
			Tables: tables,
			Logger: logger,
		}
		commentRepo = postgresAnnotation.NewCommentRepository(repoConfig)
		chapterRepo = postgresAnnotation.NewChapterRepository(repoConfig)
		txManager = postgres.NewTransactionManager(pool, logger)
		pinger = pool

	default:
		log.Fatalf("Unknown STORE %q (want postgres or memory)", cfg.Store)
	}

	// Optional comment list cache
	if cfg.RedisURL != "" {
		client, err := cache.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer client.Close()
		commentRepo = cache.NewCachedCommentRepository(commentRepo, client, cfg.TablePrefix, cfg.CacheTTL, logger)
		logger.Info("comment cache enabled", "ttl", cfg.CacheTTL)
	}

	// Anchoring
	styles, err := config.LoadHighlightStyles(cfg.HighlightStylesFile)
	if err != nil {
		log.Fatalf("Failed to load highlight styles: %v", err)
	}
	codec := anchor.NewCodec(logger, anchor.CodecOptions{
		ContextWindow:   cfg.ContextWindow,
		FuzzyRelocation: cfg.FuzzyRelocation,
	})
	engine := highlight.NewEngine(styles, logger)

	// Services
	sanitizer := annotation.NewHTMLSanitizer()
	commentService := annotation.NewCommentService(commentRepo, txManager, logger)
	chapterService := annotation.NewChapterService(chapterRepo, sanitizer, logger)

	sessions := annotation.NewSessionRegistry(annotation.SessionDeps{
		Comments:  commentService,
		Chapters:  chapterService,
		Codec:     codec,
		Engine:    engine,
		Sanitizer: sanitizer,
		Logger:    logger,
	})
	go sessions.Run(ctx, time.Minute, cfg.SessionIdleTTL)

	// Handlers
	healthHandler := handler.NewHealthHandler(pinger, logger)
	chapterHandler := handler.NewChapterHandler(chapterService, logger)
	commentHandler := handler.NewCommentHandler(commentService, sessions, logger)
	annotationHandler := handler.NewAnnotationHandler(sessions, logger)

	logger.Info("services initialized")

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", healthHandler.HealthCheck)

	// Chapter content
	mux.HandleFunc("GET /api/courses/{courseId}/chapters/{chapter}", chapterHandler.GetChapter)
	mux.HandleFunc("PUT /api/courses/{courseId}/chapters/{chapter}", chapterHandler.PutChapter)

	// Comments
	mux.HandleFunc("GET /api/courses/{courseId}/chapters/{chapter}/comments", commentHandler.ListComments)
	mux.HandleFunc("POST /api/courses/{courseId}/chapters/{chapter}/comments", commentHandler.CreateComment)
	mux.HandleFunc("GET /api/courses/{courseId}/chapters/{chapter}/comments/{id}", commentHandler.GetComment)
	mux.HandleFunc("PATCH /api/courses/{courseId}/chapters/{chapter}/comments/{id}", commentHandler.UpdateComment)
	mux.HandleFunc("DELETE /api/courses/{courseId}/chapters/{chapter}/comments/{id}", commentHandler.DeleteComment)

	// Reading session
	mux.HandleFunc("GET /api/courses/{courseId}/chapters/{chapter}/annotated", annotationHandler.OpenChapter)
	mux.HandleFunc("POST /api/courses/{courseId}/chapters/{chapter}/selection", annotationHandler.UpdateSelection)
	mux.HandleFunc("DELETE /api/courses/{courseId}/chapters/{chapter}/selection", annotationHandler.ClearSelection)
	mux.HandleFunc("POST /api/courses/{courseId}/chapters/{chapter}/highlights/{highlightId}/activate", annotationHandler.ActivateHighlight)
	mux.HandleFunc("POST /api/courses/{courseId}/chapters/{chapter}/highlights/{highlightId}/hover", annotationHandler.HoverHighlight)
	mux.HandleFunc("DELETE /api/courses/{courseId}/chapters/{chapter}/highlights/active", annotationHandler.DeactivateHighlight)

	// Build middleware chain
	var h http.Handler = mux

	// Order: CORS → Recovery → Auth → Routes
	h = middleware.AuthMiddleware(jwtVerifier, cfg.DevUserID, logger)(h)
	h = middleware.Recovery(logger)(h)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
	logger.Info("server stopped")
}
