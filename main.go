package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/katalogbuku/backend/config"
	"github.com/katalogbuku/backend/handlers"
	"github.com/katalogbuku/backend/middleware"
	"github.com/katalogbuku/backend/service"
	"github.com/katalogbuku/backend/store"
	"github.com/katalogbuku/backend/worker"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	setupLogger(cfg)

	ctx := context.Background()
	db, err := store.NewMongoDB(ctx, cfg.MongoURI, cfg.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("mongodb")
	}
	defer func() {
		if err := db.Disconnect(context.Background()); err != nil {
			log.Error().Err(err).Msg("mongodb disconnect")
		}
	}()

	ocrClient, err := service.NewOCRClient(service.OCRConfig{
		Endpoint:     cfg.AzureEndpoint,
		Key:          cfg.AzureKey,
		PollInterval: cfg.OCRPollInterval,
		MaxAttempts:  cfg.OCRMaxAttempts,
		CacheSize:    cfg.OCRCacheSize,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("ocr client")
	}

	extractor, err := service.NewExtractor(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		log.Fatal().Err(err).Msg("extractor")
	}
	defer extractor.Close()

	var scans *service.S3Service
	if cfg.S3Bucket != "" {
		scans, err = service.NewS3Service(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3AccessKeyID, cfg.S3SecretKey)
		if err != nil {
			log.Fatal().Err(err).Msg("s3")
		}
	} else {
		log.Info().Msg("AWS_S3_BUCKET not set; scan archiving disabled")
	}

	pool := worker.NewPool(worker.PoolConfig{
		Recognizer: ocrClient,
		Extractor:  extractor,
		Store:      db,
		QueueSize:  cfg.WorkerQueueSize,
		JobTimeout: cfg.JobTimeout,
		Logger:     log.With().Str("component", "worker").Logger(),
	})
	workerCtx, stopWorkers := context.WithCancel(ctx)
	pool.Start(workerCtx, cfg.WorkerCount)

	booksHandler := &handlers.BooksHandler{Store: db}
	exportHandler := &handlers.ExportHandler{Store: db}
	uploadHandler := &handlers.UploadHandler{
		Store:      db,
		Recognizer: ocrClient,
		Extractor:  extractor,
		Queue:      pool,
		MaxBytes:   cfg.MaxUploadMB * 1024 * 1024,
	}
	if scans != nil {
		booksHandler.Scans = scans
		uploadHandler.Scans = scans
	}

	r := chi.NewRouter()
	r.Use(middleware.AllowAll())
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		if cfg.JWTSecret != "" {
			authHandler := &handlers.AuthHandler{
				DB:           db,
				JWTSecret:    cfg.JWTSecret,
				DefaultEmail: cfg.AuthEmail,
				DefaultPass:  cfg.AuthPass,
			}
			r.Post("/auth/login", authHandler.Login)
			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(cfg.JWTSecret))
				registerAPI(r, booksHandler, exportHandler, uploadHandler)
			})
		} else {
			log.Warn().Msg("JWT_SECRET not set; API is open")
			registerAPI(r, booksHandler, exportHandler, uploadHandler)
		}
	})

	server := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	stopWorkers()
	pool.Stop()
}

func registerAPI(r chi.Router, books *handlers.BooksHandler, export *handlers.ExportHandler, upload *handlers.UploadHandler) {
	r.Get("/books", books.List)
	r.Post("/books", books.Create)
	r.Get("/books/export", export.Export)
	r.Post("/books/check-duplicate", books.CheckDuplicate)
	r.Get("/books/{id}", books.Get)
	r.Get("/books/{id}/scan", books.Scan)
	r.Put("/books/{id}", books.Update)
	r.Delete("/books/{id}", books.Delete)
	r.Post("/upload", upload.Upload)
	r.Post("/upload/async", upload.UploadAsync)
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
