package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/HR-AR/Project-Conductor-sub007/internal/config"
	"github.com/HR-AR/Project-Conductor-sub007/internal/database"
	"github.com/HR-AR/Project-Conductor-sub007/internal/mapper"
	"github.com/HR-AR/Project-Conductor-sub007/internal/queue"
	"github.com/HR-AR/Project-Conductor-sub007/internal/remote"
	"github.com/HR-AR/Project-Conductor-sub007/internal/repositories"
	"github.com/HR-AR/Project-Conductor-sub007/internal/services"
	transport "github.com/HR-AR/Project-Conductor-sub007/internal/transport/http"
)

func main() {
	ctx := context.Background()

	godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database connections
	postgresPool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create postgres pool: %v", err)
	}
	defer postgresPool.Close()

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to create redis client: %v", err)
	}
	defer redisClient.Close()

	// Repositories
	mappingRepo := repositories.NewPostgresSyncMappingRepository(postgresPool)
	jobRepo := repositories.NewPostgresSyncJobRepository(postgresPool)
	conflictRepo := repositories.NewPostgresSyncConflictRepository(postgresPool)
	documentRepo := repositories.NewPostgresDocumentRepository(postgresPool)
	fieldMappingRepo := repositories.NewCachedFieldMappingRepository(
		repositories.NewPostgresFieldMappingRepository(postgresPool),
		redisClient,
		cfg.RuleCacheTTL,
	)

	// Engine
	remoteClient := remote.NewClient(cfg.RemoteBaseURL, cfg.RemoteToken, cfg.RemoteTimeout)
	fieldMapper := mapper.New(fieldMappingRepo)
	syncService := services.NewSyncService(mappingRepo, jobRepo, conflictRepo, documentRepo, remoteClient, fieldMapper)
	conflictService := services.NewConflictService(conflictRepo, mappingRepo, documentRepo, remoteClient, cfg.ConflictRetention)

	jobQueue := queue.New(jobRepo, syncService, cfg.SyncWorkers)
	syncService.SetDispatcher(jobQueue)

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	jobQueue.Start(workerCtx)

	// Periodic conflict retention cleanup
	go func() {
		ticker := time.NewTicker(12 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				if _, err := conflictService.Cleanup(workerCtx); err != nil {
					log.Printf("conflict cleanup failed: %v", err)
				}
			}
		}
	}()

	// Scheduled auto-sync sweep over enabled mappings
	go func() {
		ticker := time.NewTicker(cfg.AutoSyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				if _, err := syncService.SyncAutoMappings(workerCtx, "scheduler"); err != nil {
					log.Printf("scheduled sync failed: %v", err)
				}
			}
		}
	}()

	// Initialize HTTP Server
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	// Health check endpoints
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	handler := transport.NewHandler(syncService, conflictService, cfg.JWTSecret)
	handler.Mount(router)

	// Start Server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	// graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)

		if err := jobQueue.Stop(); err != nil {
			log.Printf("job queue stop: %v", err)
		}
	}()

	log.Printf("Starting server on port %s", cfg.ServerPort)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server stopped gracefully")
}
