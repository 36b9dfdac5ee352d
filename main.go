package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	v1 "github.com/absentia-hr/explainer/api/v1"
	"github.com/absentia-hr/explainer/config"
	"github.com/absentia-hr/explainer/internal/background"
	"github.com/absentia-hr/explainer/internal/cache"
	"github.com/absentia-hr/explainer/internal/elasticsearch"
	"github.com/absentia-hr/explainer/internal/explain"
	"github.com/absentia-hr/explainer/internal/regression"
	"github.com/absentia-hr/explainer/internal/store"
)

func main() {
	log.Println("Starting Absenteeism Explanation Service...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Load the model artifact
	model, err := regression.Load(cfg.Model.Path)
	if err != nil {
		log.Fatalf("Failed to load model: %v", err)
	}
	log.Printf("Loaded model version %s (%d features)", model.Version, model.Dim())

	// Build the explanation engine over a fresh background sample
	engine, err := buildEngine(model, cfg.Explain.SampleSize)
	if err != nil {
		log.Fatalf("Failed to build explanation engine: %v", err)
	}

	// Initialize the cache store, falling back to process memory when
	// Redis is unreachable
	var cacheStore store.Store
	redisStore, err := store.NewRedisStore(cfg.RedisURL)
	if err != nil {
		log.Printf("Warning: failed to initialize Redis store: %v", err)
		log.Println("Falling back to in-memory explanation cache")
		cacheStore = store.NewMemoryStore()
	} else {
		cacheStore = redisStore
	}
	defer cacheStore.Close()

	explanationCache := cache.New(cacheStore, cfg.CacheTTL())

	// Initialize Elasticsearch audit logger
	esLogger, err := elasticsearch.NewLogger(
		cfg.ElasticsearchAddrs,
		cfg.ElasticsearchUser,
		cfg.ElasticsearchPass,
		cfg.ElasticsearchIndex,
	)
	if err != nil {
		log.Printf("Warning: failed to initialize Elasticsearch logger: %v", err)
		log.Println("Explanation audit logging will be disabled")
		esLogger = nil
	}

	// Initialize API handlers with all components
	handler := v1.NewHandler(engine, explanationCache, esLogger, v1.Options{
		SurrogateSamples:  cfg.Explain.SurrogateSamples,
		SurrogateJitter:   cfg.Explain.SurrogateJitter,
		SurrogateFeatures: cfg.Explain.SurrogateFeatures,
	})

	// Watch the model artifact and hot-swap the engine on retrains
	served := model.Version
	watcher, err := regression.NewWatcher(cfg.Model.Path, func(m *regression.Model) {
		fresh, err := buildEngine(m, cfg.Explain.SampleSize)
		if err != nil {
			log.Printf("Warning: failed to rebuild engine for model %s: %v", m.Version, err)
			return
		}

		// Drop the replaced version's cached summary
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := explanationCache.Invalidate(ctx, cache.GlobalKey(served)); err != nil {
			log.Printf("Warning: failed to invalidate cached explanation: %v", err)
		}
		served = m.Version

		handler.SwapEngine(fresh)
		log.Printf("Model reloaded: now serving version %s", m.Version)
	})
	if err != nil {
		log.Fatalf("Failed to create model watcher: %v", err)
	}
	if err := watcher.Start(); err != nil {
		log.Fatalf("Failed to start model watcher: %v", err)
	}
	defer watcher.Stop()

	// Initialize Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	handler.RegisterRoutes(router)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Create shutdown context with 5 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Attempt graceful shutdown
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited successfully")
}

// buildEngine draws a background sample from the model's schema and builds
// an explanation engine around it. The sample lives as long as the engine;
// a reload draws a new one.
func buildEngine(model *regression.Model, sampleSize int) (*explain.Engine, error) {
	sampler := background.NewSampler(model.Schema, uint64(time.Now().UnixNano()))
	sample, err := sampler.Sample(sampleSize)
	if err != nil {
		return nil, err
	}
	return explain.NewEngine(model, sample)
}
