package main

import (
	"collaborative-canvas-backend/internal/access"
	"collaborative-canvas-backend/internal/auth"
	"collaborative-canvas-backend/internal/canvas"
	"collaborative-canvas-backend/internal/comment"
	"collaborative-canvas-backend/internal/config"
	"collaborative-canvas-backend/internal/db"
	"collaborative-canvas-backend/internal/middleware"
	syncclient "collaborative-canvas-backend/internal/sync"
	"collaborative-canvas-backend/internal/worker"
	"collaborative-canvas-backend/redis"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Connect to database (bounded retry; abort when degraded)
	database, err := db.Connect(cfg)
	if err != nil {
		log.Fatalf("error connecting to db: %v", err)
	}
	defer db.Close(database)

	// Migrate database schema
	db.Migrate(database)

	// Initialize Redis (optional; the service runs cache-less without it)
	cache := redis.New(cfg.RedisAddress)

	// Background workers for sync notifications and snapshot flushes
	pool := worker.NewWorkerPool(4)

	// Initialize repositories
	accessRepo := access.NewRepository(database)
	canvasRepo := canvas.NewRepository(database)
	commentRepo := comment.NewRepository(database)

	// Initialize services
	accessService := access.NewService(accessRepo)
	reconciler := canvas.NewReconciler(canvasRepo, accessService)
	commentService := comment.NewService(commentRepo, reconciler)
	syncClient := syncclient.NewSyncClient(cfg.SyncServerAddress)
	canvasService := canvas.NewService(
		canvasRepo,
		accessService,
		reconciler,
		commentService,
		syncClient,
		cache,
		pool,
	)

	// Initialize handlers
	canvasHandler := canvas.NewHandler(canvasService, cache)
	commentHandler := comment.NewHandler(commentService)

	authMiddleware := &middleware.Auth{
		Verifier:       auth.NewVerifier(cfg.JWTSecret),
		InternalSecret: cfg.InternalSecret,
	}

	// Initialize Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.Use(middleware.ErrorHandler())

	// cors setting
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
	}
	if cfg.Environment == "development" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = []string{cfg.FrontendAddress}
	}
	router.Use(cors.New(corsConfig))

	authed := router.Group("/", authMiddleware.AuthMiddleware())
	authed.POST("/canvases", canvasHandler.Create)
	authed.GET("/canvases", canvasHandler.ShowAccessible)
	authed.GET("/canvases/:id", canvasHandler.Show)
	authed.PUT("/canvases/:id", canvasHandler.Save)
	authed.DELETE("/canvases/:id", canvasHandler.Delete)
	authed.GET("/canvases/:id/collaborators", canvasHandler.ListCollaborators)
	authed.POST("/canvases/:id/collaborators", canvasHandler.Share)
	authed.POST("/canvases/:id/collaborators/batch", canvasHandler.ShareBulk)
	authed.DELETE("/canvases/:id/collaborators/:userId", canvasHandler.RemoveCollaborator)
	authed.GET("/canvases/:id/comments", commentHandler.ListByCanvas)
	authed.POST("/canvases/:id/comments", commentHandler.Upsert)
	authed.DELETE("/canvases/:id/comments/:commentId", commentHandler.Delete)

	// server-to-server routes (sync engine, maintenance)
	internal := router.Group("/internal", authMiddleware.InternalAuthMiddleware())
	internal.GET("/canvases/:id/permission", canvasHandler.ShowUserRole)
	internal.GET("/canvases/:id/snapshot", canvasHandler.ShowSnapshot)
	internal.PUT("/canvases/:id/snapshot", canvasHandler.SaveSnapshot)
	internal.POST("/canvases/:id/activity", canvasHandler.MarkActive)
	internal.POST("/maintenance/reconcile-grants", canvasHandler.ReconcileGrants)

	// Periodic snapshot flush on its own timer, independent of requests
	flusher := canvas.NewFlusher(canvasService, syncClient, cache, pool, cfg.SnapshotInterval)
	flusher.Start()

	// Server configuration
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router.Handler(),
	}

	// Start server
	go func() {
		log.Printf("Server listening on port %s", cfg.ServerPort)
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Println("Server shutdown error:", err)
	}

	flusher.Stop()
	pool.Shutdown()

	log.Println("Server shutdown complete")
}
