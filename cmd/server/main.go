package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/Linh3694/frappe-erp-sub001/internal/config"
	"github.com/Linh3694/frappe-erp-sub001/internal/db"
	"github.com/Linh3694/frappe-erp-sub001/internal/importer"
	"github.com/Linh3694/frappe-erp-sub001/internal/middleware"
	"github.com/Linh3694/frappe-erp-sub001/internal/repository"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	if err := db.RunMigrations(cfg.Database, "./migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	recordStore := repository.NewRecordStore(conn.Pool)
	jobRepo := repository.NewImportJobRepository(conn.Pool)
	fileStore, err := repository.NewFileStore(conn.Pool, cfg.Import.FileDir)
	if err != nil {
		log.Fatalf("Failed to initialize file store: %v", err)
	}

	importService := importer.NewService(
		jobRepo,
		fileStore,
		recordStore,
		importer.WithBatchSize(cfg.Import.BatchSize),
		importer.WithJobTimeout(cfg.Import.JobTimeout),
	)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	importHandler := middleware.LoggingMiddleware(
		middleware.CampusScopeMiddleware(importer.NewHTTPHandler(importService)),
	)

	mux := http.NewServeMux()
	mux.Handle("/imports", corsHandler.Handler(importHandler))
	mux.Handle("/imports/", corsHandler.Handler(importHandler))
	mux.Handle("/files/", corsHandler.Handler(importHandler))

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting import server on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
