package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskapi/internal/server"
	db "taskapi/repository/db"
	inmemory "taskapi/repository/inmemory"
)

func main() {
	log.Println("Starting task service...")

	cfg := server.ReadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[ERROR] Invalid configuration: %v", err)
	}

	var userRepo server.UserRepository
	var taskRepo server.TaskRepository
	var dbStorage *db.Storage

	if err := db.Migration(cfg.DBStr, cfg.MigratePath); err != nil {
		log.Println("[WARN] Failed to apply migrations:", err)
	} else {
		log.Println("[SUCCESS] Migrations applied")
	}

	dbStorage, err := db.NewStorage(cfg.DBStr)
	if err != nil {
		log.Println("[WARN] Database unreachable, falling back to in-memory storage:", err)
		inmem := inmemory.NewStorage()
		userRepo = inmem
		taskRepo = inmem
		dbStorage = nil
	} else {
		userRepo = dbStorage
		taskRepo = dbStorage
	}

	api := server.NewTaskAPI(userRepo, taskRepo, cfg)
	if api == nil {
		log.Fatal("[ERROR] Failed to initialize the API")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("Service listening on %s:%d", cfg.Addr, cfg.Port)
		if err := api.Start(); err != nil {
			serverErr <- err
		}
	}()

	select {
	case sig := <-sigChan:
		log.Printf("[INFO] Received signal %v, shutting down gracefully...", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := api.Shutdown(shutdownCtx); err != nil {
			log.Printf("[ERROR] Graceful shutdown failed: %v", err)
		} else {
			log.Println("[SUCCESS] Graceful shutdown complete")
		}

		if dbStorage != nil {
			if err := dbStorage.Close(shutdownCtx); err != nil {
				log.Printf("[ERROR] Failed to close the database connection: %v", err)
			}
		}

	case err := <-serverErr:
		log.Printf("[ERROR] Server error: %v", err)
	}

	log.Println("Service stopped")
}
