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

	"multirole-assistant/internal/api"
	"multirole-assistant/internal/config"
	"multirole-assistant/internal/core"
	"multirole-assistant/internal/llm"
	"multirole-assistant/internal/session"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if config.AppConfig.LogLevel == "DEBUG" {
		log.Println("Service starting in DEBUG mode")
	}
	if config.AppConfig.OpenRouterAPIKey == "" {
		log.Println("No process-wide OPENROUTER_API_KEY configured; sessions must supply their own key")
	}

	// Initialize completion client and services. Session state is
	// memory-resident only and evaporates on shutdown.
	completionClient := llm.NewClient(config.AppConfig.OpenRouterURL, config.AppConfig.OpenRouterAPIKey)
	chatService := core.NewChatService(completionClient)
	registry := session.NewRegistry()

	// Initialize API Handler and Router
	revealInterval := time.Duration(config.AppConfig.RevealIntervalMs) * time.Millisecond
	apiHandler := api.NewAPIHandler(registry, chatService, revealInterval)
	router := api.NewRouter(apiHandler)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:        serverAddr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// No write timeout: completion calls and the reveal stream can
		// run for minutes.
		IdleTimeout: 120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give active connections time to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting gracefully")
}
