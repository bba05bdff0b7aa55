package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/app"
)

const shutdownTimeout = 10 * time.Second

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to start: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		a.Log.Info("Server listening", "port", port)
		serveErr <- a.Run(":" + port)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			a.Log.Error("Server failed", "error", err)
		}
	case <-ctx.Done():
		a.Log.Info("Shutdown signal received, draining requests")
		shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.Shutdown(shCtx); err != nil {
			a.Log.Error("Shutdown failed", "error", err)
		}
		<-serveErr
	}
}
