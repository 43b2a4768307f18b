package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/treelog-io/treelog/pkg/config"
	"github.com/treelog-io/treelog/pkg/filter"
	"github.com/treelog-io/treelog/pkg/model"
)

func main() {
	configPath := flag.String("config", "", "Path to logging config YAML (optional)")
	flag.Parse()

	// 1. Load logging configuration
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}

	// 2. Register filters before assembly so config can reference them
	filters := filter.NewRegistry()
	if err := filters.Register("no-health-checks", func(rec *model.Record) bool {
		return !strings.Contains(rec.Message, "/health")
	}); err != nil {
		log.Fatalf("register filter: %v", err)
	}

	// 3. Assemble and activate the engine
	eng, err := config.Build(cfg, filters)
	if err != nil {
		log.Fatalf("logging configuration: %v", err)
	}

	// 4. Setup Router
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(requestContext)

	handler := NewGreetingHandler(eng)
	r.Get("/hello", handler.HandleHello)
	r.Get("/hello/{name}", handler.HandleHello)
	r.Get("/health", handler.HandleHealth)
	r.Get("/status", HandleStatus(eng))

	// 5. Start Server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{Addr: ":" + port, Handler: r}

	access := eng.Logger("greeting.http")
	go func() {
		access.Infof(context.Background(), "listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// 6. Graceful Shutdown: stop accepting, then drain the log engine
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	access.Infof(context.Background(), "server stopped, draining log handlers")
	if err := eng.Shutdown(ctx); err != nil {
		log.Printf("engine shutdown: %v", err)
	}
}
