package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/matrixbuild/materials_shop/internal/config"
	"github.com/matrixbuild/materials_shop/internal/es"
	"github.com/matrixbuild/materials_shop/internal/handlers"
	"github.com/matrixbuild/materials_shop/internal/logging"
	"github.com/matrixbuild/materials_shop/internal/middleware/auth"
	"github.com/matrixbuild/materials_shop/internal/models"
	"github.com/matrixbuild/materials_shop/internal/mykafka"
	httpserver "github.com/matrixbuild/materials_shop/internal/transport/http"
	loggingmw "github.com/matrixbuild/materials_shop/pkg/middleware/logging"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("db init: %v", err)
	}

	logger := logging.New(configuration.LOG_LEVEL).With("service", "materials_shop")
	slog.SetDefault(logger)

	jwtSecret := []byte(configuration.JWT_SECRET)

	var producer *mykafka.Producer
	if configuration.KAFKA_ADDRESS != "" {
		producer, err = mykafka.NewProducer([]string{configuration.KAFKA_ADDRESS})
		if err != nil {
			log.Fatalf("kafka init: %v", err)
		}
	} else {
		log.Println("KAFKA_ADDRESS not set, event publishing disabled")
	}

	var searchHandler *handlers.SearchHandler
	if configuration.ES_URL != "" {
		esClient, err := es.NewClient(configuration)
		if err != nil {
			log.Fatalf("elasticsearch init: %v", err)
		}
		searchHandler = &handlers.SearchHandler{ES: esClient, Index: "catalog"}
	} else {
		log.Println("ES_URL not set, search disabled")
	}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{configuration.CORS_ORIGIN},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
	}))

	catalogHandlers := make(map[models.Kind]*handlers.CatalogHandler, len(models.Kinds))
	for _, kind := range models.Kinds {
		catalogHandlers[kind] = &handlers.CatalogHandler{DB: db, Producer: producer, Kind: kind}
	}

	deps := httpserver.Deps{
		Guard:           &auth.Guard{DB: db, JWTSecret: jwtSecret},
		AuthHandler:     &handlers.AuthHandler{DB: db, JWTSecret: jwtSecret, AdminKey: configuration.ADMIN_KEY, Producer: producer},
		UserHandler:     &handlers.UserHandler{DB: db, JWTSecret: jwtSecret, Producer: producer},
		CatalogHandlers: catalogHandlers,
		GalleryHandler:  &handlers.GalleryHandler{DB: db, Producer: producer},
		OrderHandler:    &handlers.OrderHandler{DB: db, Producer: producer},
		SearchHandler:   searchHandler,
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":" + configuration.SERVER_PORT,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	}

	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Printf("kafka close error: %v", err)
		}
	}

	log.Println("shutdown complete")
}
