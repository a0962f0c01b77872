package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	analyticsHttp "user-analytics-service/internal/analytics/adapters/http/fiber"
	analyticsEngine "user-analytics-service/internal/analytics/core/engine"
	analyticsUsecase "user-analytics-service/internal/analytics/core/usecase"
	eventsHttp "user-analytics-service/internal/events/adapters/http/fiber"
	eventsMemory "user-analytics-service/internal/events/adapters/memory"
	eventsMongo "user-analytics-service/internal/events/adapters/mongo"
	eventsPostgres "user-analytics-service/internal/events/adapters/postgres"
	eventsUsecase "user-analytics-service/internal/events/core/usecase"
	"user-analytics-service/internal/events/core/ports"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	fiberSwagger "github.com/swaggo/fiber-swagger"

	_ "user-analytics-service/docs"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	ctx := context.Background()

	store, cleanup, err := openStore(ctx)
	if err != nil {
		logrus.WithError(err).Fatal("failed to open event store")
	}
	defer cleanup()

	// Use cases
	eventUC := eventsUsecase.NewEventUseCase(store)
	analyticsUC := analyticsUsecase.NewGetAnalyticsUseCase(analyticsEngine.New(store))

	// HTTP (Fiber) app + handlers
	app := fiber.New()

	eventsHandler := eventsHttp.NewEventHandler(eventUC)
	app.Post("/events", eventsHandler.CreateEvent)
	app.Post("/events/batch", eventsHandler.CreateEventsBatch)
	app.Get("/events/filter", eventsHandler.GetEventsByFilter)
	app.Get("/events/date-range", eventsHandler.GetEventsByDateRange)

	analyticsHandler := analyticsHttp.NewAnalyticsHandler(analyticsUC)
	app.Get("/analytics/event-types", analyticsHandler.GetEventsCountByType)
	app.Get("/analytics/event-types-per-user", analyticsHandler.GetEventsCountByTypePerUser)
	app.Get("/analytics/session-durations", analyticsHandler.GetSessionDurations)
	app.Get("/analytics/session-timelines", analyticsHandler.GetSessionTimelines)
	app.Get("/analytics/devices", analyticsHandler.GetDeviceCounts)
	app.Get("/analytics/pages", analyticsHandler.GetPageCounts)
	app.Get("/analytics/top-pages", analyticsHandler.GetTopPages)
	app.Get("/analytics/navigation-flows", analyticsHandler.GetNavigationFlows)

	// Swagger
	app.Get("/docs/*", fiberSwagger.WrapHandler)

	addr := getenv("HTTP_ADDR", ":8080")

	// Graceful shutdown
	go func() {
		if err := app.Listen(addr); err != nil {
			logrus.WithError(err).Error("fiber stopped")
		}
	}()

	logrus.WithField("addr", addr).Info("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit

	logrus.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logrus.WithError(err).Error("fiber shutdown error")
	}

	logrus.Info("server exiting")
}

// openStore selects the store backend from STORE_BACKEND: mongo (default),
// postgres, or memory (volatile, for local development).
func openStore(ctx context.Context) (ports.EventStorePort, func(), error) {
	backend := getenv("STORE_BACKEND", "mongo")

	switch backend {
	case "mongo":
		uri := getenv("MONGO_URI", "mongodb://localhost:27017")
		dbName := getenv("MONGO_DB", "analytics")

		client, err := eventsMongo.Connect(ctx, uri)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(disconnectCtx); err != nil {
				logrus.WithError(err).Error("mongodb disconnect error")
			}
		}
		return eventsMongo.NewEventRepository(client.Database(dbName)), cleanup, nil

	case "postgres":
		dsn := os.Getenv("POSTGRES_DSN")
		if dsn == "" {
			logrus.Fatal("POSTGRES_DSN is not set")
		}

		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, nil, err
		}
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)

		if err := db.Ping(); err != nil {
			db.Close()
			return nil, nil, err
		}
		logrus.Info("connected to postgres")
		return eventsPostgres.NewEventRepository(eventsPostgres.NewSQLDB(db)), func() { db.Close() }, nil

	case "memory":
		logrus.Warn("using volatile in-memory store")
		return eventsMemory.NewEventRepository(), func() {}, nil

	default:
		logrus.WithField("backend", backend).Fatal("unknown STORE_BACKEND")
		return nil, nil, nil
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
