package main

import (
	"context"
	"database/sql"
	"math/rand"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	eventsMongo "user-analytics-service/internal/events/adapters/mongo"
	eventsPostgres "user-analytics-service/internal/events/adapters/postgres"
	"user-analytics-service/internal/events/core/ports"
	"user-analytics-service/internal/events/core/usecase"
)

const seedCount = 1000

var (
	eventTypes = []string{"page_view", "signup", "checkout", "add_to_cart", "logout", "click"}
	devices    = []string{"mobile", "tablet", "desktop"}
	urls       = []string{"/home", "/dashboard", "/checkout", "/profile", "/product-detail"}
	referrers  = []string{"/home", "/signin", "/", "signup"}
	browsers   = []string{"Chrome", "Edge", "Firefox", "Opera", "Safari", "Chromium", "Brave"}
	users      = []string{"uid_111111", "uid_222222", "uid_333333", "uid_555555", "uid_666666"}
	sessions   = []string{"sid_111111", "sid_222222", "sid_333333", "sid_444444", "sid_555555"}
)

// Populates the store with randomly generated events over the last 10 days.
func main() {
	_ = godotenv.Load()

	ctx := context.Background()

	store, cleanup, err := openStore(ctx)
	if err != nil {
		logrus.WithError(err).Fatal("failed to open event store")
	}
	defer cleanup()

	uc := usecase.NewEventUseCase(store)

	now := time.Now().UTC()
	inputs := make([]usecase.CreateEventInput, seedCount)
	for i := range inputs {
		ts := now.Add(-time.Duration(rand.Int63n(int64(10 * 24 * time.Hour))))
		inputs[i] = usecase.CreateEventInput{
			UserID:    pick(users),
			SessionID: pick(sessions),
			EventType: pick(eventTypes),
			Timestamp: ts.Format(time.RFC3339),
			Metadata: map[string]any{
				"url":      pick(urls),
				"referrer": pick(referrers),
				"device":   pick(devices),
				"browser":  pick(browsers),
			},
		}
	}

	created, err := uc.CreateEventsBatch(ctx, inputs)
	if err != nil {
		logrus.WithError(err).Fatal("seed failed")
	}

	logrus.WithField("count", len(created)).Info("events created successfully")
}

func pick(pool []string) string {
	return pool[rand.Intn(len(pool))]
}

func openStore(ctx context.Context) (ports.EventStorePort, func(), error) {
	switch backend := getenv("STORE_BACKEND", "mongo"); backend {
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
			_ = client.Disconnect(disconnectCtx)
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
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, nil, err
		}
		return eventsPostgres.NewEventRepository(eventsPostgres.NewSQLDB(db)), func() { db.Close() }, nil

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
