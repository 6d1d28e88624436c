package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"mealtrack/client/api"
	"mealtrack/client/app"
	"mealtrack/client/catalog"
	"mealtrack/client/consumption"
	"mealtrack/client/goals"
	"mealtrack/client/messaging"
	"mealtrack/client/pantry"
	"mealtrack/client/remote"
	"mealtrack/client/session"
	"mealtrack/client/store"
)

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}

	backendURL := envOrDefault("MEALTRACK_BACKEND_URL", "http://localhost:8000")
	dataDir := envOrDefault("MEALTRACK_DATA_DIR", "./data")
	listenAddr := envOrDefault("MEALTRACK_LISTEN_ADDR", ":8080")

	kv, err := store.OpenKV(dataDir)
	if err != nil {
		log.Fatalf("Failed to open local store: %v", err)
	}
	defer kv.Close()

	cookies, err := store.OpenCookies(dataDir, store.DefaultCookieTTL)
	if err != nil {
		log.Fatalf("Failed to open cookie jar: %v", err)
	}

	tokens, err := store.NewTokenStore(dataDir, kv, cookies)
	if err != nil {
		log.Fatalf("Failed to initialize token store: %v", err)
	}

	client := remote.NewClient(backendURL)
	sess := session.NewManager(tokens, client)
	cache := catalog.NewCache(client)
	ledger := pantry.NewLedger(client, cache)
	consumptionLog := consumption.NewLog(client, cache, ledger, time.Local)
	tracker := goals.NewTracker(client)

	useStandardIO := os.Getenv("MEALTRACK_IPC") == "1"
	if useStandardIO {
		messaging.InitBroadcaster(&messaging.StandardIOBroadcaster{})
	} else {
		messaging.InitBroadcaster(nil)
	}

	application := app.New(sess, cache, consumptionLog, ledger, tracker)

	ctx := context.Background()
	if err := application.Bootstrap(ctx); err != nil {
		// A failed initial load is recoverable: the shell retries via login.
		log.Printf("Bootstrap: %v", err)
	}
	go application.StartDayChangeMonitor(ctx)

	if useStandardIO {
		log.Println("Running with StandardIO interface")
		api.NewStandardIOHandler(application, client).Start()
		return
	}

	log.Println("Running with REST API interface")
	router := api.NewRouter(application, client)
	if err := router.SetupAndRunApiServer(listenAddr); err != nil {
		log.Fatalf("Facade server stopped: %v", err)
	}
}
