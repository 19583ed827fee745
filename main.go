package main

import (
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr        string
	DatabaseURL string
	AMQPURL     string
}

func loadConfig() Config {
	// .env is optional; real environments set the variables directly.
	_ = godotenv.Load()

	cfg := Config{Addr: ":8080"}
	if addr := os.Getenv("ADDR"); addr != "" {
		cfg.Addr = addr
	}
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.AMQPURL = os.Getenv("AMQP_URL")
	return cfg
}

func main() {
	cfg := loadConfig()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	store, err := NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to initialize store: %v", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		log.Fatalf("Unable to migrate database: %v", err)
	}

	var publisher NotificationPublisher = LogPublisher{}
	if cfg.AMQPURL != "" {
		rabbit, err := NewRabbitMQPublisher(cfg.AMQPURL)
		if err != nil {
			log.Fatalf("Unable to connect to RabbitMQ: %v", err)
		}
		defer rabbit.Close()
		publisher = rabbit
	}

	notifier := NewNotifier(publisher, 64)
	defer notifier.Close()

	h := NewHandler(store, notifier)

	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Origin", "Content-Type", "Authorization"},
	}))
	RegisterRouters(mux, h)

	log.Printf("Starting server on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, mux); err != nil {
		log.Fatal(err)
	}
}
