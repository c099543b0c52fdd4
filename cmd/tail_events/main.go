package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"

	"subscription-billing-be/pkg/events"
	pkgNats "subscription-billing-be/pkg/nats"

	"github.com/joho/godotenv"
)

// Tails the billing event stream. Handy for checking what downstream
// consumers will see without standing one up.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	url := os.Getenv("NATS_URL")
	if url == "" {
		url = "nats://localhost:4222"
	}

	sub, err := pkgNats.NewSubscriber(url)
	if err != nil {
		log.Fatalf("Error: Failed to connect to NATS: %v", err)
	}
	defer sub.Close()

	err = sub.Subscribe("events.>", "billing-events-tail", func(ctx context.Context, event events.Event) error {
		payload, _ := json.Marshal(event.Payload())
		log.Printf("[%s] %s aggregate=%s payload=%s", event.Timestamp().Format("15:04:05"), event.EventType(), event.AggregateId(), payload)
		return nil
	})
	if err != nil {
		log.Fatalf("Error: Failed to subscribe: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
}
