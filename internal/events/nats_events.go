package events

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cartdotfun/settlement-backend/internal/clients"
	"github.com/cartdotfun/settlement-backend/internal/config"
)

var (
	natsClient *clients.NATSClient
	natsOnce   sync.Once
)

// InitNATSServices initializes the NATS publisher. Skipped when NATS is not
// configured, in which case event publishing is a no-op.
func InitNATSServices() error {
	var initErr error
	natsOnce.Do(func() {
		if config.AppConfig == nil || config.AppConfig.NATS.URL == "" {
			log.Println("NATS not configured, skipping initialization")
			return
		}

		client, err := clients.NewNATSClient(
			config.AppConfig.NATS.URL,
			"SETTLEMENT_EVENTS",
			time.Duration(config.AppConfig.NATS.Timeout)*time.Second,
		)
		if err != nil {
			initErr = fmt.Errorf("failed to create NATS client: %w", err)
			return
		}

		natsClient = client
		log.Printf("✅ NATS client initialized successfully")
	})

	return initErr
}

// GetNATSClient returns the NATS client, nil when not initialized
func GetNATSClient() *clients.NATSClient {
	return natsClient
}

// Publish sends an event on settlement.<entity>.<event>. Publishing failures
// are logged and swallowed: vault state is already committed when events fire
// and must not be rolled back for a broker hiccup.
func Publish(entity, event string, payload interface{}) {
	if natsClient == nil {
		return
	}

	subject := fmt.Sprintf("settlement.%s.%s", entity, event)
	if err := natsClient.Publish(subject, payload); err != nil {
		log.Printf("⚠️ [NATS] Failed to publish %s: %v", subject, err)
	}
}

// Close shuts the NATS connection down
func Close() {
	if natsClient != nil {
		natsClient.Close()
	}
}
