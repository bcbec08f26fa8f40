package clients

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/cartdotfun/settlement-backend/internal/metrics"

	"github.com/nats-io/nats.go"
)

// NATSClient NATS client
type NATSClient struct {
	conn       *nats.Conn
	js         nats.JetStreamContext
	streamName string
}

// NewNATSClient creates a NATS client with JetStream enabled and ensures the
// settlement event stream exists.
func NewNATSClient(url, streamName string, connectTimeout time.Duration) (*NATSClient, error) {
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}

	conn, err := nats.Connect(url,
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("⚠️ NATS disconnected: %v", err)
			metrics.NATSConnectionStatus.Set(0)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("✅ NATS reconnected")
			metrics.NATSConnectionStatus.Set(1)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	client := &NATSClient{
		conn:       conn,
		js:         js,
		streamName: streamName,
	}

	if err := client.ensureStream(); err != nil {
		log.Printf("⚠️ JetStream stream setup failed, falling back to core NATS publish: %v", err)
	}

	metrics.NATSConnectionStatus.Set(1)
	log.Printf("✅ Connected to NATS at %s", url)
	return client, nil
}

// ensureStream creates the settlement stream if it does not exist yet
func (c *NATSClient) ensureStream() error {
	_, err := c.js.StreamInfo(c.streamName)
	if err == nil {
		log.Printf("📋 Stream %s already exists", c.streamName)
		return nil
	}

	streamConfig := &nats.StreamConfig{
		Name: c.streamName,
		Subjects: []string{
			"settlement.vault.*",
			"settlement.deal.*",
			"settlement.session.*",
			"settlement.gateway.*",
			"settlement.crosschain.*",
		},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	}

	if _, err := c.js.AddStream(streamConfig); err != nil {
		return fmt.Errorf("failed to create stream %s: %w", c.streamName, err)
	}

	log.Printf("✅ Stream %s created", c.streamName)
	return nil
}

// Publish serializes the payload and publishes it on the given subject.
// JetStream is tried first, plain NATS is the fallback.
func (c *NATSClient) Publish(subject string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		metrics.NATSPublishFailed.WithLabelValues(subject).Inc()
		return fmt.Errorf("failed to marshal payload for %s: %w", subject, err)
	}

	if _, err := c.js.Publish(subject, data); err != nil {
		if pubErr := c.conn.Publish(subject, data); pubErr != nil {
			metrics.NATSPublishFailed.WithLabelValues(subject).Inc()
			return fmt.Errorf("failed to publish to %s: %w", subject, pubErr)
		}
	}

	metrics.NATSMessagesPublished.WithLabelValues(subject).Inc()
	return nil
}

// Subscribe registers a handler for a subject, trying core NATS first and
// JetStream as the fallback
func (c *NATSClient) Subscribe(subject string, handler nats.MsgHandler) error {
	_, err := c.conn.Subscribe(subject, handler)
	if err == nil {
		log.Printf("✅ NATS subscription established: %s", subject)
		return nil
	}

	log.Printf("⚠️ Core NATS subscription failed, trying JetStream: %v", err)

	if _, err := c.js.Subscribe(subject, handler); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	log.Printf("✅ JetStream subscription established: %s", subject)
	return nil
}

// Close connection
func (c *NATSClient) Close() {
	if c.conn != nil {
		c.conn.Close()
		metrics.NATSConnectionStatus.Set(0)
	}
}

// GetConnection returns the underlying NATS connection
func (c *NATSClient) GetConnection() *nats.Conn {
	return c.conn
}

// GetJetStream returns the JetStream context
func (c *NATSClient) GetJetStream() nats.JetStreamContext {
	return c.js
}
