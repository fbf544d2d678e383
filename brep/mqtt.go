package brep

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MessageHandler is called when a shape data message is received.
// Parameters: shapeID, rawPayload, solid, error
// rawPayload is provided so callers can hash or persist the exact bytes
type MessageHandler func(shapeID string, rawPayload []byte, solid Solid, err error)

// AnalyzeRequestHandler is called when an analysis request arrives on
// the request topic
type AnalyzeRequestHandler func(req AnalysisRequest)

// MQTTClient manages the MQTT connection and subscriptions for shape data
type MQTTClient struct {
	client         mqtt.Client
	config         *Config
	messageHandler MessageHandler
	requestHandler AnalyzeRequestHandler
	isConnected    bool
	mu             sync.RWMutex
}

var (
	globalClient *MQTTClient
	clientMu     sync.Mutex
)

// shapeDataTopic returns the topic a shape's boundary data is published on
func shapeDataTopic(prefix, shapeID string) string {
	return prefix + "/shapes/" + shapeID + "/data"
}

// analyzeRequestTopic returns the topic analysis requests arrive on
func analyzeRequestTopic(prefix string) string {
	return prefix + "/analyze/request"
}

// InitMQTT initializes the global MQTT client with the provided configuration
// If MQTT_BROKER env var is empty, MQTT is disabled and this returns nil
func InitMQTT(config *Config, handler MessageHandler) (*MQTTClient, error) {
	clientMu.Lock()
	defer clientMu.Unlock()

	// Check if MQTT is enabled via env var or config
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" && config != nil && config.MQTT.Broker != "" {
		broker = config.MQTT.Broker
	}

	if broker == "" {
		log.Println("MQTT disabled: MQTT_BROKER not set")
		return nil, nil
	}

	if config == nil || len(config.Shapes) == 0 {
		return nil, fmt.Errorf("MQTT enabled but no shape configuration provided")
	}

	client := &MQTTClient{
		config:         config,
		messageHandler: handler,
	}

	// Build MQTT client options
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)

	// Client ID
	clientID := os.Getenv("MQTT_CLIENT_ID")
	if clientID == "" && config.MQTT.ClientID != "" {
		clientID = config.MQTT.ClientID
	}
	if clientID == "" {
		clientID = "symscan"
	}
	opts.SetClientID(clientID)

	// Authentication
	username := os.Getenv("MQTT_USERNAME")
	if username == "" && config.MQTT.Username != "" {
		username = config.MQTT.Username
	}
	if username != "" {
		opts.SetUsername(username)
		password := os.Getenv("MQTT_PASSWORD")
		if password == "" && config.MQTT.Password != "" {
			password = config.MQTT.Password
		}
		opts.SetPassword(password)
	}

	// Connection settings
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)   // Longer than default 30s to reduce spurious disconnects
	opts.SetPingTimeout(10 * time.Second) // Timeout for ping response
	opts.SetCleanSession(false)           // Preserve subscriptions on reconnect
	opts.SetOrderMatters(false)           // Allow concurrent processing

	// Callbacks
	opts.SetOnConnectHandler(client.onConnect)
	opts.SetConnectionLostHandler(client.onConnectionLost)
	opts.SetReconnectingHandler(client.onReconnecting)

	client.client = mqtt.NewClient(opts)

	// Connect asynchronously with retry
	go client.connectWithRetry()

	globalClient = client
	return client, nil
}

// GetMQTTClient returns the global MQTT client instance
func GetMQTTClient() *MQTTClient {
	clientMu.Lock()
	defer clientMu.Unlock()
	return globalClient
}

// connectWithRetry attempts to connect to the MQTT broker with exponential backoff
func (c *MQTTClient) connectWithRetry() {
	retryDelay := 1 * time.Second
	maxRetryDelay := 60 * time.Second

	for {
		log.Println("Connecting to MQTT broker...")

		token := c.client.Connect()
		if token.WaitTimeout(10 * time.Second) {
			if token.Error() == nil {
				log.Println("Successfully connected to MQTT broker")
				c.setConnected(true)
				return
			}
			log.Printf("MQTT connection failed: %v", token.Error())
		} else {
			log.Println("MQTT connection timeout")
		}

		// Exponential backoff
		log.Printf("Retrying MQTT connection in %v...", retryDelay)
		time.Sleep(retryDelay)
		retryDelay *= 2
		if retryDelay > maxRetryDelay {
			retryDelay = maxRetryDelay
		}
	}
}

// onConnect is called when the MQTT connection is established
func (c *MQTTClient) onConnect(client mqtt.Client) {
	log.Println("MQTT connected, subscribing to shape topics...")
	c.setConnected(true)

	prefix := c.config.MQTT.TopicPrefix

	// Subscribe to each configured shape's data topic
	for _, shape := range c.config.Shapes {
		topic := shapeDataTopic(prefix, shape.ID)

		log.Printf("Subscribing to %s for shape %s", topic, shape.ID)
		token := client.Subscribe(topic, 0, c.createMessageHandler(shape.ID))

		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			log.Printf("Error subscribing to %s: %v", topic, token.Error())
		} else {
			log.Printf("Successfully subscribed to %s", topic)
		}
	}

	// Subscribe to the shared analysis request topic
	reqTopic := analyzeRequestTopic(prefix)
	log.Printf("Subscribing to %s for analysis requests", reqTopic)
	token := client.Subscribe(reqTopic, 0, c.handleAnalyzeRequest)

	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		log.Printf("Error subscribing to %s: %v", reqTopic, token.Error())
	} else {
		log.Printf("Successfully subscribed to %s", reqTopic)
	}
}

// onConnectionLost is called when the MQTT connection is lost
// Auto-reconnect is enabled, so this is typically a transient event
func (c *MQTTClient) onConnectionLost(client mqtt.Client, err error) {
	log.Printf("MQTT connection interrupted (%v), auto-reconnect will retry", err)
	c.setConnected(false)
}

// onReconnecting is called when the client attempts to reconnect
func (c *MQTTClient) onReconnecting(client mqtt.Client, opts *mqtt.ClientOptions) {
	log.Println("MQTT reconnecting...")
}

// createMessageHandler creates a handler function for a specific shape's topic
func (c *MQTTClient) createMessageHandler(shapeID string) mqtt.MessageHandler {
	return func(client mqtt.Client, msg mqtt.Message) {
		payload := msg.Payload()
		log.Printf("Received shape data for %s (topic: %s, size: %d bytes)",
			shapeID, msg.Topic(), len(payload))

		// Decode the payload (handles shape JSON, STL, or zlib-compressed data)
		solid, err := DecodeShapeData(payload)
		if err != nil {
			log.Printf("Error decoding shape data for %s: %v", shapeID, err)
			if c.messageHandler != nil {
				// Pass raw payload so the caller may persist the bytes anyway
				c.messageHandler(shapeID, payload, nil, err)
			}
			return
		}

		// Call the user's message handler with raw payload and decoded solid
		if c.messageHandler != nil {
			c.messageHandler(shapeID, payload, solid, nil)
		}
	}
}

// SetAnalyzeRequestHandler registers a callback invoked when an analysis
// request message arrives
func (c *MQTTClient) SetAnalyzeRequestHandler(handler AnalyzeRequestHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestHandler = handler
}

// getAnalyzeRequestHandler returns the current request handler in a thread-safe manner
func (c *MQTTClient) getAnalyzeRequestHandler() AnalyzeRequestHandler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.requestHandler
}

// handleAnalyzeRequest parses analysis request messages. The payload is
// normally a JSON object, but a bare shape ID string is accepted too.
func (c *MQTTClient) handleAnalyzeRequest(client mqtt.Client, msg mqtt.Message) {
	payload := msg.Payload()
	log.Printf("Received analysis request (topic: %s, size: %d bytes)",
		msg.Topic(), len(payload))

	var req AnalysisRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		// Try parsing as JSON string "box"
		var plainStr string
		if err2 := json.Unmarshal(payload, &plainStr); err2 == nil {
			req.ShapeID = plainStr
			log.Printf("Analysis request payload is JSON string (not object), shape: %s", plainStr)
		} else {
			// Use raw string with whitespace trimmed
			req.ShapeID = strings.TrimSpace(string(payload))
			if req.ShapeID == "" {
				log.Println("Empty analysis request payload, skipping")
				return
			}
			log.Printf("Analysis request payload is raw string (not JSON), shape: %s", req.ShapeID)
		}
	}

	if req.ShapeID == "" {
		log.Println("Analysis request missing shape ID, skipping")
		return
	}

	log.Printf("Analysis requested for shape %s", req.ShapeID)

	handler := c.getAnalyzeRequestHandler()
	if handler != nil {
		handler(req)
	}
}

// IsConnected returns true if the MQTT client is connected
func (c *MQTTClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

// setConnected updates the connection status
func (c *MQTTClient) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = connected
}

// Disconnect gracefully closes the MQTT connection
func (c *MQTTClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		log.Println("Disconnecting from MQTT broker...")
		c.client.Disconnect(250) // 250ms quiesce time
		c.setConnected(false)
	}
}

// GetShapeByTopic returns the shape ID for a given data topic
func (c *MQTTClient) GetShapeByTopic(topic string) (string, bool) {
	prefix := c.config.MQTT.TopicPrefix
	for _, shape := range c.config.Shapes {
		if shapeDataTopic(prefix, shape.ID) == topic {
			return shape.ID, true
		}
	}
	return "", false
}

// GetClient returns the underlying MQTT client for publishing
func (c *MQTTClient) GetClient() mqtt.Client {
	return c.client
}

// newMQTTClientWithMock creates an MQTTClient with a provided mqtt.Client
// This is used for testing with mock clients
func newMQTTClientWithMock(client mqtt.Client, config *Config, handler MessageHandler) *MQTTClient {
	return &MQTTClient{
		client:         client,
		config:         config,
		messageHandler: handler,
	}
}
