package brep

import (
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Compile-time checks that the test doubles satisfy the paho interfaces.
var (
	_ mqtt.Client  = (*MockClient)(nil)
	_ mqtt.Token   = (*MockToken)(nil)
	_ mqtt.Message = (*simMessage)(nil)
)

// MockClient is an in-memory mqtt.Client for tests. Subscriptions are
// recorded so tests can inject inbound messages with SimulateMessage, and
// outbound publishes are captured for inspection via GetPublishedMessages.
// Every operation completes synchronously.
type MockClient struct {
	connected       bool
	connectErr      error
	publishErr      error
	messageHandlers map[string]mqtt.MessageHandler
	published       []MockMessage
	nextID          uint16
	mu              sync.RWMutex
}

// MockMessage records one outbound publish.
type MockMessage struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// NewMockClient returns a disconnected mock with no recorded state.
func NewMockClient() *MockClient {
	return &MockClient{
		messageHandlers: make(map[string]mqtt.MessageHandler),
	}
}

// SetConnected forces the connection state without going through Connect.
func (c *MockClient) SetConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = connected
}

// SetConnectError makes subsequent Connect calls fail with err.
func (c *MockClient) SetConnectError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectErr = err
}

// SetPublishError makes subsequent Publish calls fail with err.
func (c *MockClient) SetPublishError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publishErr = err
}

// GetPublishedMessages returns a copy of every captured publish, in order.
func (c *MockClient) GetPublishedMessages() []MockMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]MockMessage, len(c.published))
	copy(out, c.published)
	return out
}

// SimulateMessage delivers payload to the handler subscribed on topic, if
// any. The message carries a fresh id the way a broker delivery would.
func (c *MockClient) SimulateMessage(topic string, payload []byte) {
	c.mu.Lock()
	handler := c.messageHandlers[topic]
	c.nextID++
	id := c.nextID
	c.mu.Unlock()

	if handler == nil {
		return
	}
	handler(c, &simMessage{topic: topic, payload: payload, id: id})
}

func (c *MockClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *MockClient) IsConnectionOpen() bool { return c.IsConnected() }

func (c *MockClient) Connect() mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectErr != nil {
		return &MockToken{err: c.connectErr}
	}
	c.connected = true
	return &MockToken{}
}

func (c *MockClient) Disconnect(quiesce uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
}

// Publish captures the message. String and []byte payloads are stored
// verbatim; anything else fails the token, matching the real client.
func (c *MockClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return &MockToken{err: mqtt.ErrNotConnected}
	}
	if c.publishErr != nil {
		return &MockToken{err: c.publishErr}
	}

	var body []byte
	switch v := payload.(type) {
	case []byte:
		body = v
	case string:
		body = []byte(v)
	default:
		return &MockToken{err: fmt.Errorf("unsupported payload type %T", payload)}
	}

	c.published = append(c.published, MockMessage{
		Topic:   topic,
		Payload: body,
		QoS:     qos,
		Retain:  retained,
	})
	return &MockToken{}
}

func (c *MockClient) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return &MockToken{err: mqtt.ErrNotConnected}
	}
	c.messageHandlers[topic] = callback
	return &MockToken{}
}

func (c *MockClient) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return &MockToken{err: mqtt.ErrNotConnected}
	}
	for topic := range filters {
		c.messageHandlers[topic] = callback
	}
	return &MockToken{}
}

func (c *MockClient) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, topic := range topics {
		delete(c.messageHandlers, topic)
	}
	return &MockToken{}
}

func (c *MockClient) AddRoute(topic string, callback mqtt.MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messageHandlers[topic] = callback
}

func (c *MockClient) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}

// MockToken is an already-completed mqtt.Token carrying an optional error.
type MockToken struct {
	err error
}

func (t *MockToken) Wait() bool                     { return true }
func (t *MockToken) WaitTimeout(time.Duration) bool { return true }
func (t *MockToken) Error() error                   { return t.err }

func (t *MockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// simMessage is the mqtt.Message delivered by SimulateMessage.
type simMessage struct {
	topic   string
	payload []byte
	id      uint16
}

func (m *simMessage) Duplicate() bool   { return false }
func (m *simMessage) Qos() byte         { return 0 }
func (m *simMessage) Retained() bool    { return false }
func (m *simMessage) Topic() string     { return m.topic }
func (m *simMessage) MessageID() uint16 { return m.id }
func (m *simMessage) Payload() []byte   { return m.payload }
func (m *simMessage) Ack()              {}
