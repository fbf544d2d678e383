package brep

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher manages publishing symmetry results to MQTT
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
	results       map[string]*SymmetryResult
	mu            sync.RWMutex
}

// NewPublisher creates a new result publisher
// If client is nil, publishing is disabled (for testing)
func NewPublisher(client mqtt.Client) *Publisher {
	prefix := os.Getenv("MQTT_PUBLISH_PREFIX")
	if prefix == "" {
		prefix = "symscan"
	}

	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		qos:           0,    // Results are republished on every analysis
		retain:        true, // Retain so late subscribers get the latest result
		results:       make(map[string]*SymmetryResult),
	}
}

// PublishResult publishes a shape's symmetry result to MQTT
// Publishes to both the shape's own topic and the combined results topic
func (p *Publisher) PublishResult(result *SymmetryResult) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}
	if result == nil || result.ShapeID == "" {
		return fmt.Errorf("result has no shape ID")
	}

	if result.Timestamp == 0 {
		result.Timestamp = time.Now().Unix()
	}

	// Store result for the combined message
	p.mu.Lock()
	p.results[result.ShapeID] = result
	p.mu.Unlock()

	// Publish to individual topic: symscan/results/{shapeID}
	if err := p.publishIndividual(result); err != nil {
		log.Printf("Error publishing result for %s: %v", result.ShapeID, err)
		return err
	}

	// Publish to combined topic: symscan/results/combined
	if err := p.publishCombined(); err != nil {
		log.Printf("Error publishing combined results: %v", err)
		return err
	}

	return nil
}

// publishIndividual publishes a single shape's result to its own topic
func (p *Publisher) publishIndividual(result *SymmetryResult) error {
	topic := fmt.Sprintf("%s/results/%s", p.publishPrefix, result.ShapeID)

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}

	log.Printf("Published result for %s: %s (%d planes, %d pairs)",
		result.ShapeID, result.Status, len(result.Planes), result.TotalPairs)
	return nil
}

// publishCombined publishes all known results to the combined topic
func (p *Publisher) publishCombined() error {
	p.mu.RLock()
	results := make([]*SymmetryResult, 0, len(p.results))
	for _, r := range p.results {
		results = append(results, r)
	}
	p.mu.RUnlock()

	if len(results) == 0 {
		return nil
	}

	topic := fmt.Sprintf("%s/results/combined", p.publishPrefix)

	// Create combined message
	message := map[string]interface{}{
		"shapes":    results,
		"timestamp": time.Now().Unix(),
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshaling combined results: %w", err)
	}

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}

	return nil
}

// GetResult returns the last published result for a shape
func (p *Publisher) GetResult(shapeID string) (*SymmetryResult, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.results[shapeID]
	return r, ok
}

// GetAllResults returns all published results
func (p *Publisher) GetAllResults() map[string]*SymmetryResult {
	p.mu.RLock()
	defer p.mu.RUnlock()

	// Return a copy to avoid race conditions
	results := make(map[string]*SymmetryResult, len(p.results))
	for id, r := range p.results {
		rCopy := *r
		results[id] = &rCopy
	}
	return results
}

// ClearResult removes a shape's result (e.g., when its data is withdrawn)
func (p *Publisher) ClearResult(shapeID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.results, shapeID)
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages should be retained by the broker
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}

// SetPrefix aligns the publish topic prefix with the configured
// subscribe prefix. Call before the first publish. An explicit
// MQTT_PUBLISH_PREFIX environment value wins, and empty values are
// ignored.
func (p *Publisher) SetPrefix(prefix string) {
	if prefix == "" || os.Getenv("MQTT_PUBLISH_PREFIX") != "" {
		return
	}
	p.publishPrefix = prefix
}

// Prefix returns the publish topic prefix.
func (p *Publisher) Prefix() string {
	return p.publishPrefix
}
