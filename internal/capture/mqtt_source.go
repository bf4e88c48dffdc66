package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/example/ride-companion/internal/models"
)

// MQTTSource reads position fixes published by the rider's device (phone
// app or GPS tracker) on an MQTT topic. Payloads are JSON PositionSamples.
type MQTTSource struct {
	client mqtt.Client
	topic  string
	logger *slog.Logger

	mu       sync.Mutex
	last     *models.PositionSample
	watchers map[int]func(models.PositionSample)
	nextID   int
	ready    chan struct{}
	readyOne sync.Once
}

// NewMQTTSource connects to the broker and subscribes to topic. The
// connection auto-reconnects; a failed initial connect is returned as an
// error so the caller can fall back to no positioning capability.
func NewMQTTSource(brokerURL, clientID, topic string, logger *slog.Logger) (*MQTTSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &MQTTSource{
		topic:    topic,
		logger:   logger,
		watchers: make(map[int]func(models.PositionSample)),
		ready:    make(chan struct{}),
	}

	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)
	s.client = mqtt.NewClient(opts)

	if tok := s.client.Connect(); tok.Wait() && tok.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", brokerURL, tok.Error())
	}
	if tok := s.client.Subscribe(topic, 0, s.onMessage); tok.Wait() && tok.Error() != nil {
		s.client.Disconnect(250)
		return nil, fmt.Errorf("mqtt subscribe %s: %w", topic, tok.Error())
	}
	logger.Info("mqtt position source ready", "topic", topic)
	return s, nil
}

func (s *MQTTSource) onMessage(_ mqtt.Client, msg mqtt.Message) {
	var sample models.PositionSample
	if err := json.Unmarshal(msg.Payload(), &sample); err != nil {
		s.logger.Debug("invalid position payload", "topic", msg.Topic(), "error", err)
		return
	}
	if sample.CapturedAt.IsZero() {
		sample.CapturedAt = time.Now()
	}

	s.mu.Lock()
	s.last = &sample
	fns := make([]func(models.PositionSample), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	s.readyOne.Do(func() { close(s.ready) })
	for _, fn := range fns {
		fn(sample)
	}
}

// Current returns the most recent fix, waiting for the first one when none
// has arrived yet.
func (s *MQTTSource) Current(ctx context.Context) (models.PositionSample, error) {
	s.mu.Lock()
	if s.last != nil {
		sample := *s.last
		s.mu.Unlock()
		return sample, nil
	}
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return models.PositionSample{}, ctx.Err()
	case <-s.ready:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return models.PositionSample{}, ErrPositionUnavailable
	}
	return *s.last, nil
}

// Watch registers fn for every subsequent fix.
func (s *MQTTSource) Watch(fn func(models.PositionSample)) (func(), error) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}, nil
}

// Close disconnects from the broker.
func (s *MQTTSource) Close() {
	s.client.Disconnect(250)
}
