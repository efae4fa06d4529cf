package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/current-logger/internal/logic"
)

const (
	// ClientID is the default MQTT client identifier.
	ClientID = "current-logger"

	bufferCapacity = 100
	queueCapacity  = 32
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// ErrNotConnected is returned by Send while the broker is unreachable.
var ErrNotConnected = errors.New("mqtt: not connected")

// RealPublisher publishes to an actual MQTT broker. Publish and
// PublishSystem never wait on the broker: a worker goroutine sends queued
// events, and events that cannot be sent are held in a ring buffer and
// replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	logger *slog.Logger

	queue chan bufferedMsg
	done  chan struct{}

	mu        sync.Mutex
	buf       *ringBuffer
	connected bool // set after the first successful connect
	closed    bool
}

// newPublisher starts the publish worker. The caller sets client.
func newPublisher(logger *slog.Logger) *RealPublisher {
	p := &RealPublisher{
		logger: logger,
		buf:    newRingBuffer(bufferCapacity),
		queue:  make(chan bufferedMsg, queueCapacity),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// NewRealPublisher creates a publisher for the given broker. An unreachable
// broker is not fatal: the client keeps retrying in the background.
func NewRealPublisher(broker, clientID string, logger *slog.Logger) (*RealPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if clientID == "" {
		clientID = ClientID
	}
	p := newPublisher(logger)

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(TopicSystem, will, 1, false).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warn("mqtt connection lost", "error", err)
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		logger.Warn("mqtt broker not reachable yet, retrying in background", "broker", broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		p.Close()
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	reconnect := p.connected
	p.connected = true
	pending := p.buf.drainAll()
	p.mu.Unlock()

	p.logger.Info("mqtt connected", "reconnect", reconnect, "replay", len(pending))

	go func() {
		if reconnect {
			payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
			c.Publish(TopicSystem, 1, false, payload)
		}
		for _, m := range pending {
			if err := p.publish(m); err != nil {
				p.logger.Warn("mqtt replay failed", "topic", m.topic, "error", err)
			}
		}
	}()
}

func (p *RealPublisher) run() {
	defer close(p.done)
	for m := range p.queue {
		if err := p.publish(m); err != nil {
			p.logger.Warn("mqtt publish failed, held for replay", "topic", m.topic, "error", err)
		}
	}
}

// enqueue hands m to the worker without blocking. While disconnected, or
// when the queue is full, m goes straight to the ring buffer.
func (p *RealPublisher) enqueue(m bufferedMsg) {
	if p.client.IsConnectionOpen() && p.offer(m) {
		return
	}
	p.hold(m)
}

func (p *RealPublisher) offer(m bufferedMsg) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.queue <- m:
		return true
	default:
		return false
	}
}

// publish sends m and waits for the broker, buffering it if the connection
// is down or the publish fails. Only the worker and the replay call it.
func (p *RealPublisher) publish(m bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.hold(m)
		return nil
	}

	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(publishTimeout) {
		p.hold(m)
		return fmt.Errorf("publish %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		p.hold(m)
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

func (p *RealPublisher) hold(m bufferedMsg) {
	p.mu.Lock()
	dropped := p.buf.push(m)
	p.mu.Unlock()
	if dropped {
		p.logger.Warn("mqtt buffer full, dropping oldest", "capacity", bufferCapacity)
	}
}

// Publish queues a logging event for the MQTT broker. Only formatting
// errors are returned; delivery failures are logged by the worker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	p.enqueue(bufferedMsg{topic: Topic, payload: payload, qos: 1})
	return nil
}

// PublishSystem queues a system lifecycle event for the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	p.enqueue(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
	return nil
}

// Send publishes a serialized sample chunk. Chunks are not buffered while
// disconnected; the caller counts them as lost.
func (p *RealPublisher) Send(ctx context.Context, payload []byte) error {
	if !p.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	token := p.client.Publish(TopicSamples, 1, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("publish %s: timeout", TopicSamples)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", TopicSamples, err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of events waiting for a reconnect.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Close stops the worker, giving queued events up to publishTimeout to go
// out, and disconnects from the broker. It is safe to call more than once.
func (p *RealPublisher) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
	case <-time.After(publishTimeout):
		p.logger.Warn("mqtt queue not drained before close")
	}
	if p.client != nil {
		p.client.Disconnect(1000) // 1 second timeout
	}
	return nil
}
