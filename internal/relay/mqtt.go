package relay

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/cpx-bridge/internal/config"
	"github.com/oshokin/cpx-bridge/internal/domain/board"
	"github.com/oshokin/cpx-bridge/internal/domain/host"
	"github.com/oshokin/cpx-bridge/internal/logger"
)

const (
	clientPrefix = "cpx-bridge"

	qosAtMostOnce = 0

	connectTimeout    = 10 * time.Second
	keepAlive         = 10 * time.Second
	writeTimeout      = 5 * time.Second
	disconnectQuiesce = 250
)

var errPublishTimeout = errors.New("publish timed out")

// Publisher sends events and states to an MQTT broker.
type Publisher struct {
	client  mqtt.Client
	prefix  string
	timeout time.Duration
}

// Connect dials the broker described by cfg.
func Connect(ctx context.Context, cfg config.MQTTConfig) (*Publisher, error) {
	ctx = logger.WithName(ctx, "mqtt")

	client := mqtt.NewClient(clientOptions(ctx, cfg))

	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connect to %s: %w", redact(cfg.URL), errPublishTimeout)
	}

	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", redact(cfg.URL), err)
	}

	return NewPublisher(client, cfg.TopicPrefix), nil
}

// clientOptions builds paho options for cfg; handlers log through ctx.
func clientOptions(ctx context.Context, cfg config.MQTTConfig) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info(ctx, "MQTT connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.ErrorKV(ctx, "MQTT connection lost", "error", err)
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		logger.Info(ctx, "MQTT reconnecting")
	})

	opts.AddBroker(cfg.URL)
	opts.SetClientID(clientID())
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetKeepAlive(keepAlive)
	opts.SetWriteTimeout(writeTimeout)
	opts.SetOrderMatters(false)

	// Brokers may authenticate by username alone.
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}

	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	return opts
}

// NewPublisher wraps an already connected client.
func NewPublisher(client mqtt.Client, prefix string) *Publisher {
	if prefix == "" {
		prefix = config.DefaultTopicPrefix
	}

	return &Publisher{
		client:  client,
		prefix:  strings.TrimSuffix(prefix, "/"),
		timeout: writeTimeout,
	}
}

// EventTopic returns <prefix>/<device>/event/<name>.
func (p *Publisher) EventTopic(device string, event board.Event) string {
	return strings.Join([]string{p.prefix, device, "event", string(event)}, "/")
}

// StateTopic returns <prefix>/<device>/state.
func (p *Publisher) StateTopic(device string) string {
	return strings.Join([]string{p.prefix, device, host.StateField}, "/")
}

// PublishEvent mirrors one relayed input event.
func (p *Publisher) PublishEvent(_ context.Context, device string, event board.Event, value any) error {
	payload, err := encode(map[string]any{"value": value})
	if err != nil {
		return err
	}

	return p.publish(p.EventTopic(device, event), payload)
}

// PublishState mirrors one board state snapshot.
func (p *Publisher) PublishState(_ context.Context, device string, state *board.State) error {
	payload, err := encode(state.Map())
	if err != nil {
		return err
	}

	return p.publish(p.StateTopic(device), payload)
}

func (p *Publisher) publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, qosAtMostOnce, false, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish %s: %w", topic, errPublishTimeout)
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(disconnectQuiesce)
	}
}

func encode(fields map[string]any) ([]byte, error) {
	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	return protojson.Marshal(msg)
}

func clientID() string {
	suffix := make([]byte, 8)
	_, _ = rand.Read(suffix)

	return clientPrefix + "-" + hex.EncodeToString(suffix)
}

// redact hides credentials embedded in a broker URL.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	return u.Redacted()
}
