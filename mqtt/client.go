// Package mqtt publishes accepted readings to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/eddielth/sdr-weather/config"
	"github.com/eddielth/sdr-weather/logger"
	"github.com/eddielth/sdr-weather/publish"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// client is the part of paho.Client the publisher uses
type client interface {
	Connect() paho.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// Publisher sends readings as JSON to <topic>/<sensor>
type Publisher struct {
	client client
	config config.MQTTConfig
}

// NewPublisher creates a publisher for the configured broker. Call Connect before use.
func NewPublisher(cfg config.MQTTConfig) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("MQTT broker address cannot be empty")
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)

	if cfg.ClientID == "" {
		cfg.ClientID = "sdrweather-" + uuid.NewString()
	}
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Error("MQTT connection lost: %v", err)
	})

	opts.SetReconnectingHandler(func(_ paho.Client, _ *paho.ClientOptions) {
		logger.Info("trying to reconnect to MQTT broker...")
	})

	return newPublisher(paho.NewClient(opts), cfg), nil
}

func newPublisher(c client, cfg config.MQTTConfig) *Publisher {
	return &Publisher{client: c, config: cfg}
}

// Connect connects to the MQTT broker
func (p *Publisher) Connect() error {
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("connection to MQTT broker timed out")
	}

	if err := token.Error(); err != nil {
		return err
	}

	logger.Info("successfully connected to MQTT broker: %s", p.config.Broker)
	return nil
}

// Dispatch publishes one reading and waits for the broker to take it
func (p *Publisher) Dispatch(ctx context.Context, r publish.Reading) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode reading: %w", err)
	}

	topic := Topic(p.config.Topic, r.SensorKey)
	token := p.client.Publish(topic, p.config.QoS, p.config.Retain, payload)

	timer := time.NewTimer(publishTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("publish to %s timed out", topic)
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	logger.Debug("published reading to %s", topic)
	return nil
}

// Disconnect disconnects from the MQTT broker
func (p *Publisher) Disconnect() {
	p.client.Disconnect(250)
	logger.Info("disconnected from MQTT broker")
}

// Topic joins the prefix and a topic-safe form of the sensor key.
// Spaces become underscores and the MQTT wildcards and separators are dropped.
func Topic(prefix, sensorKey string) string {
	segment := strings.Map(func(r rune) rune {
		switch r {
		case ' ':
			return '_'
		case '/', '+', '#', 0:
			return -1
		}
		return r
	}, sensorKey)
	if segment == "" {
		segment = "unknown"
	}

	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return segment
	}
	return prefix + "/" + segment
}
