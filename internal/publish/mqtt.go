// Package publish sends heating snapshots to an MQTT broker
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ustrahlendorf/web-form-datacollection/internal/iot"
	"github.com/ustrahlendorf/web-form-datacollection/internal/logger"
)

// Defaults for publishing
const (
	DefaultTopicPrefix    = "vicare"
	DefaultPublishTimeout = 5 * time.Second
	publishQoS            = 1
)

// MQTTConfig describes the broker connection
type MQTTConfig struct {
	BrokerURI string
	ClientID  string
	Username  string
	Password  string
}

// Client is the subset of mqtt.Client the publisher uses
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Publisher writes one retained topic per snapshot field plus a JSON summary
type Publisher struct {
	client  Client
	prefix  string
	timeout time.Duration
	log     *logger.Logger
}

// NewMQTTClient builds an auto-reconnecting paho client
func NewMQTTClient(cfg MQTTConfig, log *logger.Logger) mqtt.Client {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURI)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.OnConnect = func(mqtt.Client) {
		log.Infow("connected to MQTT broker", "broker", cfg.BrokerURI)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warnw("MQTT connection lost", "err", err)
	}
	return mqtt.NewClient(opts)
}

// Connect opens the connection and waits up to timeout for it
func Connect(client mqtt.Client, timeout time.Duration) error {
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return errors.New("connecting to MQTT broker: timed out")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connecting to MQTT broker: %w", err)
	}
	return nil
}

// NewPublisher creates a publisher. An empty prefix selects DefaultTopicPrefix.
func NewPublisher(client Client, prefix string, log *logger.Logger) *Publisher {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Publisher{
		client:  client,
		prefix:  strings.TrimSuffix(prefix, "/"),
		timeout: DefaultPublishTimeout,
		log:     log,
	}
}

// Topic returns the topic for a field of eq's snapshot
func (p *Publisher) Topic(eq *iot.Equipment, field string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", p.prefix, eq.InstallationID, eq.GatewaySerial, eq.DeviceID, field)
}

// PublishHeatingValues publishes each non-nil field and the full snapshot as JSON.
// Every publish is attempted; the first error is returned.
func (p *Publisher) PublishHeatingValues(ctx context.Context, eq *iot.Equipment, v *iot.HeatingValues) error {
	messages, err := heatingMessages(v)
	if err != nil {
		return err
	}

	var firstErr error
	for _, m := range messages {
		if err := ctx.Err(); err != nil {
			return err
		}
		topic := p.Topic(eq, m.field)
		if err := p.publish(topic, m.payload); err != nil {
			p.log.Warnw("MQTT publish failed", "topic", topic, "err", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (p *Publisher) publish(topic, payload string) error {
	token := p.client.Publish(topic, publishQoS, true, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publishing to %s: timed out after %s", topic, p.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

type message struct {
	field   string
	payload string
}

func heatingMessages(v *iot.HeatingValues) ([]message, error) {
	var out []message
	addFloat := func(field string, f *float64) {
		if f != nil {
			out = append(out, message{field, strconv.FormatFloat(*f, 'f', -1, 64)})
		}
	}
	addInt := func(field string, n *int64) {
		if n != nil {
			out = append(out, message{field, strconv.FormatInt(*n, 10)})
		}
	}

	addFloat("gas_consumption_m3_today", v.GasConsumptionM3Today)
	addFloat("gas_consumption_m3_yesterday", v.GasConsumptionM3Yesterday)
	addInt("betriebsstunden", v.Betriebsstunden)
	addInt("starts", v.Starts)
	addFloat("supply_temp", v.SupplyTemp)
	addFloat("outside_temp", v.OutsideTemp)

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling heating values: %w", err)
	}
	out = append(out, message{"snapshot", string(data)})
	return out, nil
}
