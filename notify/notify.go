// Package notify publishes best-effort round announcements over MQTT.
// Announcements let dashboards and idle nodes react faster, but the store
// polling loops remain the synchronization mechanism: a lost announcement
// never stalls a round.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/absmach/rotor/store"
)

const (
	connTimeout    = 10 * time.Second
	disconnTimeout = 250

	selectedTopic = "rotor/rounds/aggregator"
	completeTopic = "rotor/rounds/complete"
)

var errConnectTimeout = errors.New("timeout reached while connecting to MQTT broker")

type Notifier struct {
	client  mqtt.Client
	qos     byte
	timeout time.Duration
	logger  *slog.Logger
}

// New connects to the broker at url. An empty url is not an error here;
// callers decide whether announcements are configured at all.
func New(url, clientID string, qos byte, timeout time.Duration, logger *slog.Logger) (*Notifier, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(url).
		SetClientID(clientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(connTimeout)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info("MQTT connection established")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		args := []any{}
		if err != nil {
			args = append(args, slog.Any("error", err))
		}
		logger.Info("MQTT connection lost", args...)
	})

	client := mqtt.NewClient(opts)

	token := client.Connect()
	if token.Error() != nil {
		return nil, errors.Join(errors.New("failed to connect to MQTT broker"), token.Error())
	}
	if ok := token.WaitTimeout(timeout); !ok {
		return nil, errConnectTimeout
	}

	return &Notifier{
		client:  client,
		qos:     qos,
		timeout: timeout,
		logger:  logger,
	}, nil
}

func (n *Notifier) publish(topic string, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	token := n.client.Publish(topic, n.qos, false, data)
	if token.Error() != nil {
		return token.Error()
	}
	if ok := token.WaitTimeout(n.timeout); !ok {
		return fmt.Errorf("failed to publish to %s due to timeout reached", topic)
	}

	return nil
}

func (n *Notifier) AggregatorSelected(_ context.Context, info store.AggregatorInfo) error {
	return n.publish(selectedTopic, map[string]any{
		"round":           info.Round,
		"aggregator_id":   info.ID,
		"aggregator_ip":   info.IP,
		"aggregator_port": info.Port,
	})
}

func (n *Notifier) AggregationComplete(_ context.Context, round int) error {
	return n.publish(completeTopic, map[string]any{
		"round":  round,
		"status": "complete",
	})
}

func (n *Notifier) Disconnect(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		n.client.Disconnect(disconnTimeout)

		return nil
	}
}
