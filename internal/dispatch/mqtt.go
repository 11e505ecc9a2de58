package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTT publishes deployment messages as JSON to a fixed topic, enriching
// the dispatcher beyond the transports spec.md names by name. Carried
// forward from the teacher's direct dependency on paho.mqtt.golang rather
// than dropped, since Home Assistant discovery (homeassistant.go) gives it a concrete
// home in this repo.
type MQTT struct {
	client mqtt.Client
	topic  string
}

// NewMQTT connects to an MQTT broker and returns an MQTT notifier. The
// connection is established eagerly, so a bad broker address is reported
// as an error here at startup rather than at the first publish.
func NewMQTT(brokerURL, clientID, topic string) (*MQTT, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetConnectTimeout(10 * time.Second).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		if err := token.Error(); err != nil {
			return nil, fmt.Errorf("connect to mqtt broker: %w", err)
		}
		return nil, fmt.Errorf("connect to mqtt broker: timed out")
	}
	return &MQTT{client: client, topic: topic}, nil
}

func (m *MQTT) Name() string { return "mqtt" }

func (m *MQTT) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(map[string]string{"title": msg.Title, "body": msg.Body})
	if err != nil {
		return err
	}
	token := m.client.Publish(m.topic, 0, false, payload)
	if !token.WaitTimeout(5*time.Second) {
		return fmt.Errorf("mqtt publish timed out")
	}
	return token.Error()
}

// Close disconnects from the broker.
func (m *MQTT) Close() {
	m.client.Disconnect(250)
}
