package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/hoisterhq/hoister/internal/controller/domain"
)

// haDiscoveryTopicFmt is the standard Home Assistant MQTT discovery prefix
// for a sensor entity.
const haDiscoveryTopicFmt = "homeassistant/sensor/hoister_%s/config"
const haStateTopicFmt = "hoister/%s/state"

// haDiscoveryPayload is the minimal MQTT discovery config HA needs to pick
// up a "last deployment status" sensor per service.
type haDiscoveryPayload struct {
	Name       string `json:"name"`
	StateTopic string `json:"state_topic"`
	UniqueID   string `json:"unique_id"`
	Icon       string `json:"icon"`
}

// HomeAssistantPublisher announces and updates a per-service "last
// deployment" sensor over MQTT discovery, an enrichment beyond the
// dispatcher transports spec.md names explicitly.
type HomeAssistantPublisher struct {
	client    mqtt.Client
	announced map[string]bool
}

// NewHomeAssistantPublisher reuses an existing MQTT connection.
func NewHomeAssistantPublisher(m *MQTT) *HomeAssistantPublisher {
	return &HomeAssistantPublisher{client: m.client, announced: map[string]bool{}}
}

// Publish announces the sensor on first sight of a service, then always
// publishes its latest state.
func (h *HomeAssistantPublisher) Publish(ctx context.Context, d domain.Deployment) error {
	id := sanitizeEntityID(d.ProjectName + "_" + d.ServiceName)

	if !h.announced[id] {
		cfg := haDiscoveryPayload{
			Name:       fmt.Sprintf("hoister %s/%s", d.ProjectName, d.ServiceName),
			StateTopic: fmt.Sprintf(haStateTopicFmt, id),
			UniqueID:   "hoister_" + id,
			Icon:       "mdi:docker",
		}
		payload, err := json.Marshal(cfg)
		if err != nil {
			return err
		}
		topic := fmt.Sprintf(haDiscoveryTopicFmt, id)
		token := h.client.Publish(topic, 0, true, payload)
		if !token.WaitTimeout(5 * time.Second) {
			return fmt.Errorf("ha discovery publish timed out")
		}
		if err := token.Error(); err != nil {
			return err
		}
		h.announced[id] = true
	}

	stateTopic := fmt.Sprintf(haStateTopicFmt, id)
	token := h.client.Publish(stateTopic, 0, true, []byte(d.Status.String()))
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("ha state publish timed out")
	}
	return token.Error()
}

func sanitizeEntityID(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			out = append(out, c)
		case c >= 'A' && c <= 'Z':
			out = append(out, c+32)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
