// Package config loads agent and controller configuration from a TOML file
// overlaid with environment variables, via viper, replacing the teacher's
// hand-rolled envStr/envBool/envDuration family (internal/config/config.go
// in the original tree) with the ecosystem library the rest of the pack
// reaches for.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RegistryCredential is one row of the registry.<host> config table.
type RegistryCredential struct {
	Username string
	Token    string
}

// DispatcherConfig holds per-transport credentials. Empty fields mean that
// transport is not configured and is skipped when building the Notifier set.
type DispatcherConfig struct {
	TelegramBotToken string
	TelegramChatID   string
	DiscordWebhook   string
	SlackWebhook     string
	GotifyURL        string
	GotifyToken      string
	EmailHost        string
	EmailPort        string
	EmailUsername    string
	EmailPassword    string
	EmailFrom        string
	EmailTo          []string
	MQTTBrokerURL    string
	MQTTClientID     string
	MQTTTopic        string
	HomeAssistant    bool
}

// AgentConfig is the full set of options recognized under an agent's
// HOISTER_ prefix, per the option table this config package implements.
type AgentConfig struct {
	Project         string
	HostName        string
	SendTestMessage bool

	ScheduleIntervalSeconds int
	ScheduleCron            string

	Registries map[string]RegistryCredential

	ControllerURL        string
	ControllerToken      string
	ControllerCACertPath string

	RuntimeEndpoint string
	RuntimeCACert   string
	RuntimeCert     string
	RuntimeKey      string

	Dispatcher DispatcherConfig

	LogJSON bool
}

// LoadAgentConfig reads configPath (a TOML file, may be empty to skip file
// loading) and overlays HOISTER_-prefixed environment variables, nested keys
// joined by underscore, matching the precedence the option table specifies.
func LoadAgentConfig(configPath string) (*AgentConfig, error) {
	v := newViper(configPath)

	v.SetDefault("hostname", "undefined")
	v.SetDefault("schedule.interval", 21600)
	v.SetDefault("log_json", true)
	v.SetDefault("runtime.endpoint", "/var/run/docker.sock")

	if configPath != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read agent config %s: %w", configPath, err)
		}
	}

	cfg := &AgentConfig{
		Project:                 v.GetString("project"),
		HostName:                v.GetString("hostname"),
		SendTestMessage:         v.GetBool("send_test_message"),
		ScheduleIntervalSeconds: v.GetInt("schedule.interval"),
		ScheduleCron:            v.GetString("schedule.cron"),
		ControllerURL:           v.GetString("controller.url"),
		ControllerToken:         v.GetString("controller.token"),
		ControllerCACertPath:    v.GetString("controller.ca_cert_path"),
		RuntimeEndpoint:         v.GetString("runtime.endpoint"),
		RuntimeCACert:           v.GetString("runtime.tls_ca_cert"),
		RuntimeCert:             v.GetString("runtime.tls_cert"),
		RuntimeKey:              v.GetString("runtime.tls_key"),
		LogJSON:                 v.GetBool("log_json"),
		Registries:              map[string]RegistryCredential{},
		Dispatcher: DispatcherConfig{
			TelegramBotToken: v.GetString("dispatcher.telegram.bot_token"),
			TelegramChatID:   v.GetString("dispatcher.telegram.chat_id"),
			DiscordWebhook:   v.GetString("dispatcher.discord.webhook_url"),
			SlackWebhook:     v.GetString("dispatcher.slack.webhook_url"),
			GotifyURL:        v.GetString("dispatcher.gotify.url"),
			GotifyToken:      v.GetString("dispatcher.gotify.token"),
			EmailHost:        v.GetString("dispatcher.email.host"),
			EmailPort:        v.GetString("dispatcher.email.port"),
			EmailUsername:    v.GetString("dispatcher.email.username"),
			EmailPassword:    v.GetString("dispatcher.email.password"),
			EmailFrom:        v.GetString("dispatcher.email.from"),
			EmailTo:          splitNonEmpty(v.GetString("dispatcher.email.to")),
			MQTTBrokerURL:    v.GetString("dispatcher.mqtt.broker_url"),
			MQTTClientID:     v.GetString("dispatcher.mqtt.client_id"),
			MQTTTopic:        v.GetString("dispatcher.mqtt.topic"),
			HomeAssistant:    v.GetBool("dispatcher.mqtt.home_assistant"),
		},
	}

	if u := v.GetString("registry.ghcr.username"); u != "" || v.GetString("registry.ghcr.token") != "" {
		cfg.Registries["ghcr.io"] = RegistryCredential{
			Username: u,
			Token:    v.GetString("registry.ghcr.token"),
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate enforces the ConfigError-at-startup treatment: a missing
// required field fails fast rather than surfacing later as a runtime error.
func (c *AgentConfig) validate() error {
	if c.ControllerURL == "" {
		return fmt.Errorf("controller.url is required")
	}
	if c.ScheduleIntervalSeconds <= 0 && c.ScheduleCron == "" {
		return fmt.Errorf("one of schedule.interval or schedule.cron is required")
	}
	return nil
}

// ScheduleInterval returns the configured sweep interval as a Duration.
func (c *AgentConfig) ScheduleInterval() time.Duration {
	return time.Duration(c.ScheduleIntervalSeconds) * time.Second
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func newViper(configPath string) *viper.Viper {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
	}
	v.SetEnvPrefix("hoister")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}
