// Command hoister-agent runs the agent: the update engine, its scheduler,
// the inventory pusher, and the SSE consumer that listens for on-demand
// retry requests from the controller.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/moby/moby/api/types/container"

	"github.com/hoisterhq/hoister/internal/agent/engine"
	"github.com/hoisterhq/hoister/internal/agent/inventory"
	"github.com/hoisterhq/hoister/internal/agent/reporter"
	"github.com/hoisterhq/hoister/internal/agent/resolver"
	"github.com/hoisterhq/hoister/internal/agent/scheduler"
	"github.com/hoisterhq/hoister/internal/agent/snapshot"
	"github.com/hoisterhq/hoister/internal/agent/sse"
	"github.com/hoisterhq/hoister/internal/agent/testmessage"
	"github.com/hoisterhq/hoister/internal/clock"
	"github.com/hoisterhq/hoister/internal/config"
	"github.com/hoisterhq/hoister/internal/controller/domain"
	"github.com/hoisterhq/hoister/internal/dispatch"
	"github.com/hoisterhq/hoister/internal/logging"
	"github.com/hoisterhq/hoister/internal/runtime"
)

// version and commit are set at build time via ldflags.
var version = "dev"
var commit = "unknown"

func main() {
	cfg, err := config.LoadAgentConfig(os.Getenv("HOISTER_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogJSON)
	log.Info("starting hoister-agent", "version", version, "commit", commit, "project", cfg.Project, "host", cfg.HostName)

	rt, err := runtime.NewClient(cfg.RuntimeEndpoint, &runtime.TLSConfig{
		CACert:     cfg.RuntimeCACert,
		ClientCert: cfg.RuntimeCert,
		ClientKey:  cfg.RuntimeKey,
	})
	if err != nil {
		log.Error("failed to connect to container runtime", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if cfg.Project == "" {
		cfg.Project = resolveProjectName(ctx, rt, log)
	}

	res := resolver.New(registryCredentials(cfg))
	snap := snapshot.New(rt)
	eng := engine.New(rt, res, snap, clock.Real{}, log)

	notifiers, ha := buildNotifiers(cfg, log)
	multi := dispatch.NewMulti(log, notifiers...)
	rep := reporter.New(cfg.ControllerURL, cfg.ControllerToken, multi, log)
	rep.SetHomeAssistant(ha)
	go rep.Run(ctx)

	if cfg.SendTestMessage {
		testmessage.Send(ctx, rep, cfg.HostName)
		log.Info("test message sent, exiting")
		return
	}

	sweep := func(ctx context.Context) {
		containers, err := rt.ListManaged(ctx, cfg.Project, false)
		if err != nil {
			log.Warn("sweep: list managed containers failed", "error", err)
			return
		}
		for _, c := range containers {
			if !engine.IsEnabled(c.Labels) {
				continue
			}
			res := eng.Update(ctx, cfg.Project, c.ID, containerDisplayName(c))
			rep.Submit(ctx, res)
		}
	}

	sched, err := scheduler.New(scheduler.Config{
		Interval: cfg.ScheduleInterval(),
		Cron:     cfg.ScheduleCron,
	}, sweep, clock.Real{}, log)
	if err != nil {
		log.Error("invalid schedule configuration", "error", err)
		os.Exit(1)
	}

	consumer := sse.New(cfg.ControllerURL, cfg.ControllerToken, func(ctx context.Context, evt domain.ControllerEvent) {
		if evt.Type != domain.ControllerEventRetry {
			return
		}
		log.Info("sse: retry requested", "container", evt.ContainerID, "project", evt.ProjectName)
		res := eng.Update(ctx, evt.ProjectName, evt.ContainerID, evt.ContainerID)
		rep.Submit(ctx, res)
	}, log)

	inv := inventory.New(rt, cfg.ControllerURL, cfg.ControllerToken, cfg.Project, false, log)

	go consumer.Run(ctx)
	go runInventoryLoop(ctx, inv, cfg.HostName, log)

	if err := sched.Run(ctx); err != nil {
		log.Error("scheduler stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("hoister-agent stopped")
}

func runInventoryLoop(ctx context.Context, inv *inventory.Reporter, host string, log *logging.Logger) {
	ticker := time.NewTicker(inventory.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := inv.Tick(ctx, host); err != nil {
				log.Warn("inventory: tick failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func registryCredentials(cfg *config.AgentConfig) map[string]resolver.Credential {
	out := make(map[string]resolver.Credential, len(cfg.Registries))
	for host, cred := range cfg.Registries {
		out[host] = resolver.Credential{Username: cred.Username, Token: cred.Token}
	}
	return out
}

// buildNotifiers configures every dispatch transport named in cfg.Dispatcher
// and returns them alongside an optional Home Assistant MQTT discovery
// publisher, which rides the same MQTT connection but is driven separately
// since it needs the full domain.Deployment rather than a rendered Message.
func buildNotifiers(cfg *config.AgentConfig, log *logging.Logger) ([]dispatch.Notifier, *dispatch.HomeAssistantPublisher) {
	var notifiers []dispatch.Notifier
	d := cfg.Dispatcher

	if d.TelegramBotToken != "" && d.TelegramChatID != "" {
		notifiers = append(notifiers, dispatch.NewTelegram(d.TelegramBotToken, d.TelegramChatID))
	}
	if d.DiscordWebhook != "" {
		notifiers = append(notifiers, dispatch.NewDiscord(d.DiscordWebhook))
	}
	if d.SlackWebhook != "" {
		notifiers = append(notifiers, dispatch.NewSlack(d.SlackWebhook))
	}
	if d.GotifyURL != "" && d.GotifyToken != "" {
		notifiers = append(notifiers, dispatch.NewGotify(d.GotifyURL, d.GotifyToken))
	}
	if d.EmailHost != "" && len(d.EmailTo) > 0 {
		notifiers = append(notifiers, dispatch.NewEmail(d.EmailHost, d.EmailPort, d.EmailUsername, d.EmailPassword, d.EmailFrom, d.EmailTo))
	}

	var ha *dispatch.HomeAssistantPublisher
	if d.MQTTBrokerURL != "" {
		m, err := dispatch.NewMQTT(d.MQTTBrokerURL, "hoister-agent", d.MQTTTopic)
		if err != nil {
			log.Warn("mqtt: failed to configure notifier, skipping", "error", err)
		} else {
			notifiers = append(notifiers, m)
			if d.HomeAssistant {
				ha = dispatch.NewHomeAssistantPublisher(m)
			}
		}
	}
	return notifiers, ha
}

// resolveProjectName implements the autodiscovery fallback named in spec §6
// for an agent with no configured project: find the agent's own container
// via its "io.hoister.container=agent" label and read the compose project
// label off it, else fall back to the fixed name "hoister".
func resolveProjectName(ctx context.Context, rt runtime.ContainerRuntime, log *logging.Logger) string {
	containers, err := rt.ListManaged(ctx, "", true)
	if err != nil {
		log.Warn("project autodiscovery: list containers failed, using fallback", "error", err)
		return "hoister"
	}
	for _, c := range containers {
		if c.Labels["io.hoister.container"] != "agent" {
			continue
		}
		if project := c.Labels["com.docker.compose.project"]; project != "" {
			log.Info("detected project name from agent's own container", "project", project)
			return project
		}
	}
	return "hoister"
}

func containerDisplayName(c container.Summary) string {
	if len(c.Names) > 0 && len(c.Names[0]) > 0 {
		return strings.TrimPrefix(c.Names[0], "/")
	}
	if len(c.ID) >= 12 {
		return c.ID[:12]
	}
	return c.ID
}
