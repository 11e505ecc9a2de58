package config

import "testing"

func TestLoadAgentConfigRequiresControllerURL(t *testing.T) {
	t.Setenv("HOISTER_SCHEDULE_INTERVAL", "60")
	if _, err := LoadAgentConfig(""); err == nil {
		t.Fatal("expected error when controller.url is unset")
	}
}

func TestLoadAgentConfigDefaults(t *testing.T) {
	t.Setenv("HOISTER_CONTROLLER_URL", "https://controller.example.com")

	cfg, err := LoadAgentConfig("")
	if err != nil {
		t.Fatalf("LoadAgentConfig: %v", err)
	}
	if cfg.HostName != "undefined" {
		t.Errorf("HostName = %q, want undefined", cfg.HostName)
	}
	if cfg.ScheduleIntervalSeconds != 21600 {
		t.Errorf("ScheduleIntervalSeconds = %d, want 21600", cfg.ScheduleIntervalSeconds)
	}
	if !cfg.LogJSON {
		t.Error("LogJSON = false, want true")
	}
	if cfg.RuntimeEndpoint != "/var/run/docker.sock" {
		t.Errorf("RuntimeEndpoint = %q, want /var/run/docker.sock", cfg.RuntimeEndpoint)
	}
}

func TestLoadAgentConfigCronOverridesIntervalRequirement(t *testing.T) {
	t.Setenv("HOISTER_CONTROLLER_URL", "https://controller.example.com")
	t.Setenv("HOISTER_SCHEDULE_INTERVAL", "0")
	t.Setenv("HOISTER_SCHEDULE_CRON", "*/5 * * * * *")

	cfg, err := LoadAgentConfig("")
	if err != nil {
		t.Fatalf("LoadAgentConfig: %v", err)
	}
	if cfg.ScheduleCron != "*/5 * * * * *" {
		t.Errorf("ScheduleCron = %q", cfg.ScheduleCron)
	}
}

func TestLoadAgentConfigGHCRCredentials(t *testing.T) {
	t.Setenv("HOISTER_CONTROLLER_URL", "https://controller.example.com")
	t.Setenv("HOISTER_REGISTRY_GHCR_USERNAME", "alice")
	t.Setenv("HOISTER_REGISTRY_GHCR_TOKEN", "secret")

	cfg, err := LoadAgentConfig("")
	if err != nil {
		t.Fatalf("LoadAgentConfig: %v", err)
	}
	cred, ok := cfg.Registries["ghcr.io"]
	if !ok {
		t.Fatal("expected ghcr.io credential to be populated")
	}
	if cred.Username != "alice" || cred.Token != "secret" {
		t.Errorf("credential = %+v", cred)
	}
}

func TestLoadAgentConfigEmailToSplitsOnComma(t *testing.T) {
	t.Setenv("HOISTER_CONTROLLER_URL", "https://controller.example.com")
	t.Setenv("HOISTER_DISPATCHER_EMAIL_TO", "a@example.com, b@example.com")

	cfg, err := LoadAgentConfig("")
	if err != nil {
		t.Fatalf("LoadAgentConfig: %v", err)
	}
	if len(cfg.Dispatcher.EmailTo) != 2 || cfg.Dispatcher.EmailTo[0] != "a@example.com" || cfg.Dispatcher.EmailTo[1] != "b@example.com" {
		t.Errorf("EmailTo = %v", cfg.Dispatcher.EmailTo)
	}
}
