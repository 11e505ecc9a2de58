package config

import "testing"

func TestLoadControllerConfigDefaults(t *testing.T) {
	cfg, err := LoadControllerConfig()
	if err != nil {
		t.Fatalf("LoadControllerConfig: %v", err)
	}
	if cfg.Port != 3033 {
		t.Errorf("Port = %d, want 3033", cfg.Port)
	}
	if cfg.DatabasePath != "/data/hoister.db" {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
}

func TestLoadControllerConfigRejectsPartialTLS(t *testing.T) {
	t.Setenv("HOISTER_CONTROLLER_TLS_CERT_PATH", "/tmp/cert.pem")
	if _, err := LoadControllerConfig(); err == nil {
		t.Fatal("expected error for cert set without key")
	}
}

func TestLoadControllerConfigFromEnv(t *testing.T) {
	t.Setenv("HOISTER_CONTROLLER_API_SECRET", "s3cr3t")
	t.Setenv("HOISTER_CONTROLLER_PORT", "9000")

	cfg, err := LoadControllerConfig()
	if err != nil {
		t.Fatalf("LoadControllerConfig: %v", err)
	}
	if cfg.APISecret != "s3cr3t" {
		t.Errorf("APISecret = %q", cfg.APISecret)
	}
	if cfg.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Port)
	}
}
