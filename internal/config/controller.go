package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ControllerConfig is the full set of options recognized under the
// controller's HOISTER_CONTROLLER_ prefix.
type ControllerConfig struct {
	APISecret    string
	Port         int
	DatabasePath string
	TLSCertPath  string
	TLSKeyPath   string
	LogJSON      bool
}

// LoadControllerConfig reads HOISTER_CONTROLLER_-prefixed environment
// variables. The controller has no TOML file of its own in the option
// table; it is configured purely through its environment.
func LoadControllerConfig() (*ControllerConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("hoister_controller")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", 3033)
	v.SetDefault("database_path", "/data/hoister.db")
	v.SetDefault("log_json", true)

	cfg := &ControllerConfig{
		APISecret:    v.GetString("api_secret"),
		Port:         v.GetInt("port"),
		DatabasePath: v.GetString("database_path"),
		TLSCertPath:  v.GetString("tls_cert_path"),
		TLSKeyPath:   v.GetString("tls_key_path"),
		LogJSON:      v.GetBool("log_json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ControllerConfig) validate() error {
	if (c.TLSCertPath == "") != (c.TLSKeyPath == "") {
		return fmt.Errorf("tls_cert_path and tls_key_path must both be set or both empty")
	}
	if c.Port <= 0 {
		return fmt.Errorf("port must be > 0")
	}
	return nil
}
