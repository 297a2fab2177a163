package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	defaultAppEnv        = "dev"
	defaultAppLogLevel   = "info"
	defaultAppHTTPAddr   = ":8780"
	defaultBrokerAPIURL  = "https://integrate.definedgesecurities.com/dart/v1"
	defaultBrokerTimeout = 25
	defaultPlaceDelayMs  = 150
	defaultPlanDBPath    = "data/bracket.db"
	defaultOpsDBPath     = "data/operations.db"
)

// Load reads a YAML config file and returns the validated configuration.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	cfg.applyDefaults()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.App.Env) == "" {
		c.App.Env = defaultAppEnv
	}
	if strings.TrimSpace(c.App.LogLevel) == "" {
		c.App.LogLevel = defaultAppLogLevel
	}
	if strings.TrimSpace(c.App.HTTPAddr) == "" {
		c.App.HTTPAddr = defaultAppHTTPAddr
	}
	if strings.TrimSpace(c.Broker.APIURL) == "" {
		c.Broker.APIURL = defaultBrokerAPIURL
	}
	if c.Broker.TimeoutSeconds <= 0 {
		c.Broker.TimeoutSeconds = defaultBrokerTimeout
	}
	if c.Broker.PlaceDelayMs < 0 {
		c.Broker.PlaceDelayMs = 0
	} else if c.Broker.PlaceDelayMs == 0 {
		c.Broker.PlaceDelayMs = defaultPlaceDelayMs
	}
	if strings.TrimSpace(c.Store.PlanDB) == "" {
		c.Store.PlanDB = defaultPlanDBPath
	}
	if strings.TrimSpace(c.Store.OpsDB) == "" {
		c.Store.OpsDB = defaultOpsDBPath
	}
}

func validate(c *Config) error {
	if err := c.Broker.validate(); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(c.App.LogLevel)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("app.log_level %q is not a known level", c.App.LogLevel)
	}
	return nil
}

func (b *BrokerConfig) validate() error {
	raw := strings.TrimSpace(b.APIURL)
	if raw == "" {
		return fmt.Errorf("broker.api_url cannot be empty")
	}
	if _, err := url.Parse(raw); err != nil {
		return fmt.Errorf("broker.api_url is invalid: %w", err)
	}
	if strings.TrimSpace(b.SessionKey) == "" {
		return fmt.Errorf("broker.session_key cannot be empty")
	}
	return nil
}
