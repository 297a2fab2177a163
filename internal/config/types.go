package config

// Config is the top-level configuration carrier.
type Config struct {
	App     AppConfig     `toml:"app"`
	Broker  BrokerConfig  `toml:"broker"`
	Store   StoreConfig   `toml:"store"`
	Presets PresetsConfig `toml:"presets"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// BrokerConfig describes the Definedge Integrate endpoint. The session key
// comes out of the interactive login flow, which is outside this service;
// it is injected here verbatim.
type BrokerConfig struct {
	APIURL             string `toml:"api_url"`
	SessionKey         string `toml:"session_key"`
	TimeoutSeconds     int    `toml:"timeout_seconds"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
	PlaceDelayMs       int    `toml:"place_delay_ms"`
}

type StoreConfig struct {
	PlanDB string `toml:"plan_db"`
	OpsDB  string `toml:"ops_db"`
}

type PresetsConfig struct {
	Path  string `toml:"path"`
	Watch bool   `toml:"watch"`
}
