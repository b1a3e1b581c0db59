package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Alexa    AlexaConfig    `mapstructure:"alexa"`
	Shadow   ShadowConfig   `mapstructure:"shadow"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	MigrationsPath string `mapstructure:"migrations_path"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AlexaConfig holds the Login-with-Amazon and event-gateway endpoints plus
// the skill's client credentials.
type AlexaConfig struct {
	GatewayURL   string `mapstructure:"gateway_url"`
	TokenURL     string `mapstructure:"token_url"`
	ProfileURL   string `mapstructure:"profile_url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// ShadowConfig holds the device-shadow store endpoint and the two staleness
// windows, in seconds. StaleWindow bounds the age of a reported property
// before it is dropped from state reports; ReachabilityWindow bounds the age
// of the last shadow observation before the device counts as unreachable.
type ShadowConfig struct {
	BaseURL            string `mapstructure:"base_url"`
	StaleWindow        int    `mapstructure:"stale_window"`
	ReachabilityWindow int    `mapstructure:"reachability_window"`
}

type MQTTConfig struct {
	BrokerURL   string `mapstructure:"broker_url"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	EventsTopic string `mapstructure:"events_topic"`
	QoS         int    `mapstructure:"qos"`
}

// Load reads configuration from configs/config.yaml with BRIDGE_* environment
// variable overrides.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("BRIDGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine, defaults plus env cover everything.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 3004)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.mode", "development")

	viper.SetDefault("database.path", "./data/bridge.db")
	viper.SetDefault("database.migrations_path", "./migrations")
	viper.SetDefault("database.max_connections", 10)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("alexa.gateway_url", "https://api.amazonalexa.com")
	viper.SetDefault("alexa.token_url", "https://api.amazon.com/auth/o2/token")
	viper.SetDefault("alexa.profile_url", "https://api.amazon.com/user/profile")

	viper.SetDefault("shadow.stale_window", 600)
	viper.SetDefault("shadow.reachability_window", 3600)

	viper.SetDefault("mqtt.broker_url", "tcp://localhost:1883")
	viper.SetDefault("mqtt.client_id", "smarthome-bridge")
	viper.SetDefault("mqtt.events_topic", "devices/events")
	viper.SetDefault("mqtt.qos", 0)
}
