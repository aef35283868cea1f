// Package config loads the bridge configuration from defaults, an optional
// yaml file and EELINK_ prefixed environment variables, in that order of
// precedence.
package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	LogLevel string `mapstructure:"log_level" validate:"oneof=trace debug info warn error"`

	Listen  ListenConfig  `mapstructure:"listen"`
	Publish PublishConfig `mapstructure:"publish"`
	Web     WebConfig     `mapstructure:"web"`
}

type ListenConfig struct {
	// Addr is the direct tcp listener for devices. Empty disables it.
	Addr string `mapstructure:"addr" validate:"omitempty,hostname_port"`
	// TunnelAddr is the yamux rendezvous endpoint. Empty disables it.
	TunnelAddr     string `mapstructure:"tunnel_addr" validate:"omitempty,hostname_port"`
	TunnelToken    string `mapstructure:"tunnel_token"`
	DeviceLogLevel string `mapstructure:"device_log_level" validate:"omitempty,oneof=trace debug info warn error"`
}

type PublishConfig struct {
	Kind        string     `mapstructure:"kind" validate:"oneof=mqtt nats log"`
	StatusFlags bool       `mapstructure:"status_flags"`
	MQTT        MQTTConfig `mapstructure:"mqtt"`
	NATS        NATSConfig `mapstructure:"nats"`
}

type MQTTConfig struct {
	Broker   string `mapstructure:"broker" validate:"required"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	ClientID string `mapstructure:"client_id"`
	Prefix   string `mapstructure:"prefix" validate:"required"`
	QOS      byte   `mapstructure:"qos" validate:"lte=2"`
	Retained bool   `mapstructure:"retained"`
}

type NATSConfig struct {
	URL      string `mapstructure:"url" validate:"required"`
	Name     string `mapstructure:"name"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Prefix   string `mapstructure:"prefix" validate:"required"`
}

type WebConfig struct {
	// Addr is the monitoring api listener. Empty disables it.
	Addr string `mapstructure:"addr" validate:"omitempty,hostname_port"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("listen.addr", ":5064")
	v.SetDefault("listen.tunnel_addr", "")
	v.SetDefault("listen.tunnel_token", "")
	v.SetDefault("listen.device_log_level", "")
	v.SetDefault("publish.kind", "mqtt")
	v.SetDefault("publish.status_flags", false)
	v.SetDefault("publish.mqtt.broker", "tcp://127.0.0.1:1883")
	v.SetDefault("publish.mqtt.username", "mosquitto")
	v.SetDefault("publish.mqtt.password", "mosquitto")
	v.SetDefault("publish.mqtt.client_id", "")
	v.SetDefault("publish.mqtt.prefix", "eelink")
	v.SetDefault("publish.mqtt.qos", 0)
	v.SetDefault("publish.mqtt.retained", true)
	v.SetDefault("publish.nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("publish.nats.name", "eelink2mqtt")
	v.SetDefault("publish.nats.username", "")
	v.SetDefault("publish.nats.password", "")
	v.SetDefault("publish.nats.prefix", "eelink")
	v.SetDefault("web.addr", "")
}

// Load reads the configuration, path may be empty to run on defaults and
// environment only. EELINK_PUBLISH_MQTT_BROKER overrides publish.mqtt.broker
// and so on.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("eelink")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	conf := &Config{}
	if err := v.Unmarshal(conf); err != nil {
		return nil, err
	}
	if err := validator.New().Struct(conf); err != nil {
		return nil, err
	}
	return conf, nil
}
