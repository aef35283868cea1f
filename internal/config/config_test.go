package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	conf, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if conf.LogLevel != "info" {
		t.Errorf("log_level = %q", conf.LogLevel)
	}
	if conf.Listen.Addr != ":5064" {
		t.Errorf("listen.addr = %q", conf.Listen.Addr)
	}
	if conf.Publish.Kind != "mqtt" {
		t.Errorf("publish.kind = %q", conf.Publish.Kind)
	}
	if conf.Publish.MQTT.Broker != "tcp://127.0.0.1:1883" {
		t.Errorf("broker = %q", conf.Publish.MQTT.Broker)
	}
	if conf.Publish.MQTT.Prefix != "eelink" {
		t.Errorf("prefix = %q", conf.Publish.MQTT.Prefix)
	}
	if conf.Publish.MQTT.QOS != 0 || !conf.Publish.MQTT.Retained {
		t.Errorf("qos = %d retained = %v", conf.Publish.MQTT.QOS, conf.Publish.MQTT.Retained)
	}
	if conf.Publish.StatusFlags {
		t.Error("status_flags should default off")
	}
	if conf.Web.Addr != "" {
		t.Errorf("web.addr = %q", conf.Web.Addr)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	os.Setenv("EELINK_PUBLISH_MQTT_BROKER", "tcp://10.0.0.9:1883")
	os.Setenv("EELINK_PUBLISH_KIND", "log")
	defer os.Unsetenv("EELINK_PUBLISH_MQTT_BROKER")
	defer os.Unsetenv("EELINK_PUBLISH_KIND")
	conf, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if conf.Publish.MQTT.Broker != "tcp://10.0.0.9:1883" {
		t.Errorf("broker = %q", conf.Publish.MQTT.Broker)
	}
	if conf.Publish.Kind != "log" {
		t.Errorf("publish.kind = %q", conf.Publish.Kind)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eelink.yaml")
	body := []byte("listen:\n  addr: \":6000\"\npublish:\n  kind: nats\n  status_flags: true\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}
	conf, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if conf.Listen.Addr != ":6000" {
		t.Errorf("listen.addr = %q", conf.Listen.Addr)
	}
	if conf.Publish.Kind != "nats" {
		t.Errorf("publish.kind = %q", conf.Publish.Kind)
	}
	if !conf.Publish.StatusFlags {
		t.Error("status_flags not set")
	}
	if conf.Publish.MQTT.Broker != "tcp://127.0.0.1:1883" {
		t.Errorf("default lost, broker = %q", conf.Publish.MQTT.Broker)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []string{
		"publish:\n  kind: kafka\n",
		"log_level: loud\n",
		"listen:\n  addr: nowhere\n",
		"publish:\n  mqtt:\n    qos: 7\n",
	}
	for _, body := range cases {
		path := filepath.Join(t.TempDir(), "eelink.yaml")
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Errorf("config %q should not validate", body)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/does/not/exist.yaml"); err == nil {
		t.Error("expected error")
	}
}
