package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{
		"APP_ENV", "LOG_LEVEL", "HTTP_ADDR", "COMPONENT_CONFIG", "READINGS_TIMEOUT",
		"SQLITE_DRIVER", "SQLITE_DSN", "SQLITE_PATH", "SQLITE_MAX_OPEN_CONNS", "SQLITE_MAX_IDLE_CONNS",
		"SQLITE_CONN_MAX_LIFETIME", "SQLITE_LOG_QUERIES", "MQTT_ENABLED", "MQTT_BROKER", "MQTT_PORT",
		"MQTT_CLIENT_ID", "KAFKA_BROKERS", "KAFKA_GROUP_ID", "PUBLISH_INTERVAL", "PUBLISH_TOPIC",
		"STREAM_INTERVAL",
	} {
		t.Setenv(key, "")
	}

	got, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v, want nil", err)
	}

	if got.AppEnv != "dev" {
		t.Errorf("AppEnv = %q, want %q", got.AppEnv, "dev")
	}
	if got.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", got.LogLevel, slog.LevelInfo)
	}
	if got.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", got.HTTPAddr, ":8080")
	}
	if got.ComponentConfig != "haversine.json" {
		t.Errorf("ComponentConfig = %q, want haversine.json", got.ComponentConfig)
	}
	if got.ReadingsTimeout != 5*time.Second {
		t.Errorf("ReadingsTimeout = %v, want 5s", got.ReadingsTimeout)
	}
	if got.SQLiteDriver != "sqlite3" || got.SQLitePath != "data/haversine.db" {
		t.Errorf("sqlite = %q %q", got.SQLiteDriver, got.SQLitePath)
	}
	if !got.MQTTEnabled || got.MQTTBroker != "localhost" || got.MQTTPort != 1883 || got.MQTTClientID != "haversine-sensor" {
		t.Errorf("mqtt = %v %q %d %q", got.MQTTEnabled, got.MQTTBroker, got.MQTTPort, got.MQTTClientID)
	}
	if len(got.KafkaBrokers) != 0 {
		t.Errorf("KafkaBrokers = %v, want empty", got.KafkaBrokers)
	}
	if got.PublishInterval != 0 || got.PublishTopic != "haversine/distance" {
		t.Errorf("publish = %v %q", got.PublishInterval, got.PublishTopic)
	}
	if got.StreamInterval != time.Second {
		t.Errorf("StreamInterval = %v, want 1s", got.StreamInterval)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("LOG_LEVEL", "WARNING")
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092, ,kafka-2:9092 ")
	t.Setenv("PUBLISH_INTERVAL", "30s")
	t.Setenv("SQLITE_LOG_QUERIES", "true")
	t.Setenv("MQTT_ENABLED", "false")

	got, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if got.AppEnv != "prod" || got.LogLevel != slog.LevelWarn {
		t.Errorf("env/level = %q %v", got.AppEnv, got.LogLevel)
	}
	if want := []string{"kafka-1:9092", "kafka-2:9092"}; !reflect.DeepEqual(got.KafkaBrokers, want) {
		t.Errorf("KafkaBrokers = %v, want %v", got.KafkaBrokers, want)
	}
	if got.PublishInterval != 30*time.Second || !got.SQLiteLogQueries || got.MQTTEnabled {
		t.Errorf("got %+v", got)
	}
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"APP_ENV", "staging"},
		{"LOG_LEVEL", "verbose"},
		{"READINGS_TIMEOUT", "0s"},
		{"READINGS_TIMEOUT", "soon"},
		{"MQTT_PORT", "abc"},
		{"MQTT_PORT", "70000"},
		{"SQLITE_MAX_OPEN_CONNS", "many"},
		{"SQLITE_LOG_QUERIES", "maybe"},
		{"PUBLISH_INTERVAL", "-1s"},
		{"STREAM_INTERVAL", "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := LoadFromEnv(); err == nil {
				t.Fatalf("LoadFromEnv() error = nil, want error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "haversine.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func TestLoadComponentFile(t *testing.T) {
	path := writeFile(t, `{
		"name": "distance",
		"attributes": {
			"sensor_1": {"name": "boat", "latitude": "position.latitude", "longitude": "position.longitude"}
		},
		"dependencies": [
			{"name": "boat", "api": "movement_sensor", "type": "nmea", "attributes": {"port": "/dev/ttyUSB0"}},
			{"name": "harbour", "api": "sensor", "type": "landmark"}
		]
	}`)

	cf, err := LoadComponentFile(path)
	if err != nil {
		t.Fatalf("LoadComponentFile() error = %v", err)
	}
	if cf.Name != "distance" || len(cf.Dependencies) != 2 {
		t.Fatalf("got %+v", cf)
	}
	if cf.Dependencies[0].Attributes["port"] != "/dev/ttyUSB0" {
		t.Errorf("dependency attributes = %v", cf.Dependencies[0].Attributes)
	}
}

func TestLoadComponentFile_Defaults(t *testing.T) {
	cf, err := LoadComponentFile(writeFile(t, `{}`))
	if err != nil {
		t.Fatalf("LoadComponentFile() error = %v", err)
	}
	if cf.Name != "haversine" || cf.Attributes == nil {
		t.Errorf("got %+v", cf)
	}
}

func TestLoadComponentFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "syntax", body: `{`, wantErr: "decode"},
		{name: "unknown field", body: `{"sensors": []}`, wantErr: "unknown field"},
		{name: "bad api", body: `{"dependencies": [{"name": "a", "api": "camera", "type": "static"}]}`, wantErr: "unknown api"},
		{name: "missing type", body: `{"dependencies": [{"name": "a", "api": "sensor"}]}`, wantErr: "type is required"},
		{name: "missing name", body: `{"dependencies": [{"api": "sensor", "type": "static"}]}`, wantErr: "name is required"},
		{
			name:    "duplicate",
			body:    `{"dependencies": [{"name": "a", "api": "sensor", "type": "static"}, {"name": "a", "api": "sensor", "type": "mqtt"}]}`,
			wantErr: "duplicate sensor/a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadComponentFile(writeFile(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("LoadComponentFile() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadComponentFile_Missing(t *testing.T) {
	if _, err := LoadComponentFile(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
