package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	// ComponentConfig is the JSON file describing the component and its dependencies.
	ComponentConfig string
	// ReadingsTimeout bounds a readings query when the request names no timeout.
	ReadingsTimeout time.Duration

	SQLiteDriver          string
	SQLiteDSN             string
	SQLitePath            string
	SQLiteMaxOpenConns    int
	SQLiteMaxIdleConns    int
	SQLiteConnMaxLifetime time.Duration
	SQLiteLogQueries      bool

	MQTTEnabled  bool
	MQTTBroker   string
	MQTTPort     int
	MQTTClientID string

	// KafkaBrokers is empty when Kafka dependencies are disabled.
	KafkaBrokers []string
	KafkaGroupID string

	// PublishInterval of zero disables the distance publisher.
	PublishInterval time.Duration
	PublishTopic    string
	StreamInterval  time.Duration
}

func LoadFromEnv() (Config, error) {
	appEnv := envString("APP_ENV", "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(envString("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	readingsTimeout, err := envDuration("READINGS_TIMEOUT", "5s")
	if err != nil {
		return Config{}, err
	}
	if readingsTimeout <= 0 {
		return Config{}, fmt.Errorf("READINGS_TIMEOUT must be positive, got %v", readingsTimeout)
	}

	maxOpenConns, err := envInt("SQLITE_MAX_OPEN_CONNS", "1")
	if err != nil {
		return Config{}, err
	}
	maxIdleConns, err := envInt("SQLITE_MAX_IDLE_CONNS", "1")
	if err != nil {
		return Config{}, err
	}
	connMaxLifetime, err := envDuration("SQLITE_CONN_MAX_LIFETIME", "0s")
	if err != nil {
		return Config{}, err
	}
	logQueries, err := envBool("SQLITE_LOG_QUERIES", "false")
	if err != nil {
		return Config{}, err
	}

	mqttEnabled, err := envBool("MQTT_ENABLED", "true")
	if err != nil {
		return Config{}, err
	}
	mqttPort, err := envInt("MQTT_PORT", "1883")
	if err != nil {
		return Config{}, err
	}
	if mqttPort <= 0 || mqttPort > 65535 {
		return Config{}, fmt.Errorf("MQTT_PORT out of range: %d", mqttPort)
	}

	var kafkaBrokers []string
	for _, b := range strings.Split(envString("KAFKA_BROKERS", ""), ",") {
		if b = strings.TrimSpace(b); b != "" {
			kafkaBrokers = append(kafkaBrokers, b)
		}
	}

	publishInterval, err := envDuration("PUBLISH_INTERVAL", "0s")
	if err != nil {
		return Config{}, err
	}
	if publishInterval < 0 {
		return Config{}, fmt.Errorf("PUBLISH_INTERVAL must not be negative, got %v", publishInterval)
	}

	streamInterval, err := envDuration("STREAM_INTERVAL", "1s")
	if err != nil {
		return Config{}, err
	}
	if streamInterval <= 0 {
		return Config{}, fmt.Errorf("STREAM_INTERVAL must be positive, got %v", streamInterval)
	}

	return Config{
		AppEnv:                appEnv,
		LogLevel:              level,
		HTTPAddr:              envString("HTTP_ADDR", ":8080"),
		ComponentConfig:       envString("COMPONENT_CONFIG", "haversine.json"),
		ReadingsTimeout:       readingsTimeout,
		SQLiteDriver:          envString("SQLITE_DRIVER", "sqlite3"),
		SQLiteDSN:             envString("SQLITE_DSN", ""),
		SQLitePath:            envString("SQLITE_PATH", "data/haversine.db"),
		SQLiteMaxOpenConns:    maxOpenConns,
		SQLiteMaxIdleConns:    maxIdleConns,
		SQLiteConnMaxLifetime: connMaxLifetime,
		SQLiteLogQueries:      logQueries,
		MQTTEnabled:           mqttEnabled,
		MQTTBroker:            envString("MQTT_BROKER", "localhost"),
		MQTTPort:              mqttPort,
		MQTTClientID:          envString("MQTT_CLIENT_ID", "haversine-sensor"),
		KafkaBrokers:          kafkaBrokers,
		KafkaGroupID:          envString("KAFKA_GROUP_ID", ""),
		PublishInterval:       publishInterval,
		PublishTopic:          envString("PUBLISH_TOPIC", "haversine/distance"),
		StreamInterval:        streamInterval,
	}, nil
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt(key, def string) (int, error) {
	s := envString(key, def)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

func envDuration(key, def string) (time.Duration, error) {
	s := envString(key, def)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return d, nil
}

func envBool(key, def string) (bool, error) {
	s := envString(key, def)
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return b, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
