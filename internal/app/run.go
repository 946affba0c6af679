package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"haversine-sensor/internal/config"
	"haversine-sensor/internal/db"
	"haversine-sensor/internal/httpapi"
	"haversine-sensor/internal/landmark"
	"haversine-sensor/internal/metrics"
	"haversine-sensor/internal/migrate"
	"haversine-sensor/internal/mqtt"
	"haversine-sensor/internal/upstream"
)

func Run(ctx context.Context, cfg config.Config) error {
	logger := slog.Default()
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"componentConfig", cfg.ComponentConfig,
		"readingsTimeout", cfg.ReadingsTimeout,
		"sqliteDriver", cfg.SQLiteDriver,
		"sqlitePath", cfg.SQLitePath,
		"sqliteMaxOpenConns", cfg.SQLiteMaxOpenConns,
		"sqliteMaxIdleConns", cfg.SQLiteMaxIdleConns,
		"sqliteConnMaxLifetime", cfg.SQLiteConnMaxLifetime,
		"mqttEnabled", cfg.MQTTEnabled,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"kafkaBrokers", cfg.KafkaBrokers,
		"publishInterval", cfg.PublishInterval,
		"publishTopic", cfg.PublishTopic,
	)

	dbConn, err := db.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := dbConn.Close(); closeErr != nil {
			slog.Error("db close", "error", closeErr)
		}
	}()

	if _, err := migrate.Up(ctx, dbConn, logger); err != nil {
		return err
	}
	slog.Info("database ready")
	landmarks := landmark.NewRepository(dbConn)

	env := upstream.Env{
		KafkaBrokers: cfg.KafkaBrokers,
		KafkaGroupID: cfg.KafkaGroupID,
		Landmarks:    landmarks,
	}

	var mqttClient *mqtt.Client
	if cfg.MQTTEnabled {
		mqttClient = mqtt.NewClient(cfg, logger)
		env.MQTT = mqttClient

		// A short timeout keeps startup going when the broker is down.
		// Subscriptions made while offline are applied on connect.
		connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
		err = mqttClient.Connect(connectCtx)
		connectCancel()
		if err != nil {
			slog.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
		}
	}

	m := metrics.New()
	h := newHost(cfg.ComponentConfig, env, m, logger)
	if err := h.load(); err != nil {
		_ = h.close()
		return err
	}
	defer func() {
		if err := h.close(); err != nil {
			slog.Error("closing dependencies", "error", err)
		}
	}()

	mux := httpapi.NewMux(httpapi.Options{
		DB:              dbConn,
		Sensor:          h.component(),
		Landmarks:       landmarks,
		Metrics:         m,
		Reconfigure:     h.reconfigure,
		ReadingsTimeout: cfg.ReadingsTimeout,
		StreamInterval:  cfg.StreamInterval,
	})
	srv := httpapi.NewServer(cfg, mux)

	pubCtx, stopPublisher := context.WithCancel(ctx)
	defer stopPublisher()
	pubDone := make(chan struct{})
	if cfg.PublishInterval > 0 && mqttClient != nil {
		go func() {
			defer close(pubDone)
			publishLoop(pubCtx, h.component(), mqttClient, cfg.PublishTopic, cfg.PublishInterval, cfg.ReadingsTimeout, logger)
		}()
	} else {
		close(pubDone)
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

wait:
	for {
		select {
		case <-ctx.Done():
			break wait
		case <-hup:
			slog.Info("reloading component config", "path", cfg.ComponentConfig)
			if err := h.load(); err != nil {
				slog.Error("reload failed", "error", err)
			}
		case err := <-errCh:
			stopPublisher()
			<-pubDone
			if mqttClient != nil {
				mqttClient.Disconnect()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stopPublisher()
	<-pubDone

	if mqttClient != nil {
		slog.Info("mqtt disconnecting")
		mqttClient.Disconnect()
	}

	slog.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}
