package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config captures all tunable parameters for the companion process. Values
// come from an optional YAML file (COMPANION_CONFIG) overridden by
// environment variables, with sane defaults so the binary can run locally
// without excessive setup.
type Config struct {
	HTTPAddr        string `validate:"required"`
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	BackendURL   string `validate:"omitempty,url"`
	BackendToken string

	MemberID string
	GroupID  string
	RideID   string

	UploadInterval    time.Duration `validate:"gt=0"`
	FixTimeout        time.Duration `validate:"gt=0"`
	PollInterval      time.Duration `validate:"gt=0"`
	AlertSyncInterval time.Duration `validate:"gt=0"`
	AlertTTL          time.Duration `validate:"gte=0"`
	StaleAfter        time.Duration `validate:"gt=0"`
	AnomalyAlertTTL   time.Duration `validate:"gt=0"`

	MQTTBroker   string
	MQTTClientID string
	MQTTTopic    string

	KafkaBrokers []string
	KafkaTopic   string

	RedisAddr     string
	RedisPassword string
	RedisGeoKey   string

	PGDSN string

	LogLevel      string
	RunMigrations bool
	AutoTrack     bool
}

func defaultConfig() Config {
	return Config{
		HTTPAddr:          ":8090",
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		ShutdownTimeout:   15 * time.Second,
		UploadInterval:    5 * time.Second,
		FixTimeout:        10 * time.Second,
		PollInterval:      3 * time.Second,
		AlertSyncInterval: 10 * time.Second,
		AlertTTL:          5 * time.Second,
		StaleAfter:        5 * time.Minute,
		AnomalyAlertTTL:   10 * time.Second,
		MQTTClientID:      "ride-companion",
		MQTTTopic:         "rides/position",
		KafkaTopic:        "ride-positions",
		RedisGeoKey:       "members_geo",
		LogLevel:          "info",
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// COMPANION_CONFIG (when set), then environment variables.
func Load() (Config, error) {
	cfg := defaultConfig()
	var errs []error

	if path := strings.TrimSpace(os.Getenv("COMPANION_CONFIG")); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return cfg, err
		}
	}

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	setStringFromEnv(&cfg.BackendURL, "BACKEND_URL")
	if v := os.Getenv("BACKEND_TOKEN"); v != "" {
		cfg.BackendToken = v
	}

	setStringFromEnv(&cfg.MemberID, "MEMBER_ID")
	setStringFromEnv(&cfg.GroupID, "GROUP_ID")
	setStringFromEnv(&cfg.RideID, "RIDE_ID")

	setDurationFromEnv(&cfg.UploadInterval, "UPLOAD_INTERVAL", &errs)
	setDurationFromEnv(&cfg.FixTimeout, "FIX_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.PollInterval, "POLL_INTERVAL", &errs)
	setDurationFromEnv(&cfg.AlertSyncInterval, "ALERT_SYNC_INTERVAL", &errs)
	setDurationFromEnv(&cfg.AlertTTL, "ALERT_TTL", &errs)
	setDurationFromEnv(&cfg.StaleAfter, "STALE_AFTER", &errs)
	setDurationFromEnv(&cfg.AnomalyAlertTTL, "ANOMALY_ALERT_TTL", &errs)

	setStringFromEnv(&cfg.MQTTBroker, "MQTT_BROKER")
	setStringFromEnv(&cfg.MQTTClientID, "MQTT_CLIENT_ID")
	setStringFromEnv(&cfg.MQTTTopic, "MQTT_TOPIC")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	setStringFromEnv(&cfg.RedisAddr, "REDIS_ADDR")
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	setStringFromEnv(&cfg.RedisGeoKey, "REDIS_GEO_KEY")

	setStringFromEnv(&cfg.PGDSN, "PG_DSN")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")
	cfg.AutoTrack = strings.EqualFold(os.Getenv("AUTO_TRACK"), "true")

	if err := validator.New().Struct(cfg); err != nil {
		errs = append(errs, fmt.Errorf("config validation: %w", err))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func setBoolFromEnv(target *bool, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = b
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
