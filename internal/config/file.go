package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config for the YAML overlay. Durations are strings in
// Go duration syntax ("5s", "3m") so files stay readable.
type fileConfig struct {
	HTTPAddr string `yaml:"http_addr"`

	BackendURL   string `yaml:"backend_url"`
	BackendToken string `yaml:"backend_token"`

	MemberID string `yaml:"member_id"`
	GroupID  string `yaml:"group_id"`
	RideID   string `yaml:"ride_id"`

	UploadInterval    string `yaml:"upload_interval"`
	FixTimeout        string `yaml:"fix_timeout"`
	PollInterval      string `yaml:"poll_interval"`
	AlertSyncInterval string `yaml:"alert_sync_interval"`
	AlertTTL          string `yaml:"alert_ttl"`
	StaleAfter        string `yaml:"stale_after"`
	AnomalyAlertTTL   string `yaml:"anomaly_alert_ttl"`

	MQTTBroker   string `yaml:"mqtt_broker"`
	MQTTClientID string `yaml:"mqtt_client_id"`
	MQTTTopic    string `yaml:"mqtt_topic"`

	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisGeoKey   string `yaml:"redis_geo_key"`

	PGDSN string `yaml:"pg_dsn"`

	LogLevel  string `yaml:"log_level"`
	AutoTrack *bool  `yaml:"auto_track"`
}

func applyFile(cfg *Config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&cfg.HTTPAddr, fc.HTTPAddr)
	setString(&cfg.BackendURL, fc.BackendURL)
	setString(&cfg.BackendToken, fc.BackendToken)
	setString(&cfg.MemberID, fc.MemberID)
	setString(&cfg.GroupID, fc.GroupID)
	setString(&cfg.RideID, fc.RideID)
	setString(&cfg.MQTTBroker, fc.MQTTBroker)
	setString(&cfg.MQTTClientID, fc.MQTTClientID)
	setString(&cfg.MQTTTopic, fc.MQTTTopic)
	setString(&cfg.KafkaTopic, fc.KafkaTopic)
	setString(&cfg.RedisAddr, fc.RedisAddr)
	setString(&cfg.RedisPassword, fc.RedisPassword)
	setString(&cfg.RedisGeoKey, fc.RedisGeoKey)
	setString(&cfg.PGDSN, fc.PGDSN)
	setString(&cfg.LogLevel, fc.LogLevel)
	if len(fc.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = fc.KafkaBrokers
	}
	if fc.AutoTrack != nil {
		cfg.AutoTrack = *fc.AutoTrack
	}

	var errs []error
	setDuration(&cfg.UploadInterval, fc.UploadInterval, "upload_interval", &errs)
	setDuration(&cfg.FixTimeout, fc.FixTimeout, "fix_timeout", &errs)
	setDuration(&cfg.PollInterval, fc.PollInterval, "poll_interval", &errs)
	setDuration(&cfg.AlertSyncInterval, fc.AlertSyncInterval, "alert_sync_interval", &errs)
	setDuration(&cfg.AlertTTL, fc.AlertTTL, "alert_ttl", &errs)
	setDuration(&cfg.StaleAfter, fc.StaleAfter, "stale_after", &errs)
	setDuration(&cfg.AnomalyAlertTTL, fc.AnomalyAlertTTL, "anomaly_alert_ttl", &errs)
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func setString(target *string, v string) {
	if v != "" {
		*target = v
	}
}

func setDuration(target *time.Duration, v, field string, errs *[]error) {
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s in config file: %w", field, err))
		return
	}
	*target = d
}
