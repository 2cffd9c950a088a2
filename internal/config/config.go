// Package config defines the global configuration structure for the AgriPal
// service. Configuration is loaded once at process initialization and is
// immutable thereafter, following 12-Factor principles: code and
// configuration stay strictly separated, and every component receives only
// the config subset it requires.
//
// Any missing required value or invalid format causes the application to
// exit immediately on startup (fail fast).
package config

import (
	"time"
)

// Config is the top-level configuration struct for the AgriPal service.
// Populated once during process initialization and never modified.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"agripal"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server   ServerConfig
	Database DatabaseConfig
	Feed     FeedConfig
	Alerts   AlertsConfig
	AI       AIConfig
	Realtime RealtimeConfig
	Device   DeviceConfig
	Storage  StorageConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"8080"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"15s"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL string `envconfig:"DATABASE_URL" validate:"required,url"`

	// Tuning Parameters
	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout  time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
}

// FeedConfig tunes the polling feeds that keep held result sets fresh.
type FeedConfig struct {
	// DashboardInterval is the poll period for the primary dashboard feed.
	DashboardInterval time.Duration `envconfig:"FEED_DASHBOARD_INTERVAL" default:"10s"`
	// DetailInterval is the poll period for the per-device detail feed.
	DetailInterval time.Duration `envconfig:"FEED_DETAIL_INTERVAL" default:"30s"`
	// MaxHeld is the retention cap on readings held in memory per feed.
	MaxHeld int `envconfig:"FEED_MAX_HELD" default:"100" validate:"min=1"`
	// QueryTimeout bounds each store round trip.
	QueryTimeout time.Duration `envconfig:"FEED_QUERY_TIMEOUT" default:"10s"`

	// DashboardDevice is the device the primary dashboard feed follows.
	DashboardDevice string `envconfig:"FEED_DASHBOARD_DEVICE" default:"sensor_1"`
	// FarmID scopes feeds and notifications to one farm.
	FarmID string `envconfig:"FARM_ID" default:"farm1"`
}

// AlertsConfig holds threshold-notification cooldown windows. The low
// moisture window is configurable because the reference behavior was
// inconsistent about its units; one hour is the documented intent.
type AlertsConfig struct {
	LowMoistureCooldown  time.Duration `envconfig:"ALERT_LOW_MOISTURE_COOLDOWN" default:"1h"`
	HighTempCooldown     time.Duration `envconfig:"ALERT_HIGH_TEMP_COOLDOWN" default:"3h"`
	DisconnectedCooldown time.Duration `envconfig:"ALERT_DISCONNECTED_COOLDOWN" default:"30m"`
}

// AIConfig holds the text-generation collaborator credentials and model
// selection.
type AIConfig struct {
	APIKey  string        `envconfig:"GEMINI_API_KEY" validate:"required"`
	Model   string        `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash-lite"`
	BaseURL string        `envconfig:"GEMINI_BASE_URL"` // override for testing
	Timeout time.Duration `envconfig:"GEMINI_TIMEOUT" default:"15s"`
}

// RealtimeConfig holds the MQTT push channel settings.
type RealtimeConfig struct {
	Enabled  bool   `envconfig:"REALTIME_ENABLED" default:"true"`
	BrokerURL string `envconfig:"MQTT_BROKER_URL" default:"tcp://localhost:1883"`
	Username string `envconfig:"MQTT_USERNAME"`
	Password string `envconfig:"MQTT_PASSWORD"`
	ClientID string `envconfig:"MQTT_CLIENT_ID" default:"agripal-server"`
	// Topic is the subscription filter for new-reading signals.
	Topic string `envconfig:"MQTT_TOPIC" default:"farm/+/sensor/+/reading"`
}

// DeviceConfig holds the local device-control endpoint settings.
type DeviceConfig struct {
	ControlBaseURL string        `envconfig:"DEVICE_CONTROL_URL" default:"http://localhost:3001"`
	Timeout        time.Duration `envconfig:"DEVICE_CONTROL_TIMEOUT" default:"10s"`
}

// StorageConfig holds the S3-compatible object storage settings used for
// camera/media listings. EndpointURL points at the hosted provider's
// S3-compatible gateway; empty means plain AWS S3.
type StorageConfig struct {
	Enabled     bool   `envconfig:"STORAGE_ENABLED" default:"false"`
	Region      string `envconfig:"STORAGE_REGION" default:"us-east-1"`
	EndpointURL string `envconfig:"STORAGE_ENDPOINT_URL"`
	MediaBucket string `envconfig:"STORAGE_MEDIA_BUCKET"`
	PublicBase  string `envconfig:"STORAGE_PUBLIC_BASE_URL"`
}
