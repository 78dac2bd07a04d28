// Package config holds runtime settings for the server: defaults, an optional
// YAML file, environment variables and command-line flags, applied in that order.
package config

import (
	"os"
	"strconv"
	"time"

	"roomie_server/models"
)

type Config struct {
	Env  string `yaml:"env"`
	Port string `yaml:"port"`

	// StoreBackend selects the document store: "dynamo" or "memory".
	StoreBackend   string `yaml:"store_backend"`
	AWSRegion      string `yaml:"aws_region"`
	DynamoEndpoint string `yaml:"dynamo_endpoint"`
	S3Bucket       string `yaml:"s3_bucket"`
	S3Endpoint     string `yaml:"s3_endpoint"`
	// Static S3 credentials, used with S3Endpoint for MinIO-style storage.
	S3AccessKey string `yaml:"s3_access_key"`
	S3SecretKey string `yaml:"s3_secret_key"`

	MaxTxAttempts int `yaml:"max_tx_attempts"`

	Feed  FeedConfig  `yaml:"feed"`
	Watch WatchConfig `yaml:"watch"`
}

type FeedConfig struct {
	RadiusKm       float64       `yaml:"radius_km"`
	PerBucketLimit int           `yaml:"per_bucket_limit"`
	MaxResults     int           `yaml:"max_results"`
	AdStride       int           `yaml:"ad_stride"`
	MinItems       int           `yaml:"min_items"`
	HistoryWindow  time.Duration `yaml:"history_window"`

	// Sponsored is the rotation list per viewer role.
	Sponsored map[models.Role][]models.Sponsored `yaml:"sponsored"`
	House     *models.Sponsored                  `yaml:"house"`
}

type WatchConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

// LoadDefaults populates c with development defaults.
func (c *Config) LoadDefaults() {
	c.Env = "development"
	c.Port = "8080"
	c.StoreBackend = "memory"
	c.AWSRegion = "us-east-1"
	c.S3Bucket = "roomie-images"
	c.MaxTxAttempts = 5
	c.Feed = FeedConfig{
		RadiusKm:       25,
		PerBucketLimit: 50,
		MaxResults:     100,
		AdStride:       4,
		MinItems:       3,
		HistoryWindow:  30 * 24 * time.Hour,
		Sponsored: map[models.Role][]models.Sponsored{
			models.RoleHunter: {
				{Title: "Movers from $99", LinkURL: "https://example.com/movers"},
				{Title: "Renters insurance in 5 minutes", LinkURL: "https://example.com/insurance"},
			},
			models.RoleHost: {
				{Title: "Verify your listing", LinkURL: "https://example.com/verify"},
				{Title: "Professional room photos", LinkURL: "https://example.com/photos"},
			},
		},
	}
	c.Watch = WatchConfig{PollInterval: 2 * time.Second}
}

// LoadConfig builds a Config from defaults, the YAML file named by -c or
// CONFIG_PATH, the environment and finally command-line flags.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	path := configPath(args)
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path != "" {
		if err := loadYAML(cfg, path); err != nil {
			return nil, err
		}
	}

	loadEnv(cfg)

	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnv(c *Config) {
	if v := os.Getenv("APP_ENV"); v != "" {
		c.Env = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Port = v
	}
	if v := os.Getenv("STORE_BACKEND"); v != "" {
		c.StoreBackend = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		c.AWSRegion = v
	}
	if v := os.Getenv("DYNAMO_ENDPOINT"); v != "" {
		c.DynamoEndpoint = v
	}
	if v := os.Getenv("S3_BUCKET_NAME"); v != "" {
		c.S3Bucket = v
	}
	if v := os.Getenv("S3_ENDPOINT"); v != "" {
		c.S3Endpoint = v
	}
	if v := os.Getenv("S3_ACCESS_KEY"); v != "" {
		c.S3AccessKey = v
	}
	if v := os.Getenv("S3_SECRET_KEY"); v != "" {
		c.S3SecretKey = v
	}
	if v, err := strconv.Atoi(os.Getenv("MAX_TX_ATTEMPTS")); err == nil && v > 0 {
		c.MaxTxAttempts = v
	}
}
