package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Limits bound what a single deployment may contain. All values are
// overridable; the defaults match the published service limits.
type Limits struct {
	MaxZipSize      int64 `yaml:"maxZipSize"`      // request/archive bytes held in memory
	MaxFileSize     int64 `yaml:"maxFileSize"`     // uncompressed bytes per archive member
	MaxFilesInZip   int   `yaml:"maxFilesInZip"`   // non-directory members per archive
	MaxUncompressed int64 `yaml:"maxUncompressed"` // uncompressed bytes per archive
	MaxSitesPerUser int   `yaml:"maxSitesPerUser"` // active deployments per owner
	CleanupPageSize int   `yaml:"cleanupPageSize"` // object listing page size during rollback
}

type Storage struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"useSSL"`
}

type Config struct {
	Env            string  `yaml:"env"`
	HttpPort       string  `yaml:"httpPort"`
	SessionSecret  string  `yaml:"sessionSecret"`
	Storage        Storage `yaml:"storage"`
	PublicEndpoint string  `yaml:"publicEndpoint"` // base URL published site links are built from
	Namespace      string  `yaml:"namespace"`      // object-storage namespace used in site URLs
	MetadataBucket string  `yaml:"metadataBucket"` // private bucket holding users.json / buckets.json
	BucketPrefix   string  `yaml:"bucketPrefix"`   // prefix for generated site bucket names
	Limits         Limits  `yaml:"limits"`
}

// Load builds the configuration from an optional YAML file (CONFIG_FILE)
// overlaid with environment variables. Env always wins so containers can
// override a mounted file per deployment.
func Load() (*Config, error) {
	cfg := &Config{
		Env:            "dev",
		HttpPort:       "8080",
		MetadataBucket: "host-service-metadata",
		BucketPrefix:   "site",
		Limits: Limits{
			MaxZipSize:      50 << 20,
			MaxFileSize:     10 << 20,
			MaxFilesInZip:   1000,
			MaxUncompressed: 100 << 20,
			MaxSitesPerUser: 5,
			CleanupPageSize: 1000,
		},
	}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	cfg.Env = getEnv("APP_ENV", cfg.Env)
	cfg.HttpPort = getEnv("HTTP_PORT", cfg.HttpPort)
	cfg.SessionSecret = getEnv("SESSION_SECRET", cfg.SessionSecret)
	cfg.Storage.Endpoint = getEnv("STORAGE_ENDPOINT", cfg.Storage.Endpoint)
	cfg.Storage.AccessKey = getEnv("STORAGE_ACCESS_KEY", cfg.Storage.AccessKey)
	cfg.Storage.SecretKey = getEnv("STORAGE_SECRET_KEY", cfg.Storage.SecretKey)
	cfg.Storage.Region = getEnv("STORAGE_REGION", cfg.Storage.Region)
	cfg.Storage.UseSSL = getEnvBool("STORAGE_USE_SSL", cfg.Storage.UseSSL)
	cfg.PublicEndpoint = getEnv("PUBLIC_ENDPOINT", cfg.PublicEndpoint)
	cfg.Namespace = getEnv("STORAGE_NAMESPACE", cfg.Namespace)
	cfg.MetadataBucket = getEnv("METADATA_BUCKET_NAME", cfg.MetadataBucket)
	cfg.BucketPrefix = getEnv("BUCKET_PREFIX", cfg.BucketPrefix)
	cfg.Limits.MaxZipSize = getEnvInt64("MAX_ZIP_SIZE", cfg.Limits.MaxZipSize)
	cfg.Limits.MaxFileSize = getEnvInt64("MAX_FILE_SIZE", cfg.Limits.MaxFileSize)
	cfg.Limits.MaxFilesInZip = getEnvInt("MAX_FILES_IN_ZIP", cfg.Limits.MaxFilesInZip)
	cfg.Limits.MaxUncompressed = getEnvInt64("MAX_UNCOMPRESSED_SIZE", cfg.Limits.MaxUncompressed)
	cfg.Limits.MaxSitesPerUser = getEnvInt("MAX_SITES_PER_USER", cfg.Limits.MaxSitesPerUser)
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil && i > 0 {
			return i
		}
	}
	return def
}
