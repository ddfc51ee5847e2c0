package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/flagx"
	"github.com/dmitrijs2005/gophvault/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "1s" and integer nanoseconds.
type JsonConfig struct {
	EndpointAddrGRPC string `json:"endpoint_addr_grpc"`
	DatabaseDSN      string `json:"database_dsn"`
	SecretKey        string `json:"secret_key"`
	LogLevel         string `json:"log_level"`

	S3RootUser     string `json:"s3_root_user"`
	S3RootPassword string `json:"s3_root_password"`
	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`

	ArchiveStore *string `json:"archive_store"`
	BoltPath     string  `json:"bolt_path"`

	KDFTime      uint32 `json:"kdf_time"`
	KDFMemoryKiB uint32 `json:"kdf_memory_kib"`
	KDFThreads   uint8  `json:"kdf_threads"`

	BreachAPIURL    string         `json:"breach_api_url"`
	BreachUserAgent string         `json:"breach_user_agent"`
	BreachCacheTTL  timex.Duration `json:"breach_cache_ttl"`
	BreachCacheSize int            `json:"breach_cache_size"`
	BreachTimeout   timex.Duration `json:"breach_timeout"`

	TOTPIssuer         string `json:"totp_issuer"`
	TOTPWindow         uint   `json:"totp_window"`
	TOTPFallbackWindow *uint  `json:"totp_fallback_window"`
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setNonZero[T uint | uint8 | uint32 | int | time.Duration](dst *T, v T) {
	if v != 0 {
		*dst = v
	}
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config flag; without
// it nothing is loaded. Only keys present with a non-zero value override the
// current settings. Unreadable files and invalid JSON panic.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	// an explicit "" disables export
	if c.ArchiveStore != nil {
		config.ArchiveStore = *c.ArchiveStore
	}
	setString(&config.BoltPath, c.BoltPath)

	setNonZero(&config.KDFTime, c.KDFTime)
	setNonZero(&config.KDFMemoryKiB, c.KDFMemoryKiB)
	setNonZero(&config.KDFThreads, c.KDFThreads)

	setString(&config.BreachAPIURL, c.BreachAPIURL)
	setString(&config.BreachUserAgent, c.BreachUserAgent)
	setNonZero(&config.BreachCacheTTL, c.BreachCacheTTL.Duration)
	setNonZero(&config.BreachCacheSize, c.BreachCacheSize)
	setNonZero(&config.BreachTimeout, c.BreachTimeout.Duration)

	setString(&config.TOTPIssuer, c.TOTPIssuer)
	setNonZero(&config.TOTPWindow, c.TOTPWindow)
	if c.TOTPFallbackWindow != nil {
		config.TOTPFallbackWindow = *c.TOTPFallbackWindow
	}
}
