package config

import (
	"os"
	"time"
)

// AccessTokenEnv names the environment variable read for the access token.
const AccessTokenEnv = "GOPHVAULT_ACCESS_TOKEN"

// Config holds runtime settings for vaultctl.
type Config struct {
	// ServerEndpointAddr is host:port of the vault gRPC endpoint.
	ServerEndpointAddr string
	// AccessToken is sent with every protected call. Public calls
	// (breach, validate, health) work without it.
	AccessToken    string
	RequestTimeout time.Duration
}

func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.AccessToken = ""
	c.RequestTimeout = 30 * time.Second
}

func parseEnv(c *Config) {
	if tok, ok := os.LookupEnv(AccessTokenEnv); ok && tok != "" {
		c.AccessToken = tok
	}
}

// LoadConfig applies every source in order of precedence.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
