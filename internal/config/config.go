package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-yaml/yaml"

	"github.com/dvote-dapp/dvote/internal/domain"
)

type Config struct {
	Server Server `yaml:"server"`
	Auth   Auth   `yaml:"auth"`
	Chain  Chain  `yaml:"chain"`
}

type Server struct {
	ListenAddr     string   `yaml:"listenAddr"`
	DBDialect      string   `yaml:"dbDialect"` // postgres, mysql
	PostgresDsn    string   `yaml:"postgresDsn"`
	RedisAddr      string   `yaml:"redisAddr"`
	RedisPassword  string   `yaml:"redisPassword"`
	RedisDB        int      `yaml:"redisDB"`
	MemcachedAddr  string   `yaml:"memcachedAddr"`
	CountCacheTTL  string   `yaml:"countCacheTTL"`
	EnableTrace    bool     `yaml:"enableTrace"`
	TraceEndpoint  string   `yaml:"traceEndpoint"`
	LogLevel       string   `yaml:"logLevel"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

type Auth struct {
	AccessTokenSecret      string `yaml:"accessTokenSecret"`
	AccessTokenTTL         string `yaml:"accessTokenTTL"`
	RefreshTokenSecret     string `yaml:"refreshTokenSecret"`
	RefreshTokenTTL        string `yaml:"refreshTokenTTL"`
	RequireWalletSignature bool   `yaml:"requireWalletSignature"`
	SecureCookies          bool   `yaml:"secureCookies"`
}

type Chain struct {
	ProviderURL     string `yaml:"providerURL"`
	ContractAddress string `yaml:"contractAddress"`
	CallTimeout     string `yaml:"callTimeout"`
	TallyCacheTTL   string `yaml:"tallyCacheTTL"`
}

// Load reads the YAML file at path (skipped when path is empty) and applies
// environment overrides.
func Load(path string) (Config, error) {
	var config Config

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return Config{}, err
		}
		defer file.Close()

		err = yaml.NewDecoder(file).Decode(&config)
		if err != nil {
			return Config{}, err
		}
	}

	config.applyEnv()
	config.applyDefaults()
	return config, nil
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"POSTGRES_DSN":       &c.Server.PostgresDsn,
		"DB_DIALECT":         &c.Server.DBDialect,
		"REDIS_ADDR":         &c.Server.RedisAddr,
		"MEMCACHED_ADDR":     &c.Server.MemcachedAddr,
		"LISTEN_ADDR":        &c.Server.ListenAddr,
		"JWT_ACCESS_SECRET":  &c.Auth.AccessTokenSecret,
		"JWT_REFRESH_SECRET": &c.Auth.RefreshTokenSecret,
		"PROVIDER_URL":       &c.Chain.ProviderURL,
		"CONTRACT_ADDRESS":   &c.Chain.ContractAddress,
	}
	for key, field := range overrides {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*field = v
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8000"
	}
	if c.Server.DBDialect == "" {
		c.Server.DBDialect = "postgres"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.CountCacheTTL == "" {
		c.Server.CountCacheTTL = "30s"
	}
	if c.Auth.AccessTokenTTL == "" {
		c.Auth.AccessTokenTTL = "24h"
	}
	if c.Auth.RefreshTokenTTL == "" {
		c.Auth.RefreshTokenTTL = "240h"
	}
	if c.Chain.CallTimeout == "" {
		c.Chain.CallTimeout = "10s"
	}
	if c.Chain.TallyCacheTTL == "" {
		c.Chain.TallyCacheTTL = "15s"
	}
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.PostgresDsn == "" {
		return fmt.Errorf("database dsn is required")
	}
	switch c.Server.DBDialect {
	case "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported database dialect %q", c.Server.DBDialect)
	}
	if c.Auth.AccessTokenSecret == "" || c.Auth.RefreshTokenSecret == "" {
		return fmt.Errorf("jwt access and refresh secrets are required")
	}
	if c.Chain.ContractAddress != "" && !common.IsHexAddress(c.Chain.ContractAddress) {
		return fmt.Errorf("malformed contract address %q", c.Chain.ContractAddress)
	}
	if c.Chain.ContractAddress != "" && c.Chain.ProviderURL == "" {
		return fmt.Errorf("providerURL is required when a contract address is set")
	}

	for name, value := range map[string]string{
		"server.countCacheTTL": c.Server.CountCacheTTL,
		"auth.accessTokenTTL":  c.Auth.AccessTokenTTL,
		"auth.refreshTokenTTL": c.Auth.RefreshTokenTTL,
		"chain.callTimeout":    c.Chain.CallTimeout,
		"chain.tallyCacheTTL":  c.Chain.TallyCacheTTL,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if d, _ := time.ParseDuration(c.Chain.TallyCacheTTL); d > 15*time.Second {
		return fmt.Errorf("chain.tallyCacheTTL must not exceed 15s")
	}
	return nil
}

func mustDuration(value string) time.Duration {
	d, _ := time.ParseDuration(value)
	return d
}

func (c Server) CountCacheDuration() time.Duration { return mustDuration(c.CountCacheTTL) }

func (c Chain) CallTimeoutDuration() time.Duration { return mustDuration(c.CallTimeout) }

func (c Chain) TallyCacheDuration() time.Duration { return mustDuration(c.TallyCacheTTL) }

// Domain returns the settings the services consume. Call Validate first.
func (c Config) Domain() domain.Config {
	return domain.Config{
		AccessTokenSecret:      c.Auth.AccessTokenSecret,
		AccessTokenTTL:         mustDuration(c.Auth.AccessTokenTTL),
		RefreshTokenSecret:     c.Auth.RefreshTokenSecret,
		RefreshTokenTTL:        mustDuration(c.Auth.RefreshTokenTTL),
		RequireWalletSignature: c.Auth.RequireWalletSignature,
		SecureCookies:          c.Auth.SecureCookies,
	}
}

// Origins returns the CORS allow list, defaulting to any origin.
func (c Server) Origins() []string {
	var out []string
	for _, o := range c.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
