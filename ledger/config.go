package ledger

import (
	"strings"

	"github.com/spf13/viper"
)

// Config is the configuration for the card ledger application.
type Config struct {
	// Backend selects the storage family: "postgres", "mongo" or "memory"
	// (memory only when AllowMemory is set, for tests).
	Backend  string `mapstructure:"LEDGER_BACKEND"`
	HTTPAddr string `mapstructure:"HTTP_ADDR"`

	PostgresDSN   string `mapstructure:"DB_DSN"`
	MongoURI      string `mapstructure:"MONGO_URI"`
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`

	// BINPrefix is the issuer BIN used to generate PANs (6/8/9 digits).
	BINPrefix string `mapstructure:"BIN_PREFIX"`
	// CardValidityYears sets how far from issuance new cards expire.
	CardValidityYears int `mapstructure:"CARD_VALIDITY_YEARS"`
	// ExpiryTZ is an IANA timezone name for expiry computations.
	ExpiryTZ string `mapstructure:"EXPIRY_TZ"`

	// AllowMemory permits the in-memory backend. It is disabled at runtime
	// so a misconfigured deployment cannot silently lose the ledger.
	AllowMemory bool `mapstructure:"ALLOW_MEMORY_BACKEND"`
}

func DefaultConfig() *Config {
	return &Config{
		Backend:           "postgres",
		HTTPAddr:          "localhost:9090",
		MongoDatabase:     "banking_system",
		BINPrefix:         "421234",
		CardValidityYears: 1,
	}
}

// LoadConfig reads configuration from environment variables, with an
// optional .env file in path. Defaults match DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	def := DefaultConfig()
	v.SetDefault("LEDGER_BACKEND", def.Backend)
	v.SetDefault("HTTP_ADDR", def.HTTPAddr)
	v.SetDefault("MONGO_DATABASE", def.MongoDatabase)
	v.SetDefault("BIN_PREFIX", def.BINPrefix)
	v.SetDefault("CARD_VALIDITY_YEARS", def.CardValidityYears)
	v.SetDefault("ALLOW_MEMORY_BACKEND", false)

	for _, key := range []string{
		"LEDGER_BACKEND", "HTTP_ADDR", "DB_DSN", "MONGO_URI", "MONGO_DATABASE",
		"BIN_PREFIX", "CARD_VALIDITY_YEARS", "EXPIRY_TZ", "ALLOW_MEMORY_BACKEND",
	} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		// The .env file is optional; environment variables alone are fine.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
