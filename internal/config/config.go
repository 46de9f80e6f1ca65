package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "DECKPARTY"
	defaultServerURL     = "http://127.0.0.1:8080"
	defaultDatabasePath  = "deckparty.db"
	defaultLogLevel      = "info"
	defaultSimulatorAddr = "0.0.0.0:8080"
)

// AppConfig captures runtime configuration for the deckparty client and simulator.
type AppConfig struct {
	ServerURL        string
	DatabasePath     string
	LogLevel         string
	AuthToken        string
	GroupID          string
	MemberName       string
	SimulatorAddress string
	SigningSecret    string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("server.url", defaultServerURL)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("simulator.address", defaultSimulatorAddr)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		ServerURL:        configViper.GetString("server.url"),
		DatabasePath:     configViper.GetString("database.path"),
		LogLevel:         configViper.GetString("log.level"),
		AuthToken:        configViper.GetString("auth.token"),
		GroupID:          configViper.GetString("group.id"),
		MemberName:       configViper.GetString("member.name"),
		SimulatorAddress: configViper.GetString("simulator.address"),
		SigningSecret:    configViper.GetString("simulator.signing_secret"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.ServerURL) == "" {
		return fmt.Errorf("server.url is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	return nil
}
