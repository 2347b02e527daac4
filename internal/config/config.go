package config

import (
	"github.com/kelseyhightower/envconfig"
)

const (
	// ProviderModeDirect calls the keyword-data provider with basic auth.
	ProviderModeDirect = "DIRECT"
	// ProviderModeProxy routes calls through the relay, which holds the credentials.
	ProviderModeProxy = "PROXY"
)

type Config struct {
	Database *dbConfig
	Service  *svcConfig
	Provider *providerConfig
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     uint   `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"corpus"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
}

type svcConfig struct {
	Address         string `envconfig:"CORPUS_ENGINE_ADDRESS" default:":3443"`
	MetricsAddress  string `envconfig:"CORPUS_ENGINE_METRICS_ADDRESS" default:":8080"`
	LogLevel        string `envconfig:"CORPUS_ENGINE_LOG_LEVEL" default:"info"`
	ProjectID       string `envconfig:"CORPUS_ENGINE_PROJECT_ID" default:"corpus-sandbox-dev"`
	AuditSchedule   string `envconfig:"CORPUS_ENGINE_AUDIT_SCHEDULE" default:"0 3 * * *"`
	MigrationFolder string `envconfig:"CORPUS_ENGINE_MIGRATIONS_FOLDER" default:""`
}

type providerConfig struct {
	Mode        string `envconfig:"CORPUS_ENGINE_PROVIDER_MODE" default:"DIRECT"`
	BaseURL     string `envconfig:"CORPUS_ENGINE_PROVIDER_URL" default:"https://api.dataforseo.com"`
	Login       string `envconfig:"CORPUS_ENGINE_PROVIDER_LOGIN" default:""`
	Password    string `envconfig:"CORPUS_ENGINE_PROVIDER_PASSWORD" default:""`
	ProxyURL    string `envconfig:"CORPUS_ENGINE_PROVIDER_PROXY_URL" default:""`
	ProxyAPIKey string `envconfig:"CORPUS_ENGINE_PROVIDER_PROXY_API_KEY" default:""`
	MaxRPM      int    `envconfig:"CORPUS_ENGINE_PROVIDER_MAX_RPM" default:"10"`
	MaxRetries  int    `envconfig:"CORPUS_ENGINE_PROVIDER_MAX_RETRIES" default:"5"`
}

// HasUsableCredentials reports whether provider calls can be attempted at all.
// In proxy mode the relay holds the credentials, so none are required locally.
func (p *providerConfig) HasUsableCredentials() bool {
	if p.Mode == ProviderModeProxy {
		return true
	}
	return p.Login != "" && p.Password != ""
}

func New() (*Config, error) {
	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewDefault returns a configuration with every field at its default value,
// without consulting the environment. Used by tests.
func NewDefault() *Config {
	return &Config{
		Database: &dbConfig{Type: "sqlite", Name: ":memory:"},
		Service: &svcConfig{
			Address:       ":3443",
			LogLevel:      "info",
			ProjectID:     "corpus-sandbox-dev",
			AuditSchedule: "0 3 * * *",
		},
		Provider: &providerConfig{
			Mode:       ProviderModeDirect,
			BaseURL:    "https://api.dataforseo.com",
			MaxRPM:     10,
			MaxRetries: 5,
		},
	}
}
