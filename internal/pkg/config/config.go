package config

import (
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment overrides. Nested keys use "__",
// e.g. CONNECTOR_HUB__PUBLIC_KEY_URL.
const EnvPrefix = "CONNECTOR_"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Connector ConnectorConfig `koanf:"connector"`
	Hub       HubConfig       `koanf:"hub"`
	Security  SecurityConfig  `koanf:"security"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	AirWatch  AirWatchConfig  `koanf:"airwatch"`
	Dynamics  DynamicsConfig  `koanf:"dynamics"`
	Zoom      ZoomConfig      `koanf:"zoom"`
	LinkedIn  LinkedInConfig  `koanf:"linkedin"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
	// RequestTimeout bounds inbound request handling. Zero leaves the
	// net/http defaults in place.
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

type ConnectorConfig struct {
	Type     string `koanf:"type"`      // servicenow, salesforce, adobesign, zoom, airwatch, dynamics, linkedin
	ImageURL string `koanf:"image_url"` // Optional: overrides the embedded logo
	// AuthHeader names the outbound header carrying the forwarded backend
	// credential. Defaults to Authorization.
	AuthHeader string `koanf:"auth_header"`
}

type HubConfig struct {
	PublicKeyURL string        `koanf:"public_key_url"`
	PublicKeyTTL time.Duration `koanf:"public_key_ttl"`
	Issuer       string        `koanf:"issuer"`   // Optional
	Audience     string        `koanf:"audience"` // Optional
	Disabled     bool          `koanf:"disabled"` // Local development only
}

type SecurityConfig struct {
	BlockPrivateBackends bool `koanf:"block_private_backends"`
}

type TelemetryConfig struct {
	Tracing bool   `koanf:"tracing"`
	Service string `koanf:"service"`
}

type AirWatchConfig struct {
	TenantCode string        `koanf:"tenant_code"`
	Apps       []AirWatchApp `koanf:"apps"`
}

// AirWatchApp describes an internal app the connector offers to install when
// one of its keywords appears in the card request tokens.
type AirWatchApp struct {
	Name     string   `koanf:"name"`
	Platform string   `koanf:"platform"`
	Keywords []string `koanf:"keywords"`
}

type DynamicsConfig struct {
	MaxResults int `koanf:"max_results"`
}

type ZoomConfig struct {
	LookbackDays int `koanf:"lookback_days"`
}

type LinkedInConfig struct {
	Count int `koanf:"count"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads config.yaml from the working directory (if present) and applies
// environment overrides on top.
func Load() (*Config, error) {
	return LoadFile("config.yaml")
}

// LoadFile is Load with an explicit config file path.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	setDefault(k, "server.port", 8080)
	setDefault(k, "connector.auth_header", "Authorization")
	setDefault(k, "hub.public_key_ttl", "1h")
	setDefault(k, "telemetry.service", "hub-connector")
	setDefault(k, "dynamics.max_results", 5)
	setDefault(k, "zoom.lookback_days", 7)
	setDefault(k, "linkedin.count", 5)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.AirWatch.TenantCode = substituteEnvVars(cfg.AirWatch.TenantCode)
	cfg.Hub.PublicKeyURL = substituteEnvVars(cfg.Hub.PublicKeyURL)

	return &cfg, nil
}

func setDefault(k *koanf.Koanf, key string, value any) {
	if !k.Exists(key) {
		k.Set(key, value)
	}
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
