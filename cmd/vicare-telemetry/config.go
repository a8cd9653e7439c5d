package main

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/ustrahlendorf/web-form-datacollection/internal/apierr"
	"github.com/ustrahlendorf/web-form-datacollection/internal/oauth"
	"github.com/ustrahlendorf/web-form-datacollection/internal/pkce"
	"github.com/ustrahlendorf/web-form-datacollection/internal/vicare"
)

// Config holds settings loaded from environment variables. Credentials are
// checked when the client is built so every command reports them the same way.
type Config struct {
	ClientID           string        `envconfig:"VIESSMANN_CLIENT_ID"`
	Email              string        `envconfig:"VIESSMANN_EMAIL"`
	Password           string        `envconfig:"VIESSMANN_PASSWORD"`
	CallbackURI        string        `envconfig:"VIESSMANN_CALLBACK_URI"`
	Scope              string        `envconfig:"VIESSMANN_SCOPE"`
	IAMBaseURL         string        `envconfig:"VIESSMANN_IAM_BASE_URL"`
	APIBaseURL         string        `envconfig:"VIESSMANN_API_BASE_URL"`
	Timeout            time.Duration `envconfig:"VIESSMANN_TIMEOUT" default:"30s"`
	InsecureSkipVerify bool          `envconfig:"VIESSMANN_INSECURE_SKIP_TLS_VERIFY"`
	PKCEMethod         string        `envconfig:"VIESSMANN_PKCE_METHOD" default:"S256"`
	CodeVerifier       string        `envconfig:"VIESSMANN_CODE_VERIFIER"`

	// TokenCachePath applies its default only when unset; set to "" to disable
	TokenCachePath     string `envconfig:"VIESSMANN_TOKEN_CACHE_PATH" default:"~/.viessmann/tokens.json"`
	TokenCacheRedisURL string `envconfig:"VIESSMANN_TOKEN_CACHE_REDIS_URL"`
	NoTokenCache       bool   `envconfig:"VIESSMANN_NO_TOKEN_CACHE"`

	LogLevel string `envconfig:"VIESSMANN_LOG_LEVEL" default:"info"`

	Port               int           `envconfig:"PORT" default:"8080"`
	HTTPRequestTimeout time.Duration `envconfig:"HTTP_REQUEST_TIMEOUT" default:"2m"`

	PollInterval    time.Duration `envconfig:"POLL_INTERVAL" default:"15m"`
	HistoryDBPath   string        `envconfig:"HISTORY_DB_PATH"`
	MQTTBrokerURI   string        `envconfig:"MQTT_BROKER_URI"`
	MQTTClientID    string        `envconfig:"MQTT_CLIENT_ID" default:"vicare-telemetry"`
	MQTTUsername    string        `envconfig:"MQTT_USERNAME"`
	MQTTPassword    string        `envconfig:"MQTT_PASSWORD"`
	MQTTTopicPrefix string        `envconfig:"MQTT_TOPIC_PREFIX" default:"vicare"`
}

// loadConfig reads an optional dotenv file, then the environment. Variables
// already set win over the file.
func loadConfig(envFile string) (Config, error) {
	var cfg Config
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("%w: loading %s: %w", apierr.ErrConfiguration, envFile, err)
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %w", apierr.ErrConfiguration, err)
	}
	if cfg.PollInterval <= 0 {
		return cfg, fmt.Errorf("%w: POLL_INTERVAL must be positive", apierr.ErrConfiguration)
	}
	return cfg, nil
}

func (c Config) vicareConfig() (vicare.Config, error) {
	method, err := pkce.ParseMethod(c.PKCEMethod)
	if err != nil {
		return vicare.Config{}, fmt.Errorf("%w: %w", apierr.ErrConfiguration, err)
	}
	return vicare.Config{
		OAuth: oauth.Config{
			ClientID:           c.ClientID,
			Username:           c.Email,
			Password:           c.Password,
			RedirectURI:        c.CallbackURI,
			Scope:              c.Scope,
			IAMBaseURL:         c.IAMBaseURL,
			Timeout:            c.Timeout,
			InsecureSkipVerify: c.InsecureSkipVerify,
			PKCEMethod:         method,
			CodeVerifier:       c.CodeVerifier,
		},
		APIBaseURL: c.APIBaseURL,
	}, nil
}
