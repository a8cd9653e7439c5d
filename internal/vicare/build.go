package vicare

import (
	"net/http"

	"github.com/ustrahlendorf/web-form-datacollection/internal/iot"
	"github.com/ustrahlendorf/web-form-datacollection/internal/logger"
	"github.com/ustrahlendorf/web-form-datacollection/internal/oauth"
	"github.com/ustrahlendorf/web-form-datacollection/internal/tokencache"
	"github.com/ustrahlendorf/web-form-datacollection/internal/transport"
)

// Config holds everything needed to build a Client
type Config struct {
	OAuth      oauth.Config
	APIBaseURL string
}

// Build wires provider, token manager and IoT client from cfg. A nil store
// disables token caching. Both endpoints share one HTTP client carrying the
// configured timeout and TLS setting.
func Build(cfg Config, store tokencache.Store, log *logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.Nop()
	}
	if err := cfg.OAuth.Validate(); err != nil {
		return nil, err
	}

	httpClient := transport.NewClient(cfg.OAuth.Timeout, cfg.OAuth.InsecureSkipVerify, log)
	return build(cfg, store, log, httpClient)
}

func build(cfg Config, store tokencache.Store, log *logger.Logger, httpClient *http.Client) (*Client, error) {
	provider, err := oauth.NewViessmannProvider(cfg.OAuth,
		oauth.WithHTTPClient(httpClient),
		oauth.WithLogger(log.Named("oauth")))
	if err != nil {
		return nil, err
	}

	tokens := tokencache.NewManager(provider, store,
		tokencache.WithPKCE(cfg.OAuth.CodeVerifier, cfg.OAuth.PKCEMethod),
		tokencache.WithLogger(log.Named("tokencache")))

	iotClient := iot.NewClient(httpClient, cfg.APIBaseURL, iot.WithLogger(log.Named("iot")))

	return New(tokens, iotClient, log), nil
}
