package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ustrahlendorf/web-form-datacollection/internal/apierr"
	"github.com/ustrahlendorf/web-form-datacollection/internal/logger"
	"github.com/ustrahlendorf/web-form-datacollection/internal/pkce"
	"github.com/ustrahlendorf/web-form-datacollection/internal/tokencache"
)

var configKeys = []string{
	"VIESSMANN_CLIENT_ID", "VIESSMANN_EMAIL", "VIESSMANN_PASSWORD",
	"VIESSMANN_CALLBACK_URI", "VIESSMANN_SCOPE", "VIESSMANN_IAM_BASE_URL",
	"VIESSMANN_API_BASE_URL", "VIESSMANN_TIMEOUT", "VIESSMANN_INSECURE_SKIP_TLS_VERIFY",
	"VIESSMANN_PKCE_METHOD", "VIESSMANN_CODE_VERIFIER", "VIESSMANN_TOKEN_CACHE_PATH",
	"VIESSMANN_TOKEN_CACHE_REDIS_URL", "VIESSMANN_NO_TOKEN_CACHE", "VIESSMANN_LOG_LEVEL",
	"PORT", "HTTP_REQUEST_TIMEOUT", "POLL_INTERVAL", "HISTORY_DB_PATH",
	"MQTT_BROKER_URI", "MQTT_CLIENT_ID", "MQTT_USERNAME", "MQTT_PASSWORD", "MQTT_TOPIC_PREFIX",
}

// clearEnv unsets every config variable for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatal(err)
	}

	want := Config{
		Timeout:            30 * time.Second,
		PKCEMethod:         "S256",
		TokenCachePath:     "~/.viessmann/tokens.json",
		LogLevel:           "info",
		Port:               8080,
		HTTPRequestTimeout: 2 * time.Minute,
		PollInterval:       15 * time.Minute,
		MQTTClientID:       "vicare-telemetry",
		MQTTTopicPrefix:    "vicare",
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("loadConfig() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigEmptyCachePathDisablesCache(t *testing.T) {
	clearEnv(t)
	t.Setenv("VIESSMANN_TOKEN_CACHE_PATH", "")

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TokenCachePath != "" {
		t.Errorf("TokenCachePath = %q, want empty", cfg.TokenCachePath)
	}

	store, closeStore, err := openTokenStore(cfg, logger.Nop())
	defer closeStore()
	if err != nil || store != nil {
		t.Errorf("openTokenStore() = %v, %v; want nil store", store, err)
	}
}

func TestLoadConfigDotenv(t *testing.T) {
	clearEnv(t)
	t.Setenv("VIESSMANN_EMAIL", "env@example.com")

	envFile := filepath.Join(t.TempDir(), ".env")
	content := "VIESSMANN_CLIENT_ID=from-file\nVIESSMANN_EMAIL=file@example.com\nPOLL_INTERVAL=5m\n"
	if err := os.WriteFile(envFile, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(envFile)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ClientID != "from-file" {
		t.Errorf("ClientID = %q, want value from dotenv file", cfg.ClientID)
	}
	if cfg.Email != "env@example.com" {
		t.Errorf("Email = %q, set variables must win over the file", cfg.Email)
	}
	if cfg.PollInterval != 5*time.Minute {
		t.Errorf("PollInterval = %v", cfg.PollInterval)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad duration", "VIESSMANN_TIMEOUT", "soon"},
		{"bad bool", "VIESSMANN_NO_TOKEN_CACHE", "maybe"},
		{"zero poll interval", "POLL_INTERVAL", "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := loadConfig(filepath.Join(t.TempDir(), "missing.env"))
			if !errors.Is(err, apierr.ErrConfiguration) {
				t.Errorf("loadConfig() error = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestVicareConfig(t *testing.T) {
	cfg := Config{ClientID: "c", Email: "e", Password: "p", PKCEMethod: "plain", Timeout: time.Second}
	vc, err := cfg.vicareConfig()
	if err != nil {
		t.Fatal(err)
	}
	if vc.OAuth.Username != "e" || vc.OAuth.PKCEMethod != pkce.MethodPlain || vc.OAuth.Timeout != time.Second {
		t.Errorf("vicareConfig() = %+v", vc.OAuth)
	}

	cfg.PKCEMethod = "S512"
	if _, err := cfg.vicareConfig(); !errors.Is(err, apierr.ErrConfiguration) {
		t.Errorf("vicareConfig() error = %v, want ErrConfiguration", err)
	}
}

func TestOpenTokenStore(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     Config
		want    string
		wantErr bool
	}{
		{"disabled flag wins", Config{NoTokenCache: true, TokenCachePath: filepath.Join(dir, "t.json")}, "none", false},
		{"file", Config{TokenCachePath: filepath.Join(dir, "t.json")}, "file", false},
		{"redis", Config{TokenCacheRedisURL: "redis://localhost:6379/0", TokenCachePath: filepath.Join(dir, "t.json")}, "redis", false},
		{"bad redis url", Config{TokenCacheRedisURL: "http://nope"}, "", true},
		{"nothing configured", Config{}, "none", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, closeStore, err := openTokenStore(tt.cfg, logger.Nop())
			defer closeStore()

			if tt.wantErr {
				if !errors.Is(err, apierr.ErrConfiguration) {
					t.Errorf("error = %v, want ErrConfiguration", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}

			got := "none"
			switch store.(type) {
			case *tokencache.FileStore:
				got = "file"
			case *tokencache.RedisStore:
				got = "redis"
			}
			if got != tt.want {
				t.Errorf("store = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		err  error
		want int
	}{
		{"success", context.Background(), nil, exitOK},
		{"null value", context.Background(), errNullValue, exitNullValue},
		{"configuration", context.Background(), fmt.Errorf("%w: missing password", apierr.ErrConfiguration), exitError},
		{"token exchange", context.Background(), apierr.ErrTokenExchangeFailed, exitError},
		{"upstream", context.Background(), &apierr.HTTPError{StatusCode: 500}, exitError},
		{"tls", context.Background(), &apierr.TransportError{Kind: apierr.ErrTLSVerification, Err: errors.New("x509")}, exitTLS},
		{"timeout", context.Background(), apierr.Transport("GET", "u", context.DeadlineExceeded), exitTimeout},
		{"interrupted", cancelled, errors.New("request aborted"), exitInterrupted},
		{"cancelled error", context.Background(), fmt.Errorf("get: %w", context.Canceled), exitInterrupted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.ctx, tt.err); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRunUsage(t *testing.T) {
	clearEnv(t)
	noEnv := filepath.Join(t.TempDir(), "none.env")

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no command", []string{"-env-file", noEnv}, exitError},
		{"help", []string{"-h"}, exitOK},
		{"unknown flag", []string{"-verbose"}, exitError},
		{"unknown command", []string{"-env-file", noEnv, "frobnicate"}, exitError},
		{"feature without path", []string{"-env-file", noEnv, "feature"}, exitError},
		{"missing credentials", []string{"-env-file", noEnv, "equipment"}, exitError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if got := run(context.Background(), tt.args, &stdout, &stderr); got != tt.want {
				t.Errorf("run() = %d, want %d; stderr: %s", got, tt.want, stderr.String())
			}
			if stdout.Len() != 0 {
				t.Errorf("stdout = %q, want nothing", stdout.String())
			}
		})
	}
}

// fakeViessmann serves the identity provider and the IoT API
type fakeViessmann struct {
	mu       sync.Mutex
	requests []string
}

func (f *fakeViessmann) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/idp/v3/authorize", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		w.Header().Set("Location", "http://localhost:4200/?code=CODE-1")
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc("/idp/v3/token", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"AT-1","refresh_token":"RT-1","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/iot/v2/equipment/installations", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		w.Write([]byte(`{"data":[{"id":194640}]}`))
	})
	mux.HandleFunc("/iot/v2/equipment/gateways", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		w.Write([]byte(`{"data":[{"serial":"7571381681420106"}]}`))
	})
	mux.HandleFunc("/iot/v2/equipment/installations/194640/gateways/7571381681420106/devices", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		w.Write([]byte(`{"data":[{"id":"0"}]}`))
	})
	features := "/iot/v2/features/installations/194640/gateways/7571381681420106/devices/0/features"
	mux.HandleFunc(features, func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		w.Write([]byte(`{"data":[
			{"feature":"heating.sensors.temperature.outside","isEnabled":true,"properties":{"value":{"type":"number","value":4.5}}},
			{"feature":"heating.burners.0.statistics","isEnabled":true,"properties":{"hours":{"value":18950},"starts":{"value":61234}}}
		]}`))
	})
	mux.HandleFunc(features+"/heating.sensors.temperature.outside", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		w.Write([]byte(`{"data":{"feature":"heating.sensors.temperature.outside","isEnabled":true,"properties":{"value":{"value":4.5}}}}`))
	})
	mux.HandleFunc(features+"/heating.dhw.sensors.temperature.hotWaterStorage", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		w.Write([]byte(`{"data":{"feature":"heating.dhw.sensors.temperature.hotWaterStorage","isEnabled":false,"properties":{}}}`))
	})
	return mux
}

func (f *fakeViessmann) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
}

func (f *fakeViessmann) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func setupFakeEnv(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	clearEnv(t)
	cachePath := filepath.Join(t.TempDir(), "tokens.json")
	t.Setenv("VIESSMANN_CLIENT_ID", "client-123")
	t.Setenv("VIESSMANN_EMAIL", "user@example.com")
	t.Setenv("VIESSMANN_PASSWORD", "secret")
	t.Setenv("VIESSMANN_IAM_BASE_URL", srv.URL+"/idp/v3")
	t.Setenv("VIESSMANN_API_BASE_URL", srv.URL)
	t.Setenv("VIESSMANN_TOKEN_CACHE_PATH", cachePath)
	t.Setenv("VIESSMANN_LOG_LEVEL", "error")
	return filepath.Join(t.TempDir(), "none.env")
}

func TestRunCommands(t *testing.T) {
	fake := &fakeViessmann{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()
	noEnv := setupFakeEnv(t, srv)

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  any
	}{
		{
			name:     "equipment",
			args:     []string{"equipment"},
			wantCode: exitOK,
			wantOut: map[string]any{
				"installation_id": "194640",
				"gateway_serial":  "7571381681420106",
				"device_id":       "0",
			},
		},
		{
			name:     "feature value",
			args:     []string{"feature", "heating.sensors.temperature.outside"},
			wantCode: exitOK,
			wantOut:  4.5,
		},
		{
			name:     "disabled feature is null",
			args:     []string{"feature", "heating.dhw.sensors.temperature.hotWaterStorage"},
			wantCode: exitNullValue,
			wantOut:  nil,
		},
		{
			name:     "heating snapshot",
			args:     []string{"heating"},
			wantCode: exitOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			args := append([]string{"-env-file", noEnv}, tt.args...)
			if got := run(context.Background(), args, &stdout, &stderr); got != tt.wantCode {
				t.Fatalf("run() = %d, want %d; stderr: %s", got, tt.wantCode, stderr.String())
			}

			var out any
			if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
				t.Fatalf("stdout is not JSON: %q", stdout.String())
			}
			if tt.name == "heating snapshot" {
				m := out.(map[string]any)
				if m["outside_temp"] != 4.5 || m["betriebsstunden"] != float64(18950) || m["supply_temp"] != nil {
					t.Errorf("heating output = %v", m)
				}
				return
			}
			if diff := cmp.Diff(tt.wantOut, out); diff != "" {
				t.Errorf("stdout mismatch (-want +got):\n%s", diff)
			}
		})
	}

	// The first command authorized and resolved the equipment; later ones
	// reused both from the cache.
	var posts int
	for _, r := range fake.requests {
		if strings.HasPrefix(r, "POST ") {
			posts++
		}
	}
	if posts != 2 {
		t.Errorf("POST requests = %d, want one authorize and one token request: %v", posts, fake.requests)
	}
	if fake.count() != 2+3+1+1+1 {
		t.Errorf("requests = %v", fake.requests)
	}
}
