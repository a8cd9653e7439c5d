// Command vicare-telemetry reads heating data from the Viessmann IoT API.
// It prints equipment ids, single features or a heating snapshot, serves
// them over HTTP, or records snapshots on an interval.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ustrahlendorf/web-form-datacollection/internal/apierr"
	"github.com/ustrahlendorf/web-form-datacollection/internal/history"
	"github.com/ustrahlendorf/web-form-datacollection/internal/logger"
	"github.com/ustrahlendorf/web-form-datacollection/internal/publish"
	"github.com/ustrahlendorf/web-form-datacollection/internal/tokencache"
	"github.com/ustrahlendorf/web-form-datacollection/internal/vicare"
)

// Version is set by the build process
var Version = "dev"

// Exit codes
const (
	exitOK          = 0
	exitNullValue   = 1
	exitError       = 2
	exitTLS         = 3
	exitTimeout     = 4
	exitInterrupted = 130
)

const mqttConnectTimeout = 10 * time.Second

var errNullValue = errors.New("feature value is null")

const usage = `usage: vicare-telemetry [flags] <command> [arguments]

commands:
  equipment        print installation id, gateway serial and device id
  feature <path>   print the extracted value of one feature
  heating          print the heating snapshot
  serve            serve the HTTP API
  poll             record heating snapshots every POLL_INTERVAL

flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("vicare-telemetry", flag.ContinueOnError)
	flags.SetOutput(stderr)
	envFile := flags.String("env-file", ".env", "optional dotenv file; set variables take precedence")
	flags.Usage = func() {
		fmt.Fprint(stderr, usage)
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitError
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return exitError
	}

	cfg, err := loadConfig(*envFile)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return exitError
	}

	log := logger.New(cfg.LogLevel).WithRunID(logger.NewRunID())
	defer func() { _ = log.Sync() }()

	err = dispatch(ctx, cfg, log, flags.Args(), stdout)
	code := exitCode(ctx, err)
	if err != nil && code != exitNullValue {
		log.Errorw("command failed", "command", flags.Arg(0), "exit_code", code, "err", err)
	}
	return code
}

func dispatch(ctx context.Context, cfg Config, log *logger.Logger, args []string, stdout io.Writer) error {
	command, rest := args[0], args[1:]
	switch command {
	case "equipment", "heating", "serve", "poll":
		if len(rest) != 0 {
			return fmt.Errorf("%w: %s takes no arguments", apierr.ErrInvalidArgument, command)
		}
	case "feature":
		if len(rest) != 1 {
			return fmt.Errorf("%w: usage: feature <path>", apierr.ErrInvalidArgument)
		}
	default:
		return fmt.Errorf("%w: unknown command %q", apierr.ErrInvalidArgument, command)
	}

	vcfg, err := cfg.vicareConfig()
	if err != nil {
		return err
	}

	store, closeStore, err := openTokenStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	client, err := vicare.Build(vcfg, store, log)
	if err != nil {
		return err
	}

	switch command {
	case "equipment":
		return runEquipment(ctx, client, stdout)
	case "feature":
		return runFeature(ctx, client, rest[0], stdout)
	case "heating":
		return runHeating(ctx, client, stdout)
	case "serve":
		return newServer(cfg, client, log.Named("http")).serve(ctx)
	default:
		return runPoll(ctx, cfg, client, log.Named("poll"))
	}
}

func runEquipment(ctx context.Context, client *vicare.Client, stdout io.Writer) error {
	eq, err := client.ResolveEquipmentAndToken(ctx)
	if err != nil {
		return err
	}
	return writeJSON(stdout, eq)
}

func runFeature(ctx context.Context, client *vicare.Client, path string, stdout io.Writer) error {
	eq, err := client.ResolveEquipmentAndToken(ctx)
	if err != nil {
		return err
	}
	value, err := client.FeatureValue(ctx, path, eq, nil)
	if err != nil {
		return err
	}
	if err := writeJSON(stdout, value); err != nil {
		return err
	}
	if value == nil {
		return errNullValue
	}
	return nil
}

func runHeating(ctx context.Context, client *vicare.Client, stdout io.Writer) error {
	eq, err := client.ResolveEquipmentAndToken(ctx)
	if err != nil {
		return err
	}
	values, err := client.HeatingValues(ctx, eq)
	if err != nil {
		return err
	}
	return writeJSON(stdout, values)
}

func runPoll(ctx context.Context, cfg Config, client *vicare.Client, log *logger.Logger) error {
	p := &poller{source: client, interval: cfg.PollInterval, log: log}

	if cfg.HistoryDBPath != "" {
		db, err := history.InitDB(cfg.HistoryDBPath)
		if err != nil {
			return err
		}
		defer db.Close()
		p.history = history.NewSnapshotSQLite(db)
	}

	if cfg.MQTTBrokerURI != "" {
		mqttClient := publish.NewMQTTClient(publish.MQTTConfig{
			BrokerURI: cfg.MQTTBrokerURI,
			ClientID:  cfg.MQTTClientID,
			Username:  cfg.MQTTUsername,
			Password:  cfg.MQTTPassword,
		}, log.Named("mqtt"))
		if err := publish.Connect(mqttClient, mqttConnectTimeout); err != nil {
			return err
		}
		defer mqttClient.Disconnect(250)
		p.publisher = publish.NewPublisher(mqttClient, cfg.MQTTTopicPrefix, log.Named("mqtt"))
	}

	if p.history == nil && p.publisher == nil {
		log.Warnw("neither HISTORY_DB_PATH nor MQTT_BROKER_URI is set; snapshots are only logged")
	}
	return p.run(ctx)
}

// openTokenStore selects the token cache backend. A nil store disables caching.
func openTokenStore(cfg Config, log *logger.Logger) (tokencache.Store, func(), error) {
	noop := func() {}

	switch {
	case cfg.NoTokenCache:
		log.Debugw("token cache disabled")
		return nil, noop, nil

	case cfg.TokenCacheRedisURL != "":
		opts, err := redis.ParseURL(cfg.TokenCacheRedisURL)
		if err != nil {
			return nil, noop, fmt.Errorf("%w: parsing token cache redis url: %w", apierr.ErrConfiguration, err)
		}
		rc := redis.NewClient(opts)
		store := tokencache.NewRedisStore(rc, tokencache.AccountKey(cfg.ClientID, cfg.Email), 0)
		log.Debugw("using redis token cache", "key", store.Key())
		return store, func() {
			if err := rc.Close(); err != nil {
				log.Warnw("error closing redis connection", "err", err)
			}
		}, nil

	case cfg.TokenCachePath != "":
		store, err := tokencache.NewFileStore(cfg.TokenCachePath)
		if err != nil {
			return nil, noop, fmt.Errorf("%w: token cache path: %w", apierr.ErrConfiguration, err)
		}
		log.Debugw("using file token cache", "path", store.Path())
		return store, noop, nil

	default:
		log.Debugw("token cache disabled")
		return nil, noop, nil
	}
}

// exitCode maps a command error to the process exit status
func exitCode(ctx context.Context, err error) int {
	switch {
	case err == nil:
		return exitOK
	case ctx.Err() != nil, errors.Is(err, context.Canceled):
		return exitInterrupted
	case errors.Is(err, errNullValue):
		return exitNullValue
	case errors.Is(err, apierr.ErrTLSVerification):
		return exitTLS
	case errors.Is(err, apierr.ErrTimeout):
		return exitTimeout
	default:
		return exitError
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
