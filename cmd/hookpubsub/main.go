// hookpubsub is a command line client for channels and subscriptions.
//
// Configuration comes from --config (or HOOKPUBSUB_CONFIG) and the
// environment. See the config package for the recognised keys.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/toolink/hookpubsub/backend"
	"github.com/toolink/hookpubsub/config"
	"github.com/toolink/hookpubsub/limiter"
	"github.com/toolink/hookpubsub/pubsub"
)

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app carries what every subcommand needs.
type app struct {
	cfg    config.Config
	logger zerolog.Logger
	client *pubsub.Client
	out    io.Writer
	close  func()
	// memory is set when the backend is in-process and source URLs do not resolve.
	memory bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var (
		configPath string
		logLevel   string
		memory     bool
	)
	global := pflag.NewFlagSet("hookpubsub", pflag.ContinueOnError)
	global.SetOutput(stderr)
	global.SetInterspersed(false)
	global.StringVar(&configPath, "config", "", "path to a YAML config file")
	global.StringVar(&logLevel, "log-level", "", "log level (overrides config)")
	global.BoolVar(&memory, "memory", false, "use an in-process backend instead of the hosted API")
	global.Usage = func() { printUsage(stderr, global) }

	if err := global.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	rest := global.Args()
	if len(rest) == 0 {
		printUsage(stderr, global)
		return errUsage
	}

	cmd, ok := commands[rest[0]]
	if !ok {
		printUsage(stderr, global)
		return fmt.Errorf("%w: unknown command %q", errUsage, rest[0])
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	a, err := newApp(cfg, memory, stdout, stderr)
	if err != nil {
		return err
	}
	defer a.close()

	return cmd(ctx, a, rest[1:])
}

func newApp(cfg config.Config, memory bool, stdout, stderr io.Writer) (*app, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: stderr}).Level(level).With().Timestamp().Logger()

	a := &app{cfg: cfg, logger: logger, out: stdout, close: func() {}, memory: memory}

	var api backend.API
	if memory {
		api = backend.NewMemory()
	} else {
		store := limiter.NewMemoryStore()
		if cfg.RateLimit.StorageType == limiter.StorageRedis {
			rdb := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			a.close = func() {
				if err := rdb.Close(); err != nil {
					logger.Warn().Err(err).Msg("close redis client")
				}
			}
			store = limiter.NewRedisStore(rdb)
		}
		rl := limiter.NewRateLimiter(&cfg.RateLimit, store,
			limiter.WithScope(limiter.Fingerprint(cfg.APIKey)),
			limiter.WithLogger(logger),
		)

		api, err = backend.NewHTTPClient(cfg.APIKey,
			backend.WithBaseURL(cfg.BaseURL),
			backend.WithTimeout(cfg.Timeout),
			backend.WithRateLimiter(rl),
			backend.WithLogger(logger),
		)
		if err != nil {
			a.close()
			return nil, err
		}
	}

	a.client = pubsub.New(api,
		pubsub.WithLogger(logger),
		pubsub.WithPublishAuth(cfg.Publish()),
		pubsub.WithHydrationConcurrency(cfg.HydrationConcurrency),
		pubsub.WithPollOptions(cfg.PollOptions()),
	)
	return a, nil
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printUsage(w io.Writer, flags *pflag.FlagSet) {
	fmt.Fprint(w, `hookpubsub manages channels and subscriptions.

Usage:
  hookpubsub [global flags] <command> [flags] [args]

Commands:
  channel NAME                 get or create a channel
  publish NAME                 publish an event to a channel (not with --memory)
  subscribe CHANNEL URL        route a channel to a URL
  unsubscribe ID               remove a subscription
  list                         list subscriptions
  events SUBSCRIPTION_ID       list events routed through a subscription
  attempts EVENT_ID            list delivery attempts of an event

Global flags:
`)
	flags.SetOutput(w)
	flags.PrintDefaults()
}
