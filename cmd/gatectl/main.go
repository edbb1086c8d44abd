package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"gateio/internal/keyring"
	"gateio/internal/metrics"
	"gateio/pkg/core"
	"gateio/pkg/exchange/gateio"
)

var (
	configPath  string
	envFile     string
	keyPrefix   string
	baseURL     string
	wsURL       string
	logLevel    string
	logFile     string
	metricsAddr string
	timeout     time.Duration
)

func main() {
	app := cli.NewApp()
	app.Name = "gatectl"
	app.Usage = "command line client for the Gate.io v4 spot API"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "YAML config file; defaults are used when empty",
			Destination: &configPath,
		},
		&cli.StringFlag{
			Name:        "env-file",
			Value:       ".env",
			Usage:       "dotenv file with API keys",
			Destination: &envFile,
		},
		&cli.StringFlag{
			Name:        "key-prefix",
			Value:       keyring.DefaultPrefix,
			Usage:       "prefix of the API key variables, e.g. GATE for GATE_API_KEY",
			Destination: &keyPrefix,
		},
		&cli.StringFlag{
			Name:        "base-url",
			Usage:       "override the REST endpoint",
			Destination: &baseURL,
		},
		&cli.StringFlag{
			Name:        "ws-url",
			Usage:       "override the WebSocket endpoint",
			Destination: &wsURL,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Value:       "info",
			Usage:       "debug, info, warn or error",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-file",
			Usage:       "also write JSON logs to this file, rotated",
			Destination: &logFile,
		},
		&cli.StringFlag{
			Name:        "metrics-addr",
			Usage:       "serve Prometheus metrics on this address, e.g. :9090",
			Destination: &metricsAddr,
		},
		&cli.DurationFlag{
			Name:        "timeout",
			Value:       30 * time.Second,
			Usage:       "timeout for REST commands",
			Destination: &timeout,
		},
	}
	app.Commands = []*cli.Command{
		timeCommand,
		pairsCommand,
		tickerCommand,
		bookCommand,
		candlesCommand,
		balancesCommand,
		ordersCommand,
		orderCommand,
		walletCommand,
		streamCommand,
		signCommand,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// env is what every command needs: the config, a logger and the key ring.
type env struct {
	config *core.Config
	logger zerolog.Logger
	keys   *keyring.KeyRing
}

func setup(c *cli.Context) (*env, error) {
	config := core.DefaultConfig()
	if configPath != "" {
		var err error
		if config, err = core.LoadConfig(configPath); err != nil {
			return nil, err
		}
	}
	if baseURL != "" {
		config.WithBaseURL(baseURL)
	}
	if wsURL != "" {
		config.WithWSURL(wsURL)
	}
	if c.IsSet("log-level") || configPath == "" {
		config.LogLevel = logLevel
	}

	logger, err := newLogger(config.LogLevel, logFile)
	if err != nil {
		return nil, err
	}

	keys, err := keyring.FromEnv(keyPrefix, envFile)
	switch {
	case errors.Is(err, keyring.ErrNoKeys):
		logger.Debug().Msg("no api keys, private commands are unavailable")
	case err != nil:
		return nil, err
	default:
		keys.SetLogger(logger)
		config.WithCredentials(keys.Credentials())
		logger.Debug().Str("key", keyring.Mask(keys.Current().Key)).Int("keys", keys.Len()).Msg("loaded api keys")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if metricsAddr != "" {
		go serveMetrics(metricsAddr, logger)
	}
	return &env{config: config, logger: logger, keys: keys}, nil
}

func newLogger(level, file string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level: %w", err)
	}

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	if file != "" {
		out = zerolog.MultiLevelWriter(out, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		})
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}

func serveMetrics(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	logger.Info().Str("addr", addr).Msg("serving metrics")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server stopped")
	}
}

func (e *env) client() (*gateio.Client, error) {
	client, err := gateio.NewClient(e.config)
	if err != nil {
		return nil, err
	}
	client.SetLogger(e.logger)
	return client, nil
}

// private runs call once and, when the key was rejected and another key is
// available, once more with the next key.
func (e *env) private(client *gateio.Client, call func() error) error {
	err := call()
	if errors.Is(err, core.ErrNoCredentials) {
		return fmt.Errorf("%w: set %s_API_KEY and %s_API_SECRET", err, keyPrefix, keyPrefix)
	}
	if e.keys == nil {
		return err
	}
	if err == nil {
		e.keys.MarkUsed()
		return nil
	}
	if !e.keys.OnError(err) {
		return err
	}
	client.Session().SetCredentials(e.keys.Credentials())
	return call()
}

func commandContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Context, timeout)
}

func jsonOutput(in any) error {
	data, err := sonic.ConfigStd.MarshalIndent(in, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
