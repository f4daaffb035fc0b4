// Command j1ql runs a J1QL query against JupiterOne and prints the result as JSON.
//
// Credentials come from the config file or JUPITERONE_ACCOUNT and
// JUPITERONE_TOKEN:
//
//	j1ql -query 'FIND aws_instance WITH active = true' -workers 4
//	j1ql -deferred 'FIND * LIMIT 100000'
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jupiterone/jupiterone-client-go/pkg/client"
	"github.com/jupiterone/jupiterone-client-go/pkg/config"
	"github.com/jupiterone/jupiterone-client-go/pkg/j1ql"
	"github.com/jupiterone/jupiterone-client-go/pkg/logging"
	"github.com/jupiterone/jupiterone-client-go/pkg/metrics"
	"github.com/rs/zerolog"
)

type options struct {
	configPath     string
	query          string
	deferred       bool
	workers        int
	includeDeleted bool
	partial        bool
	logLevel       string
	metricsAddr    string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "j1ql: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options

	flagSet := flag.NewFlagSet("j1ql", flag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	flagSet.StringVar(&opts.query, "query", "", "J1QL query (or pass it as the arguments)")
	flagSet.BoolVar(&opts.deferred, "deferred", false, "use deferred responses for large results")
	flagSet.IntVar(&opts.workers, "workers", 0, "concurrent cursor page fetches (default from config)")
	flagSet.BoolVar(&opts.includeDeleted, "include-deleted", false, "include recently deleted entities")
	flagSet.BoolVar(&opts.partial, "partial", false, "print the records fetched before a parallel page failure")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	flagSet.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")

	if err := flagSet.Parse(args); err != nil {
		return options{}, err
	}
	if opts.query == "" {
		opts.query = strings.TrimSpace(strings.Join(flagSet.Args(), " "))
	}
	if opts.query == "" {
		return options{}, fmt.Errorf("a query is required")
	}
	if opts.workers < 0 {
		return options{}, fmt.Errorf("-workers must be >= 0 (0 = config default, got %d)", opts.workers)
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	logCfg, err := cfg.LoggingConfig(stderr)
	if err != nil {
		return err
	}
	logger := logging.Setup(logCfg)

	rdb := cfg.RedisClient()
	if rdb != nil {
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		logger.Debug().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
	}

	if opts.metricsAddr != "" {
		shutdown, addr, err := serveMetrics(opts.metricsAddr, logger)
		if err != nil {
			return err
		}
		defer shutdown()
		logger.Info().Str("addr", addr).Msg("Serving metrics")
	}

	j1, err := client.New(cfg.ClientConfig(rdb, &logger))
	if err != nil {
		return err
	}
	defer j1.Close()

	var queryOpts []client.QueryOption
	if opts.workers > 0 {
		queryOpts = append(queryOpts, client.WithMaxWorkers(opts.workers))
	}
	if opts.includeDeleted {
		queryOpts = append(queryOpts, client.WithIncludeDeleted())
	}
	if opts.partial {
		queryOpts = append(queryOpts, client.WithPartialResults())
	}

	start := time.Now()
	var result *j1ql.Result
	if opts.deferred {
		result, err = j1.QueryDeferred(ctx, opts.query, queryOpts...)
	} else {
		result, err = j1.Query(ctx, opts.query, queryOpts...)
	}
	if result == nil {
		return err
	}
	logger.Info().
		Int("records", result.Len()).
		Dur("duration", time.Since(start)).
		Msg("Query finished")

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(result); encErr != nil {
		return fmt.Errorf("write result: %w", encErr)
	}
	return err
}

// serveMetrics starts the metrics server on addr and returns its shutdown
// function and bound address.
func serveMetrics(addr string, logger zerolog.Logger) (func(), string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           metrics.NewServeMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
	return shutdown, ln.Addr().String(), nil
}
