package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"honeypress/internal/app/server"
	"honeypress/internal/config"
	"honeypress/internal/database"
	"honeypress/internal/detection"
	"honeypress/internal/eventlog"
	"honeypress/internal/jobs/maintenance"
	"honeypress/internal/jobs/queue"
	"honeypress/internal/jobs/runtime"
	"honeypress/internal/metrics"
	"honeypress/internal/network"
	"honeypress/internal/ratelimit"
	"honeypress/internal/reporting"
	"honeypress/internal/support"
	"honeypress/internal/whitelist"
)

const (
	defaultPort    = 8080
	defaultOpsPort = 9090
	defaultOpsHost = "127.0.0.1"

	oneShotTimeout = 5 * time.Minute
)

type options struct {
	port            int
	opsPort         int
	opsHost         string
	processQueue    bool
	cleanup         bool
	whitelistAdd    string
	whitelistRemove string
	description     string
	debug           bool
}

func parseFlags(args []string) (options, error) {
	var opts options

	fs := flag.NewFlagSet("honeypress", flag.ContinueOnError)
	fs.IntVar(&opts.port, "port", defaultPort, "Port for the decoy listener")
	fs.IntVar(&opts.opsPort, "ops-port", defaultOpsPort, "Port for the operator listener")
	fs.StringVar(&opts.opsHost, "ops-host", defaultOpsHost, "Bind address for the operator listener")
	fs.BoolVar(&opts.processQueue, "process-queue", false, "Run one report queue pass and exit")
	fs.BoolVar(&opts.cleanup, "cleanup", false, "Delete events older than the retention period and exit")
	fs.StringVar(&opts.whitelistAdd, "whitelist-add", "", "Whitelist an address or CIDR range and exit")
	fs.StringVar(&opts.whitelistRemove, "whitelist-remove", "", "Remove a whitelisted address or CIDR range and exit")
	fs.StringVar(&opts.description, "description", "", "Description stored with -whitelist-add")
	fs.BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	opts.port = resolvePort("HONEYPRESS_PORT", opts.port)
	opts.opsPort = resolvePort("HONEYPRESS_OPS_PORT", opts.opsPort)
	return opts, nil
}

// components holds the wired detection and reporting stack.
type components struct {
	window    *ratelimit.RateWindow
	events    *eventlog.Logger
	whitelist *whitelist.Manager
	client    *reporting.Client
	resolver  *network.Resolver
	queue     *queue.ReportQueue
	decoy     *server.DecoyHandler
	ops       *server.Ops

	unwatch func()
}

// buildComponents wires the stack from cfg and keeps it in step with every
// later configuration change until close is called.
func buildComponents(cfg config.Config) *components {
	window := ratelimit.New()
	events := eventlog.New(window)
	wl := whitelist.NewManager()
	client := reporting.NewClient(reporting.Settings{},
		reporting.WithDiagnosticLog(reporting.NewDiagnosticLog(cfg.Reporting.DiagnosticLog, cfg.Reporting.DiagnosticLogMaxBytes)),
	)
	resolver := network.NewResolver()
	reportQueue := queue.NewReportQueue(client)

	batchSize := func() int { return config.GetConfig().Reporting.BatchSize }
	bodyLimit := func() int64 { return config.GetConfig().Detection.BodyLimitBytes }

	c := &components{
		window:    window,
		events:    events,
		whitelist: wl,
		client:    client,
		resolver:  resolver,
		queue:     reportQueue,
		decoy: &server.DecoyHandler{
			Resolver:  resolver,
			Whitelist: wl,
			Pipeline:  detection.NewPipeline(detection.DefaultAnalyzers(), detection.WithFailureHook(metrics.RecordAnalyzerFailure)),
			Events:    events,
			Renderer:  server.StaticRenderer{},
			Queue:     reportQueue,
			BodyLimit: bodyLimit,
			BatchSize: batchSize,
		},
		ops: &server.Ops{
			Stats:       events,
			Queue:       reportQueue,
			Whitelist:   wl,
			BatchSize:   batchSize,
			GetSettings: config.GetConfig,
			SetSettings: config.SetConfig,
		},
	}
	c.apply(cfg)
	c.unwatch = config.OnChange(c.apply)
	return c
}

// apply pushes the live settings into the long-lived components.
func (c *components) apply(cfg config.Config) {
	c.events.SetLimits(cfg.Detection.LogRatePerMinute, cfg.Detection.PostDataMaxBytes)
	c.client.Reconfigure(reportingSettings(cfg.Reporting))
	c.resolver.Configure(
		network.WithTrustedProxies(cfg.Network.TrustedProxies),
		network.WithCDNHeader(cfg.Network.CDNHeader),
	)
	log.Debug("Components reconfigured", "reporting_configured", c.client.Configured(), "trusted_proxies", len(cfg.Network.TrustedProxies))
}

func (c *components) close() {
	if c.unwatch != nil {
		c.unwatch()
	}
}

func reportingSettings(cfg config.ReportingConfig) reporting.Settings {
	return reporting.Settings{
		APIURL:           cfg.APIURL,
		APIKey:           cfg.APIKey,
		APIKeyHeader:     cfg.APIKeyHeader,
		ReportsPerMinute: cfg.ReportsPerMinute,
		ConnectTimeout:   config.Seconds(cfg.ConnectTimeoutSeconds),
		Timeout:          config.Seconds(cfg.TimeoutSeconds),
		BackoffBase:      config.Seconds(cfg.BackoffBaseSeconds),
		BackoffMax:       config.Seconds(cfg.BackoffMaxSeconds),
	}
}

func Run() error {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found. Falling back to system environment variables.")
	}

	opts, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	if opts.debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}

	if err := config.ReadSettings(config.SettingsPath()); err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if _, err := database.SetupDB(); err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if support.RedisConfigured() {
		client, err := support.GetRedisClient()
		if err != nil {
			return fmt.Errorf("failed to get redis client: %w", err)
		}
		defer func() {
			if err := support.CloseRedisClient(); err != nil {
				log.Warn("error closing redis client", "error", err)
			}
		}()
		config.EnableRedisSynchronization(ctx, client)
	}

	c := buildComponents(config.GetConfig())
	defer c.close()

	if handled, err := runOneShot(ctx, c, opts); handled {
		return err
	}
	return serve(ctx, c, opts)
}

// runOneShot executes the CLI maintenance commands. It reports whether one ran.
func runOneShot(ctx context.Context, c *components, opts options) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, oneShotTimeout)
	defer cancel()

	switch {
	case opts.whitelistAdd != "":
		entry, err := c.whitelist.Add(ctx, opts.whitelistAdd, opts.description)
		if err != nil {
			return true, err
		}
		log.Info("Whitelisted", "entry", entry.IPOrCIDR)
		return true, nil
	case opts.whitelistRemove != "":
		removed, err := c.whitelist.Remove(ctx, opts.whitelistRemove)
		if err != nil {
			return true, err
		}
		if !removed {
			return true, fmt.Errorf("no active whitelist entry for %s", opts.whitelistRemove)
		}
		log.Info("Removed from whitelist", "entry", opts.whitelistRemove)
		return true, nil
	case opts.processQueue:
		res := c.queue.Process(ctx, config.GetConfig().Reporting.BatchSize)
		log.Info("Report queue processed", "sent", res.Sent, "failed", res.Failed, "skipped", res.Skipped)
		for _, msg := range res.Errors {
			log.Warn("Report failed", "detail", msg)
		}
		return true, nil
	case opts.cleanup:
		_, err := maintenance.RunRetentionCleanup(ctx, c.events, config.GetConfig().Retention.Days)
		return true, err
	}
	return false, nil
}

func serve(ctx context.Context, c *components, opts options) error {
	if err := c.whitelist.Load(ctx); err != nil {
		return err
	}
	c.whitelist.StartRefreshRoutine(ctx, config.GetWhitelistRefreshInterval())
	c.window.StartJanitor(ctx, ratelimit.DefaultWindow)

	log.Info("Detection pipeline ready", "analyzers", strings.Join(c.decoy.Pipeline.Names(), ","))

	go runtime.StartReportRoutine(ctx, c.queue)
	go maintenance.StartRetentionRoutine(ctx, c.events)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Serve(gctx, "decoy", fmt.Sprintf(":%d", opts.port), c.decoy)
	})
	g.Go(func() error {
		return server.Serve(gctx, "ops", fmt.Sprintf("%s:%d", opts.opsHost, opts.opsPort), c.ops.Routes())
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func resolvePort(envKey string, fallback int) int {
	if port := readPort(envKey); port != 0 {
		return port
	}
	return fallback
}

func readPort(envKey string) int {
	raw := os.Getenv(envKey)
	if raw == "" {
		return 0
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port <= 0 || port > 65535 {
		log.Warn("invalid port override", "env", envKey, "value", raw)
		return 0
	}
	return port
}
