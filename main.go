package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/mcncl/dbusjq/internal/bus"
	"github.com/mcncl/dbusjq/internal/config"
	"github.com/mcncl/dbusjq/internal/errors"
	"github.com/mcncl/dbusjq/internal/logging"
	"github.com/mcncl/dbusjq/internal/metrics"
	"github.com/mcncl/dbusjq/internal/output"
	"github.com/mcncl/dbusjq/internal/pipeline"
	"github.com/mcncl/dbusjq/internal/query"
)

// CLI defines the command-line interface
var CLI struct {
	Bus           string            `help:"Bus to connect to (system or session)." short:"b"`
	Name          string            `help:"Well-known or unique name of the service emitting signals." short:"n"`
	Path          string            `help:"Object path emitting signals." short:"p"`
	Interface     string            `help:"Interface the signals belong to." short:"i"`
	Query         string            `help:"jq program applied to every signal." short:"q"`
	Signal        string            `help:"Only process signals with this member name." short:"s"`
	RawOutput     bool              `help:"Print string results without JSON quoting." short:"r"`
	Color         string            `help:"Highlight results (auto, always or never)."`
	Arg           map[string]string `help:"Expose a jq variable, as key=value. May be repeated." placeholder:"KEY=VALUE"`
	Config        string            `help:"Path to config file. Defaults to the nearest .dbusjq.yml." short:"c" type:"path"`
	MetricsListen string            `help:"Serve Prometheus metrics on this address."`
	Debug         bool              `help:"Enable debug logging." short:"d"`
	Version       bool              `help:"Show version information." short:"v"`
}

// Context holds the runtime context
type Context struct {
	Config *config.Config
	Stdout io.Writer
	Logger *slog.Logger
}

// Version information
const (
	Version = "0.1.0"
)

func main() {
	parser := kong.Must(&CLI,
		kong.Name("dbusjq"),
		kong.Description("Print D-Bus signals as JSON, filtered through a jq program"),
		kong.UsageOnError(),
	)

	if _, err := parser.Parse(os.Args[1:]); err != nil {
		// Print like kong.UsageOnError does, but keep exit code 1
		parser.Errorf("%s", err)
		var parseErr *kong.ParseError
		if stderrors.As(err, &parseErr) {
			_ = parseErr.Context.PrintUsage(false)
		}
		os.Exit(1)
	}

	if CLI.Version {
		fmt.Printf("dbusjq version %s\n", Version)
		return
	}

	cfg, err := config.LoadConfigWithCLI(CLI.Config, cliOverrides())
	if err != nil {
		fail(errors.NewInputError("failed to load configuration", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = run(ctx, &Context{
		Config: cfg,
		Stdout: os.Stdout,
		Logger: logging.New(cfg.Dev.Debug),
	})
	if err != nil {
		stop()
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "%s\n", errors.UserFriendlyError(err))
	fmt.Fprintf(os.Stderr, "\nFor help, run: dbusjq --help\n")
	os.Exit(1)
}

// cliOverrides converts the parsed flags into a partial config that is
// merged over the config file
func cliOverrides() *config.Config {
	return &config.Config{
		Bus:       CLI.Bus,
		Service:   CLI.Name,
		Path:      CLI.Path,
		Interface: CLI.Interface,
		Signal:    CLI.Signal,
		Query:     CLI.Query,
		Variables: CLI.Arg,
		Output: config.OutputConfig{
			Raw:   CLI.RawOutput,
			Color: CLI.Color,
		},
		Metrics: config.MetricsConfig{Listen: CLI.MetricsListen},
		Dev:     config.DevConfig{Debug: CLI.Debug},
	}
}

// run executes the main program logic. Everything that can be checked
// without the bus is checked before connecting.
func run(ctx context.Context, app *Context) error {
	cfg := app.Config
	logger := app.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	// 1. Validate settings
	if err := cfg.Validate(); err != nil {
		return errors.NewInputError("invalid configuration", err)
	}
	kind, err := bus.ParseKind(cfg.Bus)
	if err != nil {
		return errors.NewInputError("invalid configuration", err)
	}

	// 2. Compile the query
	program, err := query.Compile(cfg.Query, query.Options{
		Variables: cfg.QueryVariables(),
		RawOutput: cfg.Output.Raw,
	})
	if err != nil {
		return errors.NewQueryError("couldn't compile the jq command", err)
	}

	// 3. Optional metrics endpoint, stopped on every exit path
	var recorder *metrics.Metrics
	if cfg.Metrics.Listen != "" {
		recorder = metrics.New()
		server, err := recorder.Serve(cfg.Metrics.Listen, logger)
		if err != nil {
			return errors.NewInputError("couldn't serve metrics", err)
		}
		defer func() { _ = server.Shutdown() }()
	}

	// 4. Connect and subscribe
	proxy, err := bus.Connect(kind, bus.Target{
		Service:   cfg.Service,
		Path:      cfg.Path,
		Interface: cfg.Interface,
	}, logger)
	if err != nil {
		return err
	}
	defer func() { _ = proxy.Close() }()

	sub, err := proxy.Subscribe(cfg.Signal)
	if err != nil {
		return err
	}
	defer func() { _ = sub.Close() }()

	// 5. Process signals until interrupted or a signal fails
	driver := &pipeline.Driver{
		Source:  sub,
		Query:   program,
		Printer: output.NewPrinter(app.Stdout, output.ColorMode(cfg.Output.Color)),
		Logger:  logger,
	}
	if recorder != nil {
		driver.Metrics = recorder
	}
	return driver.Run(ctx)
}
