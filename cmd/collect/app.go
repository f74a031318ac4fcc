package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Packages
	client "github.com/mutablelogic/go-client"
	config "github.com/mutablelogic/go-collect/config"
	httpclient "github.com/mutablelogic/go-collect/httpclient"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type Globals struct {
	Endpoint string        `env:"COLLECT_ENDPOINT" default:"http://localhost:8080/api/collect" help:"Service endpoint"`
	Config   string        `env:"COLLECT_CONFIG" type:"path" help:"Configuration file (YAML)"`
	Timeout  time.Duration `help:"Request timeout"`
	Debug    bool          `help:"Enable debug output"`

	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func NewApp(app Globals) *Globals {
	// The context is cancelled when the process receives a SIGINT or SIGTERM
	app.ctx, app.cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	// Logging to stderr, debug level when requested
	level := slog.LevelInfo
	if app.Debug {
		level = slog.LevelDebug
	}
	app.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// Return the app
	return &app
}

func (app *Globals) Close() error {
	app.cancel()
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (app *Globals) Context() context.Context {
	return app.ctx
}

// LoadConfig reads the configuration file named by the --config flag,
// falling back to defaults when no file is given.
func (app *Globals) LoadConfig() (*config.Config, error) {
	return config.Load(app.Config)
}

// Client builds a collection HTTP client from the global flags.
func (app *Globals) Client() (*httpclient.Client, error) {
	opts := []client.ClientOpt{}
	if app.Debug {
		opts = append(opts, client.OptTrace(os.Stderr, false))
	}
	if app.Timeout > 0 {
		opts = append(opts, client.OptTimeout(app.Timeout))
	}
	return httpclient.New(app.Endpoint, opts...)
}
