package main

import (
	"fmt"
	"net/url"

	// Packages
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	credentials "github.com/aws/aws-sdk-go-v2/credentials"
	backend "github.com/mutablelogic/go-collect/backend"
	config "github.com/mutablelogic/go-collect/config"
	httphandler "github.com/mutablelogic/go-collect/httphandler"
	version "github.com/mutablelogic/go-collect/pkg/version"
	schema "github.com/mutablelogic/go-collect/schema"
	httpserver "github.com/mutablelogic/go-server/pkg/httpserver"
	otelaws "go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	gootel "go.opentelemetry.io/otel"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type ServerCommands struct {
	Serve ServeCommand `cmd:"" name:"serve" group:"SERVER" help:"Run the collection server"`
}

type ServeCommand struct {
	Listen    string   `name:"listen" help:"Listen address (overrides configuration)"`
	Workspace []string `name:"workspace" help:"Workspace URL (e.g. mem://name, file://name/path, s3://bucket). May be repeated." optional:""`
	AccessKey string   `name:"access-key" env:"COLLECT_ACCESS_KEY" help:"Static S3 access key"`
	SecretKey string   `name:"secret-key" env:"COLLECT_SECRET_KEY" help:"Static S3 secret key"`
}

///////////////////////////////////////////////////////////////////////////////
// COMMANDS

func (cmd *ServeCommand) Run(app *Globals) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}

	// Command-line workspaces are appended to configured ones
	workspaceConfigs := cfg.Server.Workspaces
	for _, u := range cmd.Workspace {
		workspaceConfigs = append(workspaceConfigs, config.WorkspaceConfig{URL: u})
	}
	if len(workspaceConfigs) == 0 {
		return fmt.Errorf("no workspaces configured")
	}

	workspaces := make([]*backend.Workspace, 0, len(workspaceConfigs))
	defer func() {
		for _, ws := range workspaces {
			ws.Close()
		}
	}()
	for _, wc := range workspaceConfigs {
		ws, err := cmd.openWorkspace(app, cfg, wc)
		if err != nil {
			return fmt.Errorf("workspace %q: %w", wc.URL, err)
		}
		workspaces = append(workspaces, ws)
		app.logger.Info("workspace ready", "name", ws.Name(), "plan", ws.Plan().Key)
	}

	// Register handlers and serve until the context is cancelled
	listen := cfg.Server.Listen
	if cmd.Listen != "" {
		listen = cmd.Listen
	}
	srv, err := httpserver.New(listen, nil)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	httphandler.RegisterHandlers(srv.Router(), cfg.Server.Prefix, nil, workspaces...)

	app.logger.Info("collect started", "version", version.Version(), "listen", listen, "prefix", cfg.Server.Prefix)
	if err := srv.Run(app.ctx); err != nil {
		return err
	}
	app.logger.Info("collect stopped")
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (cmd *ServeCommand) openWorkspace(app *Globals, cfg *config.Config, wc config.WorkspaceConfig) (*backend.Workspace, error) {
	opts := []backend.Opt{
		backend.WithTracer(gootel.Tracer(schema.SchemaName)),
	}

	if wc.Plan != "" {
		plan, exists := cfg.Plan(wc.Plan)
		if !exists {
			return nil, fmt.Errorf("unknown plan %q", wc.Plan)
		}
		opts = append(opts, backend.WithPlan(plan))
	}
	if wc.CreateDir {
		opts = append(opts, backend.WithCreateDir())
	}
	if wc.Anonymous {
		opts = append(opts, backend.WithAnonymous())
	}
	if wc.Endpoint != "" {
		opts = append(opts, backend.WithEndpoint(wc.Endpoint))
	}

	// For S3 workspaces, load the AWS SDK configuration with instrumented
	// API calls and optional static credentials
	if u, err := url.Parse(wc.URL); err == nil && u.Scheme == "s3" {
		awsOpts := []func(*awsconfig.LoadOptions) error{}
		if cmd.AccessKey != "" && cmd.SecretKey != "" {
			awsOpts = append(awsOpts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cmd.AccessKey, cmd.SecretKey, ""),
			))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(app.ctx, awsOpts...)
		if err != nil {
			return nil, fmt.Errorf("aws configuration: %w", err)
		}
		otelaws.AppendMiddlewares(&awsCfg.APIOptions)
		opts = append(opts, backend.WithAWSConfig(awsCfg))
	}

	return backend.New(app.ctx, wc.URL, opts...)
}
