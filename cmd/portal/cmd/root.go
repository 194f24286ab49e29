package cmd

import (
	"context"
	"fmt"

	"github.com/GoCodeAlone/modular"
	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/portal/internal/logging"
	"github.com/GoCodeAlone/portal/internal/portal"
	"github.com/GoCodeAlone/portal/modules/auth"
	"github.com/GoCodeAlone/portal/modules/chimux"
	"github.com/GoCodeAlone/portal/modules/database"
	"github.com/GoCodeAlone/portal/modules/httpserver"
	"github.com/GoCodeAlone/portal/modules/metrics"
	"github.com/GoCodeAlone/portal/modules/scheduler"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configFile string
	verbose    bool
	logFormat  string
}

// NewRootCommand creates the root command of the portal binary
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "portal",
		Short: "Portal de Projetos - project, incident and task tracking",
		Long: `Portal de Projetos tracks projects, incidents and tasks behind a web
interface and a small JSON API. Besides serving it, the binary prepares the
database, manages the admin account and loads demo data.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "config.yaml", "YAML configuration file, ignored when missing")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	flags.StringVar(&opts.logFormat, "log-format", logging.FormatJSON, "Log format: json or console")

	cmd.AddCommand(
		newServeCommand(opts),
		newDBCommand(opts),
		newAdminCommand(opts),
		newSeedCommand(opts),
		newConfigCommand(opts),
		newVersionCommand(),
	)
	return cmd
}

// application is a portal application built from the loaded configuration.
type application struct {
	modular.Application
	logger   *logging.Logger
	database *database.Module
	portal   *portal.Module
}

// newApplication registers every module. The HTTP server is only added when
// serving.
func (o *rootOptions) newApplication(withServer bool) (*application, error) {
	level := "info"
	if o.verbose {
		level = "debug"
	}
	logger, err := logging.New(level, o.logFormat)
	if err != nil {
		return nil, err
	}

	cfg, err := loadSections(o.configFile)
	if err != nil {
		return nil, err
	}
	// Sections are fed by loadSections; the framework must not refeed them
	// from zero values.
	modular.ConfigFeeders = []modular.Feeder{}

	a := &application{
		logger:   logger,
		database: database.NewModuleWithConfig(cfg.Database),
		portal:   portal.NewModuleWithConfig(cfg.Portal),
	}
	a.Application = modular.NewStdApplication(modular.NewStdConfigProvider(&struct{}{}), logger)
	a.RegisterModule(a.database)
	a.RegisterModule(auth.NewModuleWithConfig(cfg.Auth))
	a.RegisterModule(chimux.NewChiMuxModuleWithConfig(cfg.Chimux))
	a.RegisterModule(scheduler.NewModuleWithConfig(cfg.Scheduler))
	a.RegisterModule(metrics.NewModuleWithConfig(cfg.Metrics))
	a.RegisterModule(a.portal)
	if withServer {
		a.RegisterModule(httpserver.NewHTTPServerModuleWithConfig(cfg.HTTPServer))
	}
	return a, nil
}

// withService initializes the application without starting it and runs fn
// against the portal service. Database connections are closed afterwards.
func (o *rootOptions) withService(ctx context.Context, fn func(ctx context.Context, svc *portal.Service) error) error {
	a, err := o.newApplication(false)
	if err != nil {
		return err
	}
	defer func() { _ = a.logger.Sync() }()

	if err := a.Init(); err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if err := a.database.Stop(ctx); err != nil {
			a.logger.Warn("Closing database failed", "error", err)
		}
	}()
	return fn(ctx, a.portal.Service())
}
