// Package command contains CLI command implementations.
package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/n1rna/invadmin/internal/api"
	"github.com/n1rna/invadmin/internal/config"
	"github.com/n1rna/invadmin/internal/entitysync"
	"github.com/n1rna/invadmin/internal/logger"
	"github.com/n1rna/invadmin/internal/output"
	"github.com/n1rna/invadmin/internal/schema"
	"github.com/n1rna/invadmin/internal/storage"
)

type globalOptions struct {
	dir     string
	apiURL  string
	envFile string
	format  string
	debug   bool
	quiet   bool
}

// NewRootCommand creates the invadmin root command with every subcommand attached
func NewRootCommand(version string) *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "invadmin",
		Short: "invadmin - inventory and accounting admin client",
		Long: `invadmin edits the entities of an inventory/accounting REST backend.

Entities are described by manifests. Records are fetched and saved through the
backend's /api resources, and unsaved edits are kept as local drafts.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.build(cmd)
			if err != nil {
				return err
			}
			cmd.SetContext(WithApp(cmd.Context(), app))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.dir, "dir", "",
		"Base directory for local drafts (default: $INVADMIN_HOME or ~/.invadmin)")
	cmd.PersistentFlags().StringVar(&opts.apiURL, "api", "", "Backend base URL (default: $INVADMIN_API_URL)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Load configuration from this .env file")
	cmd.PersistentFlags().StringVarP(&opts.format, "format", "f", "table", "Output format (table, json, yaml, csv)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug output")
	cmd.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress non-error output")

	cmd.AddGroup(&cobra.Group{
		ID:    "entities",
		Title: "Entity Operations:",
	})
	cmd.AddGroup(&cobra.Group{
		ID:    "local",
		Title: "Local Drafts:",
	})

	cmd.AddCommand(
		NewSchemaCommand("entities"),
		NewEntityCommand("entities"),
		NewDraftCommand("local"),
	)

	cmd.SetVersionTemplate("invadmin version {{.Version}}\n")
	return cmd
}

func (o *globalOptions) build(cmd *cobra.Command) (*App, error) {
	cfg, err := config.LoadConfig(o.envFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Flags win over the environment
	if o.dir != "" || o.apiURL != "" {
		if o.dir != "" {
			cfg.BaseDir = o.dir
		}
		if o.apiURL != "" {
			cfg.APIURL = o.apiURL
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if o.debug {
		level = logger.DEBUG
	}
	logger.SetGlobalLevel(level)
	log := logger.GetLogger()
	log.SetJSON(cfg.LogFormat == "json")
	if cfg.LogFile != "" {
		if err := log.AddFileOutput(logger.DEBUG, cfg.LogFile); err != nil {
			return nil, err
		}
	}

	registry, err := schema.Load(cfg.ManifestDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifests: %w", err)
	}

	drafts, err := storage.NewDraftStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	format, err := output.ParseFormat(o.format)
	if err != nil {
		return nil, err
	}
	printer := output.NewPrinterWithWriter(cmd.OutOrStdout(), format, o.quiet)
	printer.SetStatusWriter(cmd.ErrOrStderr())
	printer.SetRegistry(registry)

	client := api.NewClientFromConfig(cfg, api.WithLogger(log.Named("api")))
	service := entitysync.NewService(registry, client, entitysync.WithLogger(log.Named("sync")))

	log.Debug("configured for %s with %d entities", cfg.APIURL, len(registry.List()))

	return &App{
		Config:   cfg,
		Registry: registry,
		Service:  service,
		Drafts:   drafts,
		Printer:  printer,
		Log:      log,
	}, nil
}
