package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"itemservice/pkg/config"
	"itemservice/pkg/httpapi"
	"itemservice/pkg/item"
	"itemservice/pkg/logging"
	"itemservice/pkg/storage"
	"itemservice/pkg/version"
)

// Options holds the global flags shared by every command.
type Options struct {
	ConfigPath string
	Verbose    bool
	Port       int
	DBType     string
	DBPath     string

	// logger, when set, replaces the one built from configuration.
	logger *zap.Logger
	// listening, when set, receives the bound address once the server accepts connections.
	listening chan<- string
}

// Run parses args and executes the matching command so every entry point shares one code path.
func Run(ctx context.Context, args []string, logger *zap.Logger) error {
	cmd := NewRootCommand(&Options{logger: logger})
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

// NewRootCommand creates the itemservice CLI. Running it without a subcommand serves.
func NewRootCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "itemservice",
		Short:         "Server-rendered item catalogue",
		Long:          "Lists, shows, adds and edits items through HTML forms backed by a memory, SQLite or PostgreSQL store.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", config.DefaultPath, "path to the YAML configuration file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, opts)
		},
	}
	for _, c := range []*cobra.Command{cmd, serveCmd} {
		c.Flags().IntVar(&opts.Port, "port", 0, "port for the HTTP server (overrides config and PORT)")
		c.Flags().StringVar(&opts.DBType, "db-type", "", fmt.Sprintf("storage backend: %v", storage.Types()))
		c.Flags().StringVar(&opts.DBPath, "db-path", "", "snapshot or database file; DSN for pgx")
	}

	cmd.AddCommand(serveCmd)
	cmd.AddCommand(newConfigCommand(opts))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the application version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "itemservice version %s\n", version.Version())
		},
	})

	return cmd
}

// newConfigCommand groups configuration helpers.
func newConfigCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to --config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(opts.ConfigPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", opts.ConfigPath)
			}
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := cfg.Save(opts.ConfigPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", opts.ConfigPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}

// loadConfig layers explicitly set flags over the file and environment.
func loadConfig(cmd *cobra.Command, opts *Options) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Server.Port = opts.Port
	}
	if flags.Changed("db-type") {
		cfg.Storage.Type = opts.DBType
	}
	if flags.Changed("db-path") {
		cfg.Storage.Path = opts.DBPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// serve composes storage, the item service and the HTTP server, and blocks until ctx ends.
func serve(cmd *cobra.Command, opts *Options) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	logger := opts.logger
	if logger == nil {
		logger, err = logging.New(cfg.Logging, opts.Verbose)
		if err != nil {
			return err
		}
		defer logger.Sync()
	}

	db, err := storage.Open(ctx, storage.Options{Type: cfg.Storage.Type, Path: cfg.Storage.Path})
	if err != nil {
		return fmt.Errorf("unable to open storage: %w", err)
	}
	defer db.Close()

	items := item.NewService(item.NewRepository(db))
	defer items.Close()

	srv, err := httpapi.New(items, logger)
	if err != nil {
		return fmt.Errorf("unable to build http server: %w", err)
	}

	server := &http.Server{
		Addr:         cfg.Address(),
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
		IdleTimeout:  cfg.IdleTimeout(),
	}

	listener, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("unable to listen on %s: %w", server.Addr, err)
	}

	logger.Info("item service is running",
		zap.String("addr", listener.Addr().String()),
		zap.String("storage", cfg.Storage.Type),
		zap.String("version", version.Version()))
	if opts.listening != nil {
		opts.listening <- listener.Addr().String()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped unexpectedly: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()
		logger.Info("shutting down")
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
