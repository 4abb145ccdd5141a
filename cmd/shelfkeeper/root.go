// cmd/shelfkeeper/root.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"shelfkeeper/internal/circulation"
	"shelfkeeper/internal/config"
	"shelfkeeper/internal/drill"
	"shelfkeeper/internal/logger"
	"shelfkeeper/internal/seed"
	"shelfkeeper/internal/shell"
	"shelfkeeper/internal/telemetry"
)

const version = "0.1.0"

// app is the wired process: configuration, logger, telemetry and the seeded
// manager.
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	telemetry *telemetry.Providers
	mgr       *circulation.Manager
}

func newApp(ctx context.Context, flags config.Flags, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(flags)
	if err != nil {
		return nil, err
	}

	log := logger.New(logger.Config{
		Writer:      logOut,
		Format:      cfg.Logger.Format,
		Environment: cfg.App.Environment,
		Level:       logger.ParseLevel(cfg.Logger.Level),
	})

	providers, err := telemetry.Setup(ctx, telemetry.Config{
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		Version:      version,
	})
	if err != nil {
		return nil, fmt.Errorf("setup telemetry: %w", err)
	}

	opts := []circulation.Option{
		circulation.WithLogger(log.Logger),
		circulation.WithTracerProvider(providers.TracerProvider),
		circulation.WithMeterProvider(providers.MeterProvider),
		circulation.WithLoginLimit(cfg.Library.LoginRate),
	}
	if cfg.Library.Legacy {
		opts = append(opts, circulation.WithLegacyBehavior())
	}
	mgr, err := circulation.NewManager(opts...)
	if err != nil {
		_ = providers.Shutdown()
		return nil, fmt.Errorf("create manager: %w", err)
	}

	if cfg.Library.Seed {
		if err := seed.Load(ctx, mgr); err != nil {
			_ = mgr.Close()
			_ = providers.Shutdown()
			return nil, fmt.Errorf("seed library: %w", err)
		}
		log.Info("library seeded", "books", seed.BookCount())
	}

	return &app{cfg: cfg, log: log, telemetry: providers, mgr: mgr}, nil
}

func (a *app) close() {
	if err := a.mgr.Close(); err != nil {
		a.log.Error("close manager", "error", err)
	}
	if err := a.telemetry.Shutdown(); err != nil {
		a.log.Error("shutdown telemetry", "error", err)
	}
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var flags config.Flags

	root := &cobra.Command{
		Use:           "shelfkeeper",
		Short:         "In-memory library catalog and circulation manager",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&flags.Environment, "env", "", "environment (development, production)")
	pf.StringVar(&flags.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&flags.LogFormat, "log-format", "", "log format (text, json)")
	pf.StringVar(&flags.Seed, "seed", "", "load the sample books and demo accounts (default true)")
	pf.StringVar(&flags.Legacy, "legacy", "", "allow removing books on loan and duplicate user names")
	pf.StringVar(&flags.LoginRate, "login-rate", "", "maximum logins per minute, 0 for unlimited")
	pf.StringVar(&flags.OTLPEndpoint, "otlp-endpoint", "", "OTLP/HTTP trace endpoint (host:port)")

	root.AddCommand(
		newShellCmd(&flags),
		newBooksCmd(&flags),
		newDrillCmd(&flags),
		newVersionCmd(),
	)
	// Running the binary without a subcommand starts the shell.
	root.RunE = newShellCmd(&flags).RunE
	return root
}

func newShellCmd(flags *config.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start the interactive menu",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), *flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			opts := []shell.Option{shell.WithLogger(a.log.Logger)}
			if f, ok := cmd.InOrStdin().(*os.File); ok && shell.IsInteractive(f) {
				opts = append(opts, shell.WithPrompts(true))
			}
			if a.cfg.Library.Seed {
				opts = append(opts, shell.WithGreeting(
					fmt.Sprintf("Use the %q or %q account to try the demo, or register a new user.", seed.AdminName, seed.MemberName)))
			}
			return shell.New(a.mgr, cmd.InOrStdin(), cmd.OutOrStdout(), opts...).Run(cmd.Context())
		},
	}
}

func newBooksCmd(flags *config.Flags) *cobra.Command {
	var available bool
	var query string

	cmd := &cobra.Command{
		Use:   "books",
		Short: "List the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, *flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			heading, books := "All Books", a.mgr.ListAllBooks(ctx)
			switch {
			case query != "":
				heading = "Matching Books"
				if books, err = a.mgr.SearchBooks(ctx, query); err != nil {
					return fmt.Errorf("search books: %w", err)
				}
			case available:
				heading, books = "Available Books", a.mgr.ListAvailableBooks(ctx)
			}
			shell.WriteBooks(cmd.OutOrStdout(), heading, books)
			return nil
		},
	}
	cmd.Flags().BoolVar(&available, "available", false, "only books not on loan")
	cmd.Flags().StringVarP(&query, "search", "q", "", "full-text match on title, author and genre")
	return cmd
}

func newDrillCmd(flags *config.Flags) *cobra.Command {
	var rounds int
	var randSeed uint64

	cmd := &cobra.Command{
		Use:   "drill",
		Short: "Run self-check experiments against a fresh library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, *flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			engine := drill.NewEngine(drill.WithTracerProvider(a.telemetry.TracerProvider))
			if err := engine.RegisterExperiments(ctx, a.mgr, rounds, randSeed); err != nil {
				return err
			}
			_, err = engine.RunAll(ctx, cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().IntVar(&rounds, "rounds", 500, "workload steps in the loan churn experiment")
	cmd.Flags().Uint64Var(&randSeed, "rand-seed", 1, "seed for the generated workload")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "shelfkeeper %s\n", version)
		},
	}
}
