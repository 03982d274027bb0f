package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"asetmon/internal/cli"
	"asetmon/internal/config"
	applog "asetmon/internal/log"
	"asetmon/internal/storage"
)

// app carries what every subcommand needs once the root pre-run has loaded
// configuration.
type app struct {
	in     io.Reader
	out    io.Writer
	cfg    *config.Config
	logger *applog.Logger
}

func (a *app) openStore(ctx context.Context) (*storage.Repository, error) {
	return cli.OpenStore(ctx, a.logger, a.cfg)
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	a := &app{in: in, out: out}

	root := &cobra.Command{
		Use:           "asetctl",
		Short:         "Administer the asset monitoring store",
		Long:          "asetctl manages the asset monitoring database: schema migrations, login users and spreadsheet imports.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cli.LoadEnvFile()
			cfg, err := cli.LoadAndValidateConfig()
			if err != nil {
				return err
			}
			a.cfg = cfg
			level := cfg.SlogLevel()
			if level < slog.LevelWarn {
				level = slog.LevelWarn
			}
			logger, err := applog.New(cmd.ErrOrStderr(), cfg.LogFormat, level, applog.ComponentApp)
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
	}
	root.SetIn(in)
	root.SetOut(out)

	root.AddCommand(newMigrateCmd(a))
	root.AddCommand(newUserCmd(a))
	root.AddCommand(newImportCmd(a))
	return root
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer repo.Close()
			cmd.Printf("Migrations applied (%s, schema version %d)\n", repo.Driver(), repo.SchemaVersion())
			return nil
		},
	}
}
