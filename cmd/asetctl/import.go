package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"asetmon/internal/core"
	"asetmon/internal/services"
	"asetmon/internal/sheets/xlsx"
)

// cliActor is recorded as the importer of command-line imports.
const cliActor = "asetctl"

func newImportCmd(a *app) *cobra.Command {
	var (
		yes   bool
		sheet string
	)
	cmd := &cobra.Command{
		Use:   "import <file.xlsx>",
		Short: "Preview an asset workbook and, with --yes, replace every stored asset with it",
		Long: `Preview an asset workbook and, with --yes, replace every stored asset with it.

A running asetmon server caches the asset table for REPORT_CACHE_TTL, so the
monitoring page can show the previous data for up to that long after an
import from this command.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			repo, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer repo.Close()

			svc := services.NewImportService(repo, nil, a.logger)
			name := filepath.Base(path)
			src := xlsx.New(f, name)
			if sheet != "" {
				src = src.WithSheet(sheet)
			}
			batch, err := svc.Preview(cmd.Context(), src)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d rows, total value %s, %d warnings\n",
				len(batch.Assets), core.FormatRupiah(batch.TotalValue()), len(batch.Warnings))
			for _, w := range batch.Warnings {
				fmt.Fprintf(out, "  warning: %s\n", w.Error())
			}
			if len(batch.MissingColumns) > 0 {
				fmt.Fprintf(out, "missing columns: %v\n", batch.MissingColumns)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAMA\tNOMOR\tTAHUN\tNILAI\tJENIS\tKPH")
			for _, as := range batch.Preview(a.cfg.PreviewRows) {
				year := "-"
				if as.Year != nil {
					year = fmt.Sprint(*as.Year)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", as.Name, as.Number, year, core.FormatRupiah(as.Value), as.Type, as.Region)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if !yes {
				fmt.Fprintln(out, "Dry run: pass --yes to replace all stored assets with this file.")
				return nil
			}
			rec, err := svc.Commit(cmd.Context(), batch, name, core.Identity{Username: cliActor})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Imported %d rows (import %s)\n", rec.Rows, rec.ID)
			fmt.Fprintf(out, "Running servers show the new data within %s (REPORT_CACHE_TTL).\n", a.cfg.ReportCacheTTL)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "commit the import, replacing all stored assets")
	cmd.Flags().StringVar(&sheet, "sheet", "", "worksheet name (defaults to the first sheet)")
	return cmd
}
