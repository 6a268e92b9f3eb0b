package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/export"
	"github.com/sells-group/roster-cli/internal/report"
)

var (
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the player table to a CSV or XLSX file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("read"); err != nil {
			return err
		}
		if exportFormat != export.FormatCSV && exportFormat != export.FormatXLSX {
			return eris.Errorf("export: unknown format %q (want csv or xlsx)", exportFormat)
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		records, err := st.All(ctx)
		if err != nil {
			return eris.Wrap(err, "export: read store")
		}

		out := exportOutput
		if out == "" {
			out = "output/players." + exportFormat
		}
		rep := report.Generate(records, cfg.Report.TopN)
		opts := export.Options{Locale: cfg.Store.Locale, WriteBOM: cfg.Store.WriteBOM}
		if err := export.Write(exportFormat, out, records, rep, opts); err != nil {
			return err
		}

		zap.L().Info("export: complete",
			zap.String("format", exportFormat),
			zap.String("path", out),
			zap.Int("records", len(records)),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", export.FormatXLSX, "output format: csv or xlsx")
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "output path (default output/players.<format>)")
	rootCmd.AddCommand(exportCmd)
}
