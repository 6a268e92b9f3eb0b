package main

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/report"
)

var (
	reportTop    int
	reportOutput string
	reportJSON   bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print statistics for the stored player table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("read"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		records, err := st.All(ctx)
		if err != nil {
			return eris.Wrap(err, "report: read store")
		}

		top := reportTop
		if top <= 0 {
			top = cfg.Report.TopN
		}
		rep := report.Generate(records, top)

		var out string
		if reportJSON {
			data, err := json.MarshalIndent(rep, "", "  ")
			if err != nil {
				return eris.Wrap(err, "report: marshal")
			}
			out = string(data) + "\n"
		} else {
			out = rep.Text()
		}

		if reportOutput != "" {
			if err := writeTextFile(reportOutput, out); err != nil {
				return err
			}
			zap.L().Info("report: written", zap.String("path", reportOutput))
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	reportCmd.Flags().IntVar(&reportTop, "top", 0, "nationalities to list (default from config)")
	reportCmd.Flags().StringVar(&reportOutput, "output", "", "write the report to a file instead of stdout")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "emit JSON instead of text")
	rootCmd.AddCommand(reportCmd)
}
