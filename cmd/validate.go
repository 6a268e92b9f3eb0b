package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var validateStrict bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check every stored record against the validation rules",
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
			return eris.Wrap(err, "validate: read store")
		}

		v := buildValidator()
		for _, rec := range records {
			res := v.Validate(rec)
			for _, issue := range res.Errors {
				zap.L().Warn("validate: invalid record",
					zap.String("identity", rec.Identity),
					zap.String("field", issue.Field),
					zap.String("reason", issue.Message),
				)
			}
		}

		sum := v.Summarize(records)
		fmt.Fprint(cmd.OutOrStdout(), sum.Text(cfg.Report.TopN))

		if validateStrict && sum.Invalid > 0 {
			return eris.Errorf("validate: %d of %d records invalid", sum.Invalid, sum.Total)
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "exit non-zero when any record is invalid")
	rootCmd.AddCommand(validateCmd)
}
