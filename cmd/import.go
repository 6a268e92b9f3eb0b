package main

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/model"
	"github.com/sells-group/roster-cli/internal/reconcile"
	"github.com/sells-group/roster-cli/internal/store"
	"github.com/sells-group/roster-cli/internal/validate"
)

var (
	importFrom   []string
	importDryRun bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Merge legacy player CSV files into the store",
	Long: `Reads one or more player tables in either header locale, folds rows
that share an identity and merges the result into the configured store.
Known values are never replaced by unknown ones.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("read"); err != nil {
			return err
		}

		incoming, err := readLegacy(ctx, importFrom)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sum, err := mergeInto(ctx, st, buildValidator(), incoming, importDryRun)
		if err != nil {
			return err
		}

		zap.L().Info("import: complete",
			zap.Int("read", len(incoming)),
			zap.Int("created", sum.created),
			zap.Int("updated", sum.updated),
			zap.Int("rejected", sum.rejected),
			zap.Bool("dry_run", importDryRun),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringSliceVar(&importFrom, "from", nil, "legacy CSV file(s) to import (required)")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "report what would change without writing")
	_ = importCmd.MarkFlagRequired("from")
	rootCmd.AddCommand(importCmd)
}

// readLegacy loads every file and folds duplicate identities across them.
func readLegacy(ctx context.Context, paths []string) ([]model.PlayerRecord, error) {
	if len(paths) == 0 {
		return nil, eris.New("import: at least one --from file is required")
	}
	var all []model.PlayerRecord
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return nil, eris.Wrapf(err, "import: stat %s", p)
		}
		src, err := store.NewCSV(p, store.CSVOptions{})
		if err != nil {
			return nil, eris.Wrapf(err, "import: open %s", p)
		}
		recs, err := src.All(ctx)
		_ = src.Close()
		if err != nil {
			return nil, eris.Wrapf(err, "import: read %s", p)
		}
		if len(recs) == 0 {
			zap.L().Warn("import: file has no rows", zap.String("path", p))
		}
		all = append(all, recs...)
	}
	return reconcile.Dedupe(all), nil
}

// importCounts tallies what a merge did.
type importCounts struct {
	created  int
	updated  int
	rejected int
}

// mergeInto validates incoming records, reconciles them with the stored ones
// and writes the changed ones in one batch. Records with a bad identity are
// dropped; out-of-range fields are demoted to unknown before merging.
func mergeInto(ctx context.Context, st store.Store, val *validate.Validator, incoming []model.PlayerRecord, dryRun bool) (importCounts, error) {
	var sum importCounts
	var changed []model.PlayerRecord
	eng := reconcile.New()
	for i := range incoming {
		checked := val.Validate(incoming[i])
		log := zap.L().With(zap.String("identity", incoming[i].Identity))
		if !checked.Valid() {
			sum.rejected++
			for _, is := range checked.Errors {
				log.Error("import: record rejected",
					zap.String("field", is.Field),
					zap.String("reason", is.Message),
				)
			}
			continue
		}
		for _, w := range checked.Warnings {
			log.Warn("import: field demoted to unknown",
				zap.String("field", w.Field),
				zap.String("reason", w.Message),
			)
		}
		rec := checked.Cleaned

		prior, ok, err := st.Get(ctx, rec.Identity)
		if err != nil {
			return sum, eris.Wrapf(err, "import: get %s", rec.Identity)
		}
		var priorPtr *model.PlayerRecord
		demoted := false
		if ok {
			stored := val.Validate(prior).Cleaned
			demoted = stored.Age != prior.Age || stored.Role != prior.Role
			prior.Age, prior.Role = stored.Age, stored.Role
			priorPtr = &prior
		}
		res, err := eng.Reconcile(&rec, priorPtr)
		if err != nil {
			log.Warn("import: skipping record", zap.Error(err))
			continue
		}
		if !res.Changed() && !demoted {
			continue
		}
		if res.Created {
			sum.created++
		} else {
			sum.updated++
		}
		changed = append(changed, res.Record)
	}

	if dryRun {
		return sum, nil
	}
	if err := store.UpsertAll(ctx, st, changed); err != nil {
		return sum, eris.Wrap(err, "import: write records")
	}
	if err := st.Flush(ctx); err != nil {
		return sum, eris.Wrap(err, "import: flush")
	}
	return sum, nil
}
