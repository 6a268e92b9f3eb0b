package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/model"
	"github.com/sells-group/roster-cli/internal/monitoring"
	"github.com/sells-group/roster-cli/internal/report"
	"github.com/sells-group/roster-cli/internal/seed"
	"github.com/sells-group/roster-cli/internal/store"
)

var (
	syncSeed        string
	syncLimit       int
	syncRetryFailed bool
	syncOffline     string
	syncDryRun      bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh stored player records from the upstream sources",
	Long: `Runs one update pass: every identity is looked up, normalized,
validated and reconciled against its stored record, in list order.

Identities come from --seed, else seed.players in config, else every
identity already in the store.

Examples:
  # Refresh everyone already in the table
  roster-cli sync

  # Add players from a seed list
  roster-cli sync --seed players.yaml

  # Retry only identities whose last fetch failed
  roster-cli sync --retry-failed

  # Offline pass against saved pages
  roster-cli sync --offline testdata/pages --dry-run`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initSync(ctx, syncOffline, syncDryRun)
		if err != nil {
			return eris.Wrap(err, "sync: init")
		}
		defer env.Close()

		ids, err := resolveIdentities(ctx, env.Store)
		if err != nil {
			return err
		}
		if syncLimit > 0 && syncLimit < len(ids) {
			ids = ids[:syncLimit]
		}
		if len(ids) == 0 {
			zap.L().Info("sync: nothing to do")
			return nil
		}

		sum, runErr := env.Pipeline.Run(ctx, ids)
		if runErr != nil {
			zap.L().Error("sync: pass stopped early",
				zap.Int("processed", sum.Processed),
				zap.Error(runErr),
			)
			return runErr
		}

		records, err := env.Store.All(ctx)
		if err != nil {
			return eris.Wrap(err, "sync: read store")
		}
		rep := report.Generate(records, cfg.Report.TopN).WithRun(sum)
		text := rep.Text()

		if !syncDryRun && cfg.Report.Path != "" {
			if err := writeTextFile(cfg.Report.Path, text); err != nil {
				return err
			}
			zap.L().Info("sync: report written", zap.String("path", cfg.Report.Path))
		}
		fmt.Fprint(cmd.OutOrStdout(), text)

		logFailures(sum)

		alerter := monitoring.NewAlerter(cfg.Monitoring)
		if alerts := alerter.Evaluate(sum); len(alerts) > 0 {
			for _, a := range alerts {
				zap.L().Warn("sync: alert", zap.String("type", string(a.Type)), zap.String("message", a.Message))
			}
			alerter.SendAlerts(ctx, alerts)
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncSeed, "seed", "", "seed file of identities (yaml, csv, xlsx or text)")
	syncCmd.Flags().IntVar(&syncLimit, "limit", 0, "max identities to process (0 = all)")
	syncCmd.Flags().BoolVar(&syncRetryFailed, "retry-failed", false, "process only identities whose last fetch failed")
	syncCmd.Flags().StringVar(&syncOffline, "offline", "", "serve pages from this fixture directory instead of the network")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "run the pass without writing the store, ledger or report")
	syncCmd.MarkFlagsMutuallyExclusive("seed", "retry-failed")
	rootCmd.AddCommand(syncCmd)
}

// resolveIdentities picks the identity list for a pass.
func resolveIdentities(ctx context.Context, st store.Store) ([]string, error) {
	if syncRetryFailed {
		ledger, ok := store.Ledger(st)
		if !ok {
			return nil, eris.Errorf("sync: store driver %q keeps no failure ledger", cfg.Store.Driver)
		}
		failures, err := ledger.ListFailures(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "sync: list failures")
		}
		ids := make([]string, 0, len(failures))
		for _, f := range failures {
			ids = append(ids, f.Identity)
		}
		zap.L().Info("sync: retrying failed identities", zap.Int("count", len(ids)))
		return ids, nil
	}

	path := syncSeed
	if path == "" {
		path = cfg.Seed.Path
	}
	if path != "" {
		ids, err := seed.Load(path)
		if err != nil {
			return nil, eris.Wrap(err, "sync: load seed")
		}
		return ids, nil
	}

	if len(cfg.Seed.Players) > 0 {
		return seed.Dedupe(cfg.Seed.Players), nil
	}

	ids, err := store.Identities(ctx, st)
	if err != nil {
		return nil, eris.Wrap(err, "sync: list stored identities")
	}
	return ids, nil
}

func logFailures(sum model.RunSummary) {
	if len(sum.FailedIdentities) == 0 && len(sum.RejectedIdentities) == 0 {
		return
	}
	zap.L().Warn("sync: some identities were not refreshed",
		zap.Strings("failed", sum.FailedIdentities),
		zap.Strings("rejected", sum.RejectedIdentities),
	)
}

// writeTextFile writes text to path, creating parent directories.
func writeTextFile(path, text string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "create directory %s", dir)
		}
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return eris.Wrapf(err, "write %s", path)
	}
	return nil
}
