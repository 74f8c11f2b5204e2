package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/warp/roster-engine/factory"
	"github.com/warp/roster-engine/generic"
	"github.com/warp/roster-engine/generic/store"
	"github.com/warp/roster-engine/ingest"
	"github.com/warp/roster-engine/reconcile"
	"go.uber.org/zap"
)

var (
	checkAliases string
	checkRules   []string
	checkToday   string
	checkLocale  string
	checkSheet   string
	checkFailRTW bool
)

var checkCmd = &cobra.Command{
	Use:   "check [files...]",
	Short: "Reconcile files on disk and print the report",
	Long: `Reads CSV/XLSX exports, reconciles them in memory and prints the report
as JSON on stdout. Nothing is persisted.

Example:
  roster check --rules expiry.json --today 2025-02-01 sickness.csv rota.xlsx`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkAliases, "aliases", "", "alias table JSON (default: built-in table)")
	checkCmd.Flags().StringSliceVar(&checkRules, "rules", nil, "rule set JSON file (repeatable)")
	checkCmd.Flags().StringVar(&checkToday, "today", "", "report date as YYYY-MM-DD (default: today)")
	checkCmd.Flags().StringVar(&checkLocale, "locale", "", "explicit locale for every file (uk/us)")
	checkCmd.Flags().StringVar(&checkSheet, "sheet", "", "worksheet to read from XLSX files")
	checkCmd.Flags().BoolVar(&checkFailRTW, "fail-on-rtw", false, "exit non-zero when anyone needs an RTW interview")
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	today := generic.Today(generic.SystemClock{})
	if checkToday != "" {
		d, err := generic.ParseISO(checkToday)
		if err != nil {
			return fmt.Errorf("invalid --today: %w", err)
		}
		today = d
	}
	locale, err := generic.ParseLocale(checkLocale)
	if err != nil {
		return err
	}

	mem := store.NewMemory()

	aliasJSON := factory.DefaultAliasTableJSON()
	if checkAliases != "" {
		b, err := os.ReadFile(checkAliases)
		if err != nil {
			return fmt.Errorf("failed to read alias table: %w", err)
		}
		aliasJSON = string(b)
	}
	aliases, err := factory.ParseAliasTable(aliasJSON)
	if err != nil {
		return err
	}
	if err := mem.ReplaceAliases(ctx, aliases); err != nil {
		return err
	}

	for _, path := range checkRules {
		b, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read rule set: %w", err)
		}
		set, err := factory.ParseRuleSet(string(b))
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := mem.SaveRules(ctx, set.Rules); err != nil {
			return err
		}
	}

	files, err := ingest.LoadFiles(ctx, args, ingest.Options{Locale: locale, Sheet: checkSheet})
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := mem.SaveFile(ctx, f); err != nil {
			return err
		}
		logger.Debug("file loaded", zap.String("name", f.Name), zap.Int("rows", len(f.Rows)))
	}

	snap, err := generic.LoadSnapshot(ctx, mem)
	if err != nil {
		return err
	}
	report := reconcile.Run(reconcile.FromSnapshot(snap, today, cfg.Settings()))
	logger.Info("reconciled",
		zap.Stringer("today", today),
		zap.Int("files", len(report.Files)),
		zap.Int("staff", len(report.Facts)),
		zap.Int("needs_rtw", len(report.NeedsRTW)),
		zap.Int("diagnostics", len(report.Diagnostics)))

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	if checkFailRTW && len(report.NeedsRTW) > 0 {
		return fmt.Errorf("%d staff need an RTW interview", len(report.NeedsRTW))
	}
	return nil
}
