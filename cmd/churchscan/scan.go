package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dwyoon/churchscan/internal/config"
	"github.com/dwyoon/churchscan/internal/discovery"
	"github.com/dwyoon/churchscan/internal/newsletter"
	"github.com/dwyoon/churchscan/internal/pipeline"
)

var (
	scanSource string
	scanFull   bool
	scanVerify bool
	scanFrom   string
	scanTo     string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Discover and ingest new issues",
	Long: `Scan the configured listing for issues and run the full ingestion
pipeline on each: recognition, correction, segmentation, metadata,
chunking, embedding, and persistence.

Incremental by default: only issues above the highest already-stored
number are processed, and completed issues are never touched. Use
--full to delete non-completed issues and rescan the whole range.

An optional range is given as two issue URLs; the boundary order does
not matter.

Examples:
  churchscan scan                          # incremental, newsletter source
  churchscan scan --source bulletin
  churchscan scan --full
  churchscan scan --from URL1 --to URL2    # bounded range`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfg := cm.Get()

		a, err := buildApp(cfg, scanSource, logger)
		if err != nil {
			return err
		}

		var scanRange discovery.Range
		if scanFrom != "" || scanTo != "" {
			if scanFrom == "" || scanTo == "" {
				return fmt.Errorf("--from and --to must be given together")
			}
			scanRange, err = discovery.ResolveRange(scanFrom, scanTo, nil)
			if err != nil {
				return fmt.Errorf("resolving range: %w", err)
			}
		}

		mode := pipeline.ModeIncremental
		if scanFull {
			mode = pipeline.ModeFull
		}

		verify := scanVerify || cfg.Pipeline.Verify

		// The command context cancels on SIGINT; the pipeline drains the
		// current issue before halting instead of dying mid-write.
		sigCtx := cmd.Context()
		summary, err := a.pipeline.Run(context.WithoutCancel(sigCtx), pipeline.Options{
			Mode:        mode,
			Kind:        newsletter.SourceKind(cfg.Sources[scanSource].Kind),
			Range:       scanRange,
			Verify:      verify,
			CallTimeout: callTimeout(cfg),
			Stop:        func() bool { return sigCtx.Err() != nil },
			Progress: func(ev pipeline.Event) {
				logger.Info("progress", "step", ev.Step, "percent", ev.Percent, "detail", ev.Detail)
			},
		})
		if err != nil {
			return err
		}
		printSummary(summary)
		return nil
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanSource, "source", "newsletter", "configured source to scan")
	scanCmd.Flags().BoolVar(&scanFull, "full", false, "full rescan: drop non-completed issues and rescan the range")
	scanCmd.Flags().BoolVar(&scanVerify, "verify", false, "cross-model verification pass on every page")
	scanCmd.Flags().StringVar(&scanFrom, "from", "", "issue URL bounding one end of the scan range")
	scanCmd.Flags().StringVar(&scanTo, "to", "", "issue URL bounding the other end of the scan range")
}
