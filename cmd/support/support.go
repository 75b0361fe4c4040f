// Package support implements the diagnostics bundle command
// SPEC_FULL.md §3.8 derives from the teacher's cmd/support/collect.go:
// instead of a full zipped support archive, this core surfaces the
// in-process counters and durable queue depths an operator needs to
// triage a stuck pipeline, since the HTML/diagnostics site generation
// itself is out of scope (spec.md §1).
package support

import (
	"fmt"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/chboishabba/tircorder-JOBBIE/internal/config"
	"github.com/chboishabba/tircorder-JOBBIE/internal/logging"
	"github.com/chboishabba/tircorder-JOBBIE/internal/store"
)

// Command builds the "support" parent command.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "support",
		Short: "Diagnostic commands for the ingestion pipeline",
	}
	cmd.AddCommand(statusCommand(), clearSkipCommand())
	return cmd
}

// clearSkipCommand implements the operator-only SkipRecord removal spec.md
// §9 mandates: the core never auto-clears a skip, so this is the only way a
// permanently failed item re-enters QT/QC.
func clearSkipCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-skip <known-file-id>",
		Short: "Remove a SkipRecord so the file can be re-enqueued",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid known-file id %q: %w", args[0], err)
			}

			cfg, err := config.Load(nil)
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			st, err := store.Open(cfg.StatePath, logging.Global())
			if err != nil {
				return fmt.Errorf("opening state store: %w", err)
			}
			defer st.Close()

			if err := st.ClearSkip(uint(id)); err != nil {
				return fmt.Errorf("clearing skip record: %w", err)
			}
			fmt.Printf("skip record cleared for known_file_id %d\n", id)
			return nil
		},
	}
}

func statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print queue depth, dangling pairs, and state-store disk usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(nil)
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			st, err := store.Open(cfg.StatePath, logging.Global())
			if err != nil {
				return fmt.Errorf("opening state store: %w", err)
			}
			defer st.Close()

			qt, err := st.CountQT()
			if err != nil {
				return err
			}
			qc, err := st.CountQC()
			if err != nil {
				return err
			}
			dangling, err := st.ListDangling()
			if err != nil {
				return err
			}
			pairs, err := st.ListPairs()
			if err != nil {
				return err
			}
			rate, err := st.TranscriptionRate()
			if err != nil {
				return err
			}

			fmt.Printf("transcribe queue depth: %d\n", qt)
			fmt.Printf("convert queue depth:    %d\n", qc)
			fmt.Printf("matched pairs:          %d\n", len(pairs))
			fmt.Printf("dangling audio files:   %d\n", len(dangling))
			fmt.Printf("transcribed per minute: %d\n", rate.TranscribedPerMinute)
			fmt.Printf("transcribed per hour:   %d\n", rate.TranscribedPerHour)

			if info, statErr := os.Stat(cfg.StatePath); statErr == nil {
				fmt.Printf("state store size:       %s\n", humanize.Bytes(uint64(info.Size())))
			}
			return nil
		},
	}
}
