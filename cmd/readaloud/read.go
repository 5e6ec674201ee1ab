package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/readaloud-go/internal/session"
	"github.com/dgnsrekt/readaloud-go/internal/text"
)

var readCmd = &cobra.Command{
	Use:   "read FILE",
	Short: "Read a text file aloud",
	Long: `Read FILE aloud from the beginning, from --from, or from the stored
checkpoint with --resume. Reading stops at end of file or on Ctrl-C; the
position of the interrupted sentence is saved.`,
	Args: cobra.ExactArgs(1),
	RunE: runRead,
}

func init() {
	readCmd.Flags().Int64("from", 0, "byte offset to start reading at")
	readCmd.Flags().Bool("resume", false, "start at the stored checkpoint")
	readCmd.Flags().Bool("line-start", false, "snap the start offset back to the beginning of its line")
	readCmd.Flags().Bool("dry-run", false, "synthesize but log instead of playing audio")
	rootCmd.AddCommand(readCmd)
}

// startOffset resolves the flags to a start offset given the restored
// checkpoint.
func startOffset(cmd *cobra.Command, checkpoint int64) (int64, error) {
	resume, err := cmd.Flags().GetBool("resume")
	if err != nil {
		return 0, err
	}
	if cmd.Flags().Changed("from") {
		if resume {
			return 0, fmt.Errorf("--from and --resume are mutually exclusive")
		}
		return cmd.Flags().GetInt64("from")
	}
	if resume {
		return checkpoint, nil
	}
	return 0, nil
}

func runRead(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if err := a.buildController(dryRun); err != nil {
		return err
	}

	if err := a.ctrl.Open(args[0]); err != nil {
		return err
	}
	doc := a.ctrl.Document()

	pos, err := startOffset(cmd, a.ctrl.CurrentPosition())
	if err != nil {
		return err
	}
	if lineStart, _ := cmd.Flags().GetBool("line-start"); lineStart {
		if pos, err = session.LineStart(doc, pos); err != nil {
			return err
		}
	}

	remaining := text.EstimateReadingTime(doc.ReadBetween(pos, doc.Size()), text.DefaultWordsPerMinute)
	a.logger.Info("reading",
		"path", doc.Path(),
		"position", pos,
		"line", doc.LineNumberAt(pos),
		"estimated", remaining.Round(time.Second),
	)

	if err := a.ctrl.Start(pos); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- a.ctrl.Wait(context.Background())
	}()

	select {
	case err := <-done:
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "finished %s\n", doc.Path())
	case <-ctx.Done():
		a.logger.Info("interrupted, stopping")
		if err := a.ctrl.Stop(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "stopped at byte %d (line %d)\n",
			a.ctrl.CurrentPosition(), doc.LineNumberAt(a.ctrl.CurrentPosition()))
	}
	return nil
}
