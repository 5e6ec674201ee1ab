package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/readaloud-go/internal/document"
	"github.com/dgnsrekt/readaloud-go/internal/store"
)

var positionCmd = &cobra.Command{
	Use:   "position FILE",
	Short: "Show the stored reading position of a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runPosition,
}

var positionSetCmd = &cobra.Command{
	Use:   "set FILE OFFSET",
	Short: "Store a reading position without reading",
	Args:  cobra.ExactArgs(2),
	RunE:  runPositionSet,
}

var positionClearCmd = &cobra.Command{
	Use:   "clear FILE",
	Short: "Forget the stored reading position of a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runPositionClear,
}

func init() {
	positionSetCmd.Flags().Bool("line-start", false, "snap the offset back to the beginning of its line")
	positionCmd.AddCommand(positionSetCmd, positionClearCmd)
	rootCmd.AddCommand(positionCmd)
}

func runPosition(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	path := store.ResolvePath(args[0])
	pos, ok, err := a.store.LastPosition(path)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: no stored position\n", path)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", path, describePosition(path, pos))
	return nil
}

// describePosition adds line context when the file is readable.
func describePosition(path string, pos int64) string {
	doc, err := document.Open(path)
	if err != nil {
		return fmt.Sprintf("byte %d", pos)
	}
	defer doc.Close()
	return fmt.Sprintf("byte %d of %d, line %d", pos, doc.Size(), doc.LineNumberAt(pos))
}

func runPositionSet(cmd *cobra.Command, args []string) error {
	pos, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid offset %q: %w", args[1], err)
	}

	doc, err := document.Open(args[0])
	if err != nil {
		return err
	}
	defer doc.Close()

	if pos < 0 || pos > doc.Size() {
		return fmt.Errorf("offset %d not in [0, %d]", pos, doc.Size())
	}
	if lineStart, _ := cmd.Flags().GetBool("line-start"); lineStart {
		pos = doc.LineStartBefore(pos)
	}

	a, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.SetLastPosition(doc.Path(), pos); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", store.ResolvePath(doc.Path()), describePosition(doc.Path(), pos))
	return nil
}

func runPositionClear(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.RemoveLastPosition(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: position cleared\n", store.ResolvePath(args[0]))
	return nil
}
