package main

import (
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:           "readaloud",
	Short:         "Read text files aloud with Piper, resuming where you left off",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
	Long: `readaloud streams a UTF-8 text file sentence by sentence through the
Piper speech synthesizer and plays the result, checkpointing the byte
offset of every sentence so reading can resume later.

Configuration is read from the environment (PIPER_PATH, PIPER_MODEL,
STATE_BACKEND, AUDIO_OUTPUT, PLAYER_COMMAND, ...).`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
