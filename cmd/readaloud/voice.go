package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/readaloud-go/internal/tts"
)

var voiceCmd = &cobra.Command{
	Use:   "voice",
	Short: "Show or update the stored voice parameters",
	Long: `Without flags, voice prints the stored voice parameters as JSON.
With any of --rate, --pitch, --volume or --model it updates them first.`,
	Args: cobra.NoArgs,
	RunE: runVoice,
}

func init() {
	voiceCmd.Flags().Float64("rate", 1.0, "speech rate multiplier (1.0 is normal)")
	voiceCmd.Flags().Float64("pitch", 1.0, "pitch multiplier (1.0 is normal)")
	voiceCmd.Flags().Float64("volume", 1.0, "playback volume between 0 and 1")
	voiceCmd.Flags().String("model", "", "path to the Piper ONNX voice model")
	rootCmd.AddCommand(voiceCmd)
}

// applyVoiceFlags overlays the changed flags on p and reports whether
// anything changed.
func applyVoiceFlags(cmd *cobra.Command, p tts.VoiceParams) (tts.VoiceParams, bool, error) {
	flags := cmd.Flags()
	changed := false
	var err error

	if flags.Changed("rate") {
		if p.Rate, err = flags.GetFloat64("rate"); err != nil {
			return p, false, err
		}
		changed = true
	}
	if flags.Changed("pitch") {
		if p.Pitch, err = flags.GetFloat64("pitch"); err != nil {
			return p, false, err
		}
		changed = true
	}
	if flags.Changed("volume") {
		if p.Volume, err = flags.GetFloat64("volume"); err != nil {
			return p, false, err
		}
		changed = true
	}
	if flags.Changed("model") {
		if p.VoiceModel, err = flags.GetString("model"); err != nil {
			return p, false, err
		}
		changed = true
	}
	return p, changed, nil
}

func runVoice(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	params, err := a.store.VoiceParams()
	if err != nil {
		return err
	}

	params, changed, err := applyVoiceFlags(cmd, params)
	if err != nil {
		return err
	}
	if changed {
		if err := a.store.UpdateVoiceParams(params); err != nil {
			return err
		}
		a.logger.Info("voice parameters updated")
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(params)
}
