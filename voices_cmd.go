package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/readaloud/internal/native"
	"github.com/dgnsrekt/readaloud/internal/synth"
	"github.com/dgnsrekt/readaloud/internal/tts"
)

var voicesCmd = &cobra.Command{
	Use:     "voices",
	Short:   "List the voices of the selected provider",
	Example: paragraph("readaloud voices\nreadaloud voices --provider native"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		catalog, err := catalogFor(cfg.ProviderKind())
		if err != nil {
			return err
		}
		voices, err := catalog.Voices(ctx)
		if err != nil {
			return fmt.Errorf("unable to load voices: %w", err)
		}
		printVoices(cmd.OutOrStdout(), voices, selectedVoice())
		return nil
	},
}

// catalogFor returns the voice catalog of kind without opening the audio
// device.
func catalogFor(kind tts.ProviderKind) (synth.Catalog, error) {
	if kind == tts.ProviderNative {
		return native.NewEspeak(cfg.Native.Command, cfg.Native.Args, cfg.Native.Timeout), nil
	}
	return synth.NewClient(cfg.Stream.ClientConfig())
}

func selectedVoice() string {
	if cfg.ProviderKind() == tts.ProviderNative {
		return cfg.Native.Voice
	}
	return cfg.Stream.Voice
}

func printVoices(w io.Writer, voices []synth.Voice, selected string) {
	idWidth := 0
	for _, v := range voices {
		idWidth = max(idWidth, runewidth.StringWidth(v.ID))
	}

	for _, v := range voices {
		mark := "  "
		if v.ID == selected {
			mark = keyword("• ")
		}
		var details []string
		for _, d := range []string{v.Category, v.Language, v.Description} {
			if d != "" {
				details = append(details, d)
			}
		}
		fmt.Fprintf(w, "%s%s  %s %s\n",
			mark,
			runewidth.FillRight(v.ID, idWidth),
			v.Name,
			dim(strings.Join(details, " · ")),
		)
	}
	fmt.Fprintf(w, "\n%s %s\n", humanize.Comma(int64(len(voices))), dim("voices"))
}
