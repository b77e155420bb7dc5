package main

import (
	"fmt"

	mcobra "github.com/muesli/mango-cobra"
	"github.com/muesli/roff"
	"github.com/spf13/cobra"
)

var manCmd = &cobra.Command{
	Use:                   "man",
	Short:                 "Generates manpages",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Hidden:                true,
	Args:                  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		page, err := mcobra.NewManPage(1, rootCmd)
		if err != nil {
			return err
		}

		page = page.WithSection("Environment",
			"READALOUD_CONFIG_HOME overrides the config directory. "+
				"Every config key can be set with a READALOUD_ variable, for example READALOUD_STREAM_VOICE. "+
				"READALOUD_DEBUG=true writes a debug log to the cache directory.")
		fmt.Println(page.Build(roff.NewDocument()))
		return nil
	},
}
