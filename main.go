// Package main provides the entry point for the readaloud CLI application.
package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/dgnsrekt/readaloud/internal/config"
	"github.com/dgnsrekt/readaloud/internal/library"
	"github.com/dgnsrekt/readaloud/internal/tts"
	"github.com/dgnsrekt/readaloud/ui"
)

const appName = "readaloud"

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile   string
	provider     string
	voice        string
	showAllFiles bool
	mouse        bool
	autoPlay     bool

	// cfg is resolved from flags, environment and the config file before
	// any command runs.
	cfg config.Config

	rootCmd = &cobra.Command{
		Use:   "readaloud [PATH]",
		Short: "Listen to a book in your terminal",
		Long: paragraph(
			fmt.Sprintf("\nRead chapters %s, streamed from a speech service or spoken by your device.", keyword("aloud")),
		),
		Example:          paragraph("readaloud book/OEBPS\nreadaloud --provider native chapter-01.xhtml\nreadaloud play --echo book/ > /dev/null"),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return nil, cobra.ShellCompDirectiveDefault
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

// validateOptions resolves the configuration and applies flag overrides.
func validateOptions(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("unable to read config file: %w", err)
		}
		log.Debug("Using configuration file", "path", configFile)
	}

	c, err := config.FromViper(viper.GetViper())
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("provider") {
		kind, err := tts.ParseProviderKind(provider)
		if err != nil {
			return err
		}
		c.Provider = string(kind)
	}
	if cmd.Flags().Changed("voice") {
		if c.ProviderKind() == tts.ProviderNative {
			c.Native.Voice = voice
		} else {
			c.Stream.Voice = voice
		}
	}

	if err := c.Validate(); err != nil {
		return err
	}
	cfg = c
	return nil
}

// pathFromArgs returns the chapter path, defaulting to the working
// directory.
func pathFromArgs(args []string) (string, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return os.Getwd()
	}
	return args[0], nil
}

func execute(cmd *cobra.Command, args []string) error {
	path, err := pathFromArgs(args)
	if err != nil {
		return err
	}
	lib, err := library.Open(path, showAllFiles)
	if err != nil {
		if errors.Is(err, library.ErrNoChapters) {
			return fmt.Errorf("no chapters found in %s", path)
		}
		return err
	}

	// Without a terminal there is nothing to draw on: read headless.
	if !term.IsTerminal(int(os.Stdout.Fd())) { //nolint:gosec
		return readHeadless(cmd.Context(), lib, cmd.OutOrStdout())
	}
	return runTUI(path, lib)
}

func runTUI(path string, lib *library.Library) error {
	// Read environment to get debugging stuff
	uiCfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}

	uiCfg.Path = path
	uiCfg.EnableMouse = mouse
	if autoPlay {
		uiCfg.AutoPlay = true
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	watchConfig(a.player)

	// Anything written to stderr would tear the alt screen.
	if !fileLogging {
		log.SetOutput(io.Discard)
	}

	if _, err := ui.NewProgram(uiCfg, a.player, lib, a.cacheStats()).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "P", "", "speech provider: stream or native")
	rootCmd.PersistentFlags().StringVar(&voice, "voice", "", "voice id for the selected provider")
	rootCmd.PersistentFlags().Float64("volume", 1.0, "playback volume (0.0 to 1.0)")
	rootCmd.PersistentFlags().BoolVarP(&showAllFiles, "all", "a", false, "include hidden and ignored chapter files")
	rootCmd.Flags().BoolVar(&autoPlay, "autoplay", false, "start reading the first chapter at once")
	rootCmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse wheel")
	_ = rootCmd.Flags().MarkHidden("mouse")

	// Config bindings
	_ = viper.BindPFlag("volume", rootCmd.PersistentFlags().Lookup("volume"))
	config.SetDefaults(viper.GetViper())

	rootCmd.AddCommand(playCmd, voicesCmd, serveCmd, configCmd, manCmd)
}

// configDirs lists the directories searched for the config file, most
// specific first.
func configDirs() ([]string, error) {
	scope := gap.NewScope(gap.User, appName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		return nil, err
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, appName)}, dirs...)
	}

	if c := os.Getenv("READALOUD_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}
	return dirs, nil
}

func tryLoadConfigFromDefaultPlaces() {
	dirs, err := configDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName(appName)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix(appName)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	configFile = filepath.Join(dirs[0], appName+".yml")
}
