// Package main implements newterm, a single-session terminal emulator that
// runs a shell on a pseudo-terminal and renders it inside the host terminal.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Gaurav-Gosain/newterm/internal/config"
	"github.com/Gaurav-Gosain/newterm/internal/theme"
	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

// Version information (set by goreleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = "unknown"
)

// Global flags
var (
	debugMode       bool
	shellFlag       string
	refreshRate     int
	initialCommand  string
	themeName       string
	listThemes      bool
	scrollbackLines int
)

func overridesFromFlags() config.Overrides {
	return config.Overrides{
		Shell:           shellFlag,
		RefreshRate:     refreshRate,
		InitialCommand:  initialCommand,
		ThemeName:       themeName,
		ScrollbackLines: scrollbackLines,
		Debug:           debugMode,
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "newterm",
		Short: "A terminal emulator in your terminal",
		Long: `newterm - a terminal emulator in your terminal

Runs your shell on a pseudo-terminal, keeps its screen and scrollback, and
draws it with a status bar showing the title, bell and working file.
Press the prefix key (default ctrl+]) followed by ? for help.`,
		Example: `  # Run your default shell
  newterm

  # Run a specific shell with a theme
  newterm --shell zsh --theme dracula

  # Cap the refresh rate
  newterm --refresh-rate 30

  # List all available themes
  newterm --list-themes

  # Run a command headless and print its output
  newterm run -- ls -la

  # Edit configuration
  newterm config edit`,
		Version: version,
		RunE: func(_ *cobra.Command, _ []string) error {
			if listThemes {
				return printThemes()
			}
			return runLocal()
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&shellFlag, "shell", "", "Shell to run (default: from config, then $SHELL)")
	rootCmd.PersistentFlags().IntVar(&refreshRate, "refresh-rate", 0, "Refresh rate in updates per second on AC and battery (default: from config or 60)")
	rootCmd.PersistentFlags().StringVar(&initialCommand, "initial-command", "", "Command typed into the shell once it is displayed")
	rootCmd.PersistentFlags().StringVar(&themeName, "theme", "", "Color theme to use (e.g., dracula, nord). Leave empty to use standard terminal colors")
	rootCmd.PersistentFlags().IntVar(&scrollbackLines, "scrollback-lines", 0, "Number of lines to keep in scrollback (default: from config or 10000, min: 100, max: 1000000)")
	rootCmd.Flags().BoolVar(&listThemes, "list-themes", false, "List all available themes and exit")

	var runCols, runRows int
	runCmd := &cobra.Command{
		Use:   "run -- <command> [args...]",
		Short: "Run a command headless and print its screen",
		Long: `Run a command in a session without a display

The command runs on a pseudo-terminal of the given size. When it exits,
the scrollback and final screen are printed as plain text.`,
		Example: `  newterm run -- ls --color=always
  newterm run --cols 120 --rows 40 -- htop -d 1`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHeadless(cmd.Context(), args, runCols, runRows)
		},
	}
	runCmd.Flags().IntVar(&runCols, "cols", 0, "Terminal width (default: host width or 80)")
	runCmd.Flags().IntVar(&runRows, "rows", 0, "Terminal height (default: host height or 24)")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage newterm configuration",
		Long:  `Manage the newterm configuration file`,
	}

	configPathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print configuration file path",
		Long:  `Print the path to the newterm configuration file`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return printConfigPath()
		},
	}

	configEditCmd := &cobra.Command{
		Use:   "edit",
		Short: "Edit configuration in $EDITOR",
		Long: `Open the newterm configuration file in your default editor

The editor is determined by checking $EDITOR, $VISUAL, or common editors
like vim, vi and nano in that order. Running sessions pick up the saved
file automatically.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return editConfigFile()
		},
	}

	var resetYes bool
	configResetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset configuration to defaults",
		Long: `Reset the newterm configuration file to default settings

This will overwrite your existing configuration after confirmation.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return resetConfigToDefaults(resetYes)
		},
	}
	configResetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Skip the confirmation prompt")

	configCmd.AddCommand(configPathCmd, configEditCmd, configResetCmd)

	rootCmd.AddCommand(runCmd, configCmd)

	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(fmt.Sprintf("%s\nCommit: %s\nBuilt: %s\nBy: %s", version, commit, date, builtBy)),
	); err != nil {
		os.Exit(1)
	}
}

func printThemes() error {
	if err := theme.Initialize("default"); err != nil {
		return fmt.Errorf("failed to initialize themes: %w", err)
	}
	for _, t := range theme.Available() {
		fmt.Println(t)
	}
	return nil
}
