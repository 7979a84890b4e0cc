package main

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"chatfunnel/internal/logging"
	"chatfunnel/internal/playback"
	"chatfunnel/internal/tui"
)

func newPlayCmd(opts *rootOptions) *cobra.Command {
	var (
		scriptPath string
		fast       bool
		plain      bool
	)
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play the conversation in the terminal",
		Long: `Plays the script with the same pacing as the landing page.

On a terminal an interactive player is started. When stdout is not a
terminal, or with --plain, finished turns are printed line by line and
choices are read from stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := scriptPath
			if path == "" {
				if cfg, err := opts.load(); err == nil {
					path = cfg.ScriptPath
				}
			}
			g, err := loadScript(path)
			if err != nil {
				return err
			}
			speed := playback.SpeedNormal
			if fast {
				speed = playback.SpeedFast
			}
			e := playback.New(g, playback.Options{Speed: speed, Logger: logging.Discard()})
			defer e.Close()

			isTTY := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
			if plain || !isTTY {
				return tui.Stream(cmd.Context(), e, cmd.InOrStdin(), cmd.OutOrStdout())
			}
			return tui.Run(e)
		},
	}
	cmd.Flags().StringVar(&scriptPath, "script", "", "Script YAML (defaults to the configured or embedded script)")
	cmd.Flags().BoolVar(&fast, "fast", false, "Start at double speed")
	cmd.Flags().BoolVar(&plain, "plain", false, "Print plain lines even on a terminal")
	return cmd
}
