package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"chatfunnel/internal/script"
)

func newScriptCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "script",
		Short: "Inspect and validate conversation scripts",
	}
	cmd.AddCommand(newScriptValidateCmd(), newScriptShowCmd(opts), newScriptSchemaCmd())
	return cmd
}

func newScriptValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check script files for authoring defects",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				g, err := script.Load(path)
				if err != nil {
					failed++
					fmt.Fprintf(out, "%s %s\n", color.RedString("✗"), path)
					var ce *script.ConfigError
					if errors.As(err, &ce) {
						for _, p := range ce.Problems {
							fmt.Fprintf(out, "    - %s\n", p)
						}
					} else {
						fmt.Fprintf(out, "    - %v\n", err)
					}
					continue
				}
				fmt.Fprintf(out, "%s %s (%d messages)\n", color.GreenString("✓"), path, g.Len())
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d scripts invalid", failed, len(args))
			}
			return nil
		},
	}
}

func newScriptShowCmd(opts *rootOptions) *cobra.Command {
	var dump bool
	cmd := &cobra.Command{
		Use:   "show [file]",
		Short: "Print the main flow, choices and detours of a script",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else if cfg, err := opts.load(); err == nil {
				path = cfg.ScriptPath
			}
			if dump {
				return writeSource(cmd, path)
			}
			g, err := loadScript(path)
			if err != nil {
				return err
			}
			printGraph(cmd, g)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dump, "raw", false, "Print the YAML source instead")
	return cmd
}

func writeSource(cmd *cobra.Command, path string) error {
	b := script.DefaultSource()
	if path != "" {
		var err error
		if b, err = os.ReadFile(filepath.Clean(path)); err != nil { //nolint:gosec // operator-supplied path
			return err
		}
	}
	_, err := cmd.OutOrStdout().Write(b)
	return err
}

func printGraph(cmd *cobra.Command, g *script.Graph) {
	out := cmd.OutOrStdout()
	cast := g.Cast()
	bold := color.New(color.Bold)

	bold.Fprintln(out, g.Title())
	fmt.Fprintf(out, "A: %s  B: %s  chooser: %s\n\n", cast.A.Name, cast.B.Name, cast.Name(g.Chooser()))
	for i := 0; i < g.Len(); i++ {
		m := g.At(i)
		fmt.Fprintf(out, "%3d  %-2s %s: %s\n", m.ID, m.Speaker, cast.Name(m.Speaker), m.Text)
		for _, c := range m.Choices {
			fmt.Fprintf(out, "       %s %s → %d\n", color.CyanString("?"), c.Label, c.Target)
			d, ok := g.Detour(c.Target)
			if !ok {
				continue
			}
			for _, dm := range d.Messages {
				fmt.Fprintf(out, "         %s %s: %s\n", color.YellowString("↳"), cast.Name(dm.Speaker), dm.Text)
			}
			fmt.Fprintf(out, "         %s rejoin at %d\n", color.YellowString("↳"), d.Rejoin)
		}
	}
}

func newScriptSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the script format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := script.Schema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return err
		},
	}
}
