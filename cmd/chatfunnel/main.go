// Command chatfunnel serves the scripted consultation chat landing page and
// its lead admin, and can play the script in a terminal.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"chatfunnel/internal/config"
	"chatfunnel/internal/logging"
	"chatfunnel/internal/script"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "chatfunnel",
		Short:        "Scripted consultation chat funnel",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("CHATFUNNEL_CONFIG"), "Path to a YAML config file")

	root.AddCommand(
		newServeCmd(opts),
		newPlayCmd(opts),
		newScriptCmd(opts),
		newLeadsCmd(opts),
	)
	return root
}

func (o *rootOptions) load() (*config.Config, error) {
	return config.Load(o.configPath)
}

// setupLogging installs the configured logger. The returned func flushes
// the file sink.
func setupLogging(cfg *config.Config) func() {
	_, closer := logging.Setup(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
		Writer: os.Stderr,
	})
	return func() { _ = closer.Close() }
}

// loadScript returns the configured script, or the embedded one when no
// path is set.
func loadScript(path string) (*script.Graph, error) {
	if path == "" {
		return script.Default()
	}
	return script.Load(path)
}
