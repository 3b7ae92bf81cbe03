// Package cli implements the placeholders command line.
//
// Settings come from, highest priority first:
//  1. PLACEHOLDERS_<SECTION>_<OPTION> environment variables
//  2. the file named by --config or PLACEHOLDERS_CONFIG_FILE
//  3. built-in defaults
package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-content-placeholders/pkg/config"
	"github.com/goliatone/go-content-placeholders/pkg/di"
)

// ConfigFileEnv names the config file when --config is not given.
const ConfigFileEnv = "PLACEHOLDERS_CONFIG_FILE"

type app struct {
	configFile string
	logLevel   string
	diOpts     []di.Option
}

// Option customizes NewRootCommand.
type Option func(*app)

// WithContainerOptions passes opts to every container the commands create.
func WithContainerOptions(opts ...di.Option) Option {
	return func(a *app) {
		a.diOpts = append(a.diOpts, opts...)
	}
}

// NewRootCommand returns the placeholders command tree.
func NewRootCommand(opts ...Option) *cobra.Command {
	a := &app{}
	for _, opt := range opts {
		opt(a)
	}

	root := &cobra.Command{
		Use:   "placeholders",
		Short: "Render and maintain content placeholders",
		Long: `placeholders renders the content items stored in page placeholders,
caching item and placeholder output, and maintains the item tables.

Quick Start:
  placeholders serve                                   Start the HTTP server
  placeholders render --parent-type 5 --parent-id 1 --slot main
  placeholders plugins                                 List registered plugins
  placeholders remove-stale-items --dry-run            Report orphaned items`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (can also use "+ConfigFileEnv+")")
	root.PersistentFlags().StringVarP(&a.logLevel, "log-level", "l", "", "log level override (debug, info, warn, error)")

	root.AddCommand(
		newServeCommand(a),
		newRenderCommand(a),
		newSearchTextCommand(a),
		newRemoveStaleItemsCommand(a),
		newCacheKeysCommand(a),
		newPluginsCommand(a),
	)
	return root
}

// Execute runs the command tree against os.Args.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func (a *app) settings() (*config.Settings, error) {
	file := a.configFile
	if file == "" {
		file = os.Getenv(ConfigFileEnv)
	}
	v, err := config.New(file)
	if err != nil {
		return nil, err
	}
	if a.logLevel != "" {
		v.Set("log.level", a.logLevel)
	}
	return config.Load(v)
}

// container builds the services for one command run. The caller closes it.
func (a *app) container(cmd *cobra.Command) (*di.Container, error) {
	settings, err := a.settings()
	if err != nil {
		return nil, err
	}
	opts := append([]di.Option{di.WithLogOutput(cmd.ErrOrStderr())}, a.diOpts...)
	return di.NewContainer(cmd.Context(), settings, opts...)
}
