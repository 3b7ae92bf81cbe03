package cli

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-content-placeholders/internal/httpapi"
)

func newServeCommand(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"s"},
		Short:   "Serve rendered placeholders over HTTP",
		Long: `Serve rendered placeholders, their search text and the engine metrics.

Examples:
  placeholders serve
  placeholders serve --addr 127.0.0.1:9000`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.container(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			settings := c.Settings()
			if addr == "" {
				addr = settings.Server.Addr
			}
			if settings.Log.Level != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}
			server := httpapi.New(c.Engine(),
				httpapi.WithLogger(c.Logger()),
				httpapi.WithGatherer(c.Gatherer()),
			)
			return server.Run(cmd.Context(), addr, settings.Server.ShutdownTimeout)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from server.addr)")
	return cmd
}
