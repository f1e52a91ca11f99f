package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/overlay/pkg/config"
	"github.com/matzehuels/overlay/pkg/server"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the render API over HTTP",
		Long: `Serve exposes the render pipeline over HTTP:

  POST /v1/render        render a JSON request, respond with the image
  GET  /v1/presets       list catalog presets
  GET  /v1/presets/{id}  show one preset
  GET  /healthz          liveness

Local file sources are refused unless [render] allow_files is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			comps, cfg, err := c.build(ctx, config.BuildOptions{NoCache: noCache})
			if err != nil {
				return err
			}
			defer comps.Close()

			if addr == "" {
				addr = cfg.Server.Addr
			}
			srv := server.New(comps.Runner, comps.Catalog, server.Options{
				RequestTimeout: cfg.Server.RequestTimeout,
				MaxBodyBytes:   cfg.Server.MaxBodyBytes,
				ReadTimeout:    cfg.Server.ReadTimeout,
				WriteTimeout:   cfg.Server.WriteTimeout,
				Logger:         c.Logger,
			})

			printInfo("Listening on %s", StyleLink.Render("http://"+displayAddr(addr)))
			printDetail("Cache: %s", cfg.Cache.Backend)
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

// displayAddr turns ":8080" into "localhost:8080".
func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
