package main

import (
	"github.com/spf13/cobra"

	"liuproxy_checker/internal/app"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web results page and REST API",
		Long: `serve loads the proxy list from [storage] proxies_file, then serves the
results page on [web] web_port. Proxies added or deleted through the page
are written back to the list file.`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}
	cmd.Flags().Int("port", -1, "Override [web] web_port")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, dir, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetInt("port"); port >= 0 {
		cfg.WebPort = port
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	return app.New(cfg, dir).Run(ctx)
}
