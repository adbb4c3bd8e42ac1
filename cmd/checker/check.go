package main

import (
	"github.com/spf13/cobra"

	"liuproxy_checker/internal/app"
)

// NewCheckCmd creates the check command.
func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <proxy-list>",
		Short: "Validate every proxy in a list file once and print the results",
		Long: `check runs a single validation over a proxy list file and prints a table.

The list file holds one proxy per line, either "host|port|kind" or
"kind://host:port". Files ending in .yaml or .yml use:

  proxies:
    - host: 1.2.3.4
      port: 1080
      kind: socks5`,
		Args: cobra.ExactArgs(1),
		RunE: runCheckCmd,
	}
	cmd.Flags().BoolP("quiet", "q", false, "Do not print a line per finished proxy")
	return cmd
}

func runCheckCmd(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	progress := cmd.ErrOrStderr()
	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		progress = nil
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	return app.RunCheck(ctx, cfg, args[0], cmd.OutOrStdout(), progress)
}
