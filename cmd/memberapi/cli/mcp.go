package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	mmcp "github.com/faucetdb/memberapi/internal/mcp"
)

func newMCPCmd(opts *rootOptions) *cobra.Command {
	var (
		transport string
		addr      string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for AI agents",
		Long: `Start a Model Context Protocol (MCP) server that exposes read-only admin
lookups as tools for AI agents. Supports stdio (default) and HTTP transports.

In stdio mode, the MCP server communicates over stdin/stdout using JSON-RPC.
Logs always go to stderr so they never corrupt the protocol stream.`,
		Example: `  memberapi mcp                                # stdio mode
  memberapi mcp --transport http --addr :8081  # Streamable HTTP mode`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			a, err := opts.openApp(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			if transport == "" {
				transport = a.settings.MCP.Transport
			}
			if addr == "" {
				addr = a.settings.MCP.Addr
			}

			srv := mmcp.NewMCPServer(a.identity, versionString(), a.logger)
			switch transport {
			case "stdio":
				return srv.ServeStdio()
			case "http":
				return srv.ServeHTTP(addr)
			default:
				return fmt.Errorf("unsupported transport %q (want stdio or http)", transport)
			}
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "", "Transport mode: stdio or http (default from mcp.transport)")
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (only used with --transport http)")

	return cmd
}
