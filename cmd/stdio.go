package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/esmcp/logger"
	"github.com/esmcp/stdio"
)

var stdioCmd = &cobra.Command{
	Use:   "stdio",
	Short: "serve MCP over stdin/stdout",
	RunE:  runStdioCmd,
}

func init() {
	rootCmd.AddCommand(stdioCmd)
}

func runStdioCmd(cmd *cobra.Command, args []string) error {
	d, log, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	t := stdio.Stdio()
	defer t.Close()

	log = logger.Component(log, "transport", "stdio")
	log.Info().Msg("serving MCP on stdio")
	return d.Serve(ctx, t)
}
