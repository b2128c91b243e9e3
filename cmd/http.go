package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/esmcp/logger"
	"github.com/esmcp/server"
)

var httpCmd = &cobra.Command{
	Use:   "http",
	Short: "serve MCP over streamable HTTP",
	RunE:  runHTTPCmd,
}

func init() {
	httpCmd.Flags().String("addr", "localhost:8080", "HTTP bind address")
	cobra.CheckErr(viper.BindPFlag("addr", httpCmd.Flags().Lookup("addr")))
	rootCmd.AddCommand(httpCmd)
}

func runHTTPCmd(cmd *cobra.Command, args []string) error {
	d, log, err := setup()
	if err != nil {
		return err
	}

	addr := viper.GetString("addr")
	srv := server.NewServer(server.DefaultConf(addr), d, logger.Component(log, "transport", addr))
	return srv.Run(cmd.Context())
}
