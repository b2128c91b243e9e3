package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/esmcp/dispatch"
	"github.com/esmcp/es"
	"github.com/esmcp/logger"
	"github.com/esmcp/mcp"
	"github.com/esmcp/tools"
)

// version is set at build time via -ldflags "-X github.com/esmcp/cmd.version=..."
var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:           "esmcp",
	Short:         "MCP server exposing Elasticsearch operations to AI agents",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("es-url", "http://localhost:9200", "Elasticsearch endpoint URL")
	pf.String("es-api-key", "", "Elasticsearch API key")
	pf.String("es-username", "", "Elasticsearch username (basic auth)")
	pf.String("es-password", "", "Elasticsearch password (basic auth)")
	pf.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	pf.Bool("log-pretty", false, "human-readable log output")

	cobra.CheckErr(viper.BindPFlags(pf))

	// Flags may also come from the environment: ESMCP_ES_URL, etc.
	viper.SetEnvPrefix("ESMCP")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup wires configuration, logging, the Elasticsearch client, the tool
// registry and the dispatcher. Invalid configuration is fatal; an
// unreachable cluster is only a warning, since upstream failures are
// reported per request.
func setup() (*dispatch.Dispatcher, zerolog.Logger, error) {
	log := logger.New(viper.GetString("log-level"), viper.GetBool("log-pretty"))

	client, err := es.NewClient(es.Config{
		Address:  viper.GetString("es-url"),
		APIKey:   viper.GetString("es-api-key"),
		Username: viper.GetString("es-username"),
		Password: viper.GetString("es-password"),
	})
	if err != nil {
		return nil, log, fmt.Errorf("elasticsearch client: %w", err)
	}

	probeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if res, err := client.Info(client.Info.WithContext(probeCtx)); err != nil {
		log.Warn().Err(err).Str("url", viper.GetString("es-url")).Msg("elasticsearch cluster unreachable at startup")
	} else {
		res.Body.Close()
		log.Info().Str("url", viper.GetString("es-url")).Msg("connected to elasticsearch")
	}

	esTools := tools.NewElasticsearchTools(client, log)
	registry, err := tools.NewRegistry(esTools.Descriptors()...)
	if err != nil {
		return nil, log, fmt.Errorf("tool registry: %w", err)
	}

	d := dispatch.New(registry, mcp.NewServerInfo("esmcp", version), log)
	return d, log, nil
}
