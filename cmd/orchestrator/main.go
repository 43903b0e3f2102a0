package main

import (
	"os"

	"github.com/ronappleton/logistics-orchestrator/internal/agents"
	"github.com/ronappleton/logistics-orchestrator/internal/cli"
	"github.com/ronappleton/logistics-orchestrator/internal/config"
	grpcserver "github.com/ronappleton/logistics-orchestrator/internal/grpc"
	"github.com/ronappleton/logistics-orchestrator/internal/httpserver"
	"github.com/ronappleton/logistics-orchestrator/internal/logging"
	"github.com/ronappleton/logistics-orchestrator/internal/metrics"
	"github.com/ronappleton/logistics-orchestrator/internal/otel"
	"github.com/ronappleton/logistics-orchestrator/internal/workflow"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func main() {
	rootCmd := cli.NewRootCommand()

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		startServer(configPath)
		return nil
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func startServer(configPath string) {
	app := fx.New(
		config.Module(configPath),
		logging.Module(),
		otel.Module(),
		metrics.Module(),
		agents.Module(),
		workflow.Module(),
		grpcserver.Module,
		httpserver.Module(),
	)

	app.Run()
}
