package main

import (
	"os"
	"time"

	"github.com/clinicore/orchestrator/internal/archive"
	"github.com/clinicore/orchestrator/internal/cli"
	"github.com/clinicore/orchestrator/internal/config"
	grpcserver "github.com/clinicore/orchestrator/internal/grpc"
	"github.com/clinicore/orchestrator/internal/httpserver"
	"github.com/clinicore/orchestrator/internal/logging"
	"github.com/clinicore/orchestrator/internal/otel"
	"github.com/clinicore/orchestrator/internal/steps"
	"github.com/clinicore/orchestrator/internal/workflow"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
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
		otel.Module("clinical-orchestrator"),
		workflow.Module(),
		grpcserver.Module,
		httpserver.Module(),
		archive.Module(),
		fx.Invoke(registerClinicalWorkflows),
	)

	app.Run()
}

// registerClinicalWorkflows binds the bundled step set and builtin
// definitions before the servers come up. Registration failures are
// startup-time misconfiguration and abort the app.
func registerClinicalWorkflows(cfg config.Config, logger *zap.Logger, engine *workflow.Engine) error {
	timeout, err := time.ParseDuration(cfg.FHIR.Timeout)
	if err != nil {
		timeout = 15 * time.Second
	}
	client := steps.NewFHIRClient(cfg.FHIR.BaseURL, timeout)
	if client == nil {
		logger.Info("fhir sync disabled: no base url configured")
	}

	for _, step := range steps.All(client, logger) {
		if err := engine.RegisterStep(step); err != nil {
			return err
		}
	}
	for _, def := range workflow.BuiltinDefinitions {
		if err := engine.RegisterWorkflow(def); err != nil {
			return err
		}
		logger.Info("workflow registered", zap.String("workflow_id", def.ID))
	}
	return nil
}
