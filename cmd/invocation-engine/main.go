// Command invocation-engine wires the host-function invocation core up to
// a process: configuration, logging, and the gRPC-health-plus-HTTP/JSON
// network surface, following contract-events-processor/go/main.go's
// load-config-then-serve shape.
package main

import (
	"strings"

	"go.uber.org/zap"

	"github.com/withobsrvr/soroban-invocation-core/config"
	"github.com/withobsrvr/soroban-invocation-core/host"
	"github.com/withobsrvr/soroban-invocation-core/logging"
	"github.com/withobsrvr/soroban-invocation-core/rentsize"
	"github.com/withobsrvr/soroban-invocation-core/server"
)

func main() {
	logger, err := logging.NewComponentLogger("invocation-engine", "dev")
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	schedule, err := config.LoadFeeScheduleFile(cfg.FeeScheduleFile)
	if err != nil {
		logger.Fatal("failed to load fee schedule", zap.Error(err))
	}

	logger = logger.With(
		zap.String("grpc_port", cfg.GRPCPort),
		zap.String("health_port", cfg.HealthPort),
		zap.String("network", cfg.NetworkPassphrase),
	)

	deps := server.PipelineDependencies{
		VM:            host.UnimplementedVM{},
		Estimator:     rentsize.ZeroEstimator{},
		FeeConfig:     schedule.Fee,
		RentFeeConfig: schedule.Rent,
	}

	healthAddr := ":" + strings.TrimPrefix(cfg.HealthPort, ":")
	srv := server.New(logger, cfg.GRPCPort, healthAddr, cfg.CPUInstructionLimit, cfg.MemoryLimit, deps)

	logger.Info("invocation engine starting")
	if err := srv.Start(); err != nil {
		logger.Fatal("server stopped unexpectedly", zap.Error(err))
	}
}
