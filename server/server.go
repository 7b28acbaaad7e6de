// Package server wires the invocation/simulation pipelines up to a network
// surface: a gRPC listener carrying the standard gRPC health-checking
// protocol (google.golang.org/grpc/health), and an HTTP/JSON surface for
// the domain operations themselves — grounded on
// contract-data-processor/go/server/hybrid_server.go's gRPC+health+HTTP
// shape and contract-invocation-processor/go/server/server.go's zap-based
// server struct. No bespoke .proto/.pb.go is authored here: the gRPC
// surface is exactly the standard health-check service, nothing more.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/withobsrvr/soroban-invocation-core/budget"
	"github.com/withobsrvr/soroban-invocation-core/fee"
	"github.com/withobsrvr/soroban-invocation-core/host"
	"github.com/withobsrvr/soroban-invocation-core/invocation"
	"github.com/withobsrvr/soroban-invocation-core/metrics"
	"github.com/withobsrvr/soroban-invocation-core/rentsize"
	"github.com/withobsrvr/soroban-invocation-core/simulation"
)

// serviceName is the name this core registers its health status under
// (grpc_health_v1.HealthCheckResponse is partitioned by service name, and
// hybrid_server.go's pattern registers one entry per logical service it
// exposes).
const serviceName = "soroban.invocationcore.v1.InvocationService"

// budgetFactory builds a fresh budget.Budget for each inbound request —
// every pipeline run needs its own isolated budget (spec.md §4.5: the
// budget is one-shot per session).
type budgetFactory struct {
	cpuLimit uint64
	memLimit uint64
}

func (f budgetFactory) New() *budget.Budget {
	return budget.New(f.cpuLimit, f.memLimit)
}

// PipelineDependencies bundles the collaborators every request needs that
// aren't carried in the request body itself: the VM (spec.md §1 non-goal,
// injected by whatever process wires this server up), the rent-size
// estimator, and the operator-tunable fee schedule.
type PipelineDependencies struct {
	VM                        host.VM
	Estimator                 rentsize.ModuleCostEstimator
	FeeConfig                 fee.FeeConfiguration
	RentFeeConfig             fee.RentFeeConfiguration
	SignatureExpirationLedger uint32
}

// Server is the invocation engine's network surface.
type Server struct {
	logger *zap.Logger

	grpcAddr string
	httpAddr string

	grpcServer   *grpc.Server
	healthServer *health.Server
	httpServer   *http.Server

	budgets budgetFactory
	deps    PipelineDependencies
}

// New builds a Server. grpcAddr/httpAddr are ":port"-style listen
// addresses (config.Config.GRPCPort/HealthPort).
func New(logger *zap.Logger, grpcAddr, httpAddr string, cpuLimit, memLimit uint64, deps PipelineDependencies) *Server {
	healthServer := health.NewServer()
	grpcServer := grpc.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	s := &Server{
		logger:       logger,
		grpcAddr:     grpcAddr,
		httpAddr:     httpAddr,
		grpcServer:   grpcServer,
		healthServer: healthServer,
		budgets:      budgetFactory{cpuLimit: cpuLimit, memLimit: memLimit},
		deps:         deps,
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/v1/invoke", s.withCorrelationID(s.handleInvoke))
	mux.HandleFunc("/v1/simulate", s.withCorrelationID(s.handleSimulate))
	s.httpServer = &http.Server{Addr: httpAddr, Handler: mux}

	return s
}

// Start runs the gRPC and HTTP listeners. The gRPC listener blocks the
// calling goroutine; call this in its own goroutine, as
// contract-events-processor/go/main.go does with its health-check server.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		return fmt.Errorf("server: failed to listen on %s: %w", s.grpcAddr, err)
	}

	s.healthServer.SetServingStatus(serviceName, grpc_health_v1.HealthCheckResponse_SERVING)

	go func() {
		s.logger.Info("starting http surface", zap.String("address", s.httpAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http surface stopped unexpectedly", zap.Error(err))
		}
	}()

	s.logger.Info("starting grpc surface", zap.String("address", s.grpcAddr))
	return s.grpcServer.Serve(lis)
}

// Stop gracefully stops both listeners.
func (s *Server) Stop() {
	s.healthServer.SetServingStatus(serviceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	s.grpcServer.GracefulStop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("http surface shutdown error", zap.Error(err))
	}
}

// withCorrelationID stamps every request with a correlation ID (a fresh
// UUID unless the caller already supplied one), echoing it back in the
// response header and carrying it through the request-scoped logger —
// mirroring the per-request structured-logging pattern every processor in
// this codebase's lineage uses, generalized with google/uuid since this
// core's requests don't arrive pre-correlated by a ledger sequence number.
func (s *Server) withCorrelationID(next func(http.ResponseWriter, *http.Request, *zap.Logger)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Correlation-Id")
		if correlationID == "" {
			correlationID = uuid.NewString()
		}
		w.Header().Set("X-Correlation-Id", correlationID)
		next(w, r, s.logger.With(zap.String("correlation_id", correlationID)))
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// observeBudgetExceeded records a pipeline-aborting budget exhaustion,
// labeled by the counter that crossed its cap (spec.md §7: Budget/Exceeded
// always aborts the pipeline).
func observeBudgetExceeded(err error) {
	var exceeded *budget.ExceededError
	if errors.As(err, &exceeded) {
		metrics.BudgetExceededTotal.WithLabelValues(exceeded.Counter).Inc()
	}
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request, logger *zap.Logger) {
	var req invokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	in, err := req.toEnforcingInput(s.deps.VM, &s.budgets, s.deps)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	start := time.Now()
	result, err := invocation.Invoke(in)
	metrics.InvocationDurationSeconds.WithLabelValues("enforcing").Observe(time.Since(start).Seconds())
	if err != nil {
		logger.Error("enforcing invocation aborted", zap.Error(err))
		metrics.EnforcingInvocationsTotal.WithLabelValues("aborted").Inc()
		observeBudgetExceeded(err)
		writeJSONError(w, http.StatusUnprocessableEntity, err)
		return
	}

	metrics.ObserveOutcome(metrics.EnforcingInvocationsTotal, result.CarriedError != nil)
	metrics.CPUInstructionsConsumed.Observe(float64(in.Budget.CPUConsumed()))
	metrics.ResourceFeeNonRefundable.Observe(float64(result.ResourceFeeNonRefundable))
	metrics.ResourceFeeRefundable.Observe(float64(result.ResourceFeeRefundable))
	metrics.RentFeeTotal.Observe(float64(result.RentFee))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(newInvokeResponse(result))
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request, logger *zap.Logger) {
	var req simulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	if _, err := req.buildSnapshot(); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	in := req.toRecordingInput(s.deps.VM, &s.budgets, s.deps)

	start := time.Now()
	result, err := simulation.Invoke(in)
	metrics.InvocationDurationSeconds.WithLabelValues("recording").Observe(time.Since(start).Seconds())
	if err != nil {
		logger.Error("recording invocation aborted", zap.Error(err))
		metrics.RecordingInvocationsTotal.WithLabelValues("aborted").Inc()
		observeBudgetExceeded(err)
		writeJSONError(w, http.StatusUnprocessableEntity, err)
		return
	}

	metrics.ObserveOutcome(metrics.RecordingInvocationsTotal, result.CarriedError != nil)
	metrics.RestoredEntriesTotal.Add(float64(len(result.RestoredRWEntryIndices)))
	metrics.ResourceFeeNonRefundable.Observe(float64(result.ResourceFeeNonRefundable))
	metrics.ResourceFeeRefundable.Observe(float64(result.ResourceFeeRefundable))
	metrics.RentFeeTotal.Observe(float64(result.RentFee))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(newSimulateResponse(result))
}
