// Package config loads this service's operator-tunable settings: listen
// addresses, budget limits, and the fee/rent price schedule. Consensus
// constants (spec.md §9(b): historical-fee base bytes, the code-entry rent
// divisor, the rent-write-fee floor) are never read from here — they stay
// compiled into package fee, since changing them is a protocol change, not
// an operator decision.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the invocation engine's process-level configuration, loaded
// from the environment the way contract-events-processor's config.LoadConfig
// does.
type Config struct {
	GRPCPort   string
	HealthPort string

	NetworkPassphrase string

	CPUInstructionLimit uint64
	MemoryLimit         uint64

	FeeScheduleFile string
}

// Load reads the process configuration from the environment, applying the
// same defaults-with-override pattern as the rest of this codebase's
// lineage.
func Load() (*Config, error) {
	cfg := &Config{
		GRPCPort:            getEnvOrDefault("GRPC_PORT", ":50211"),
		HealthPort:          getEnvOrDefault("HEALTH_PORT", "8090"),
		NetworkPassphrase:   os.Getenv("NETWORK_PASSPHRASE"),
		CPUInstructionLimit: uint64(getEnvUintOrDefault("CPU_INSTRUCTION_LIMIT", 100_000_000)),
		MemoryLimit:         uint64(getEnvUintOrDefault("MEMORY_LIMIT_BYTES", 40*1024*1024)),
		FeeScheduleFile:     os.Getenv("FEE_SCHEDULE_FILE"),
	}

	if !strings.HasPrefix(cfg.GRPCPort, ":") {
		cfg.GRPCPort = ":" + cfg.GRPCPort
	}

	if cfg.NetworkPassphrase == "" {
		return nil, fmt.Errorf("NETWORK_PASSPHRASE environment variable is required")
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvUintOrDefault(key string, defaultValue uint64) uint64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}
