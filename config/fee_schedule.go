package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/withobsrvr/soroban-invocation-core/fee"
)

// FeeSchedule is the operator-tunable price table behind package fee's pure
// functions: per-unit prices change with network conditions (spec.md §4.9
// calls these "network configuration", distinct from the consensus
// constants baked into package fee itself). Loaded from YAML rather than
// env vars, since it is a table of a dozen-plus related prices rather than
// a handful of independent scalars.
type FeeSchedule struct {
	Fee          fee.FeeConfiguration          `yaml:"fee"`
	Rent         fee.RentFeeConfiguration      `yaml:"rent"`
	RentWriteFee fee.RentWriteFeeConfiguration `yaml:"rent_write_fee"`
}

// LoadFeeScheduleFile parses a fee schedule YAML file. An empty path is not
// an error: callers fall back to whatever zero-valued configuration the
// caller considers sensible defaults (tests, or a network-specific default
// compiled in by the caller).
func LoadFeeScheduleFile(path string) (FeeSchedule, error) {
	if path == "" {
		return FeeSchedule{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return FeeSchedule{}, fmt.Errorf("config: reading fee schedule file %q: %w", path, err)
	}
	var schedule FeeSchedule
	if err := yaml.Unmarshal(data, &schedule); err != nil {
		return FeeSchedule{}, fmt.Errorf("config: parsing fee schedule file %q: %w", path, err)
	}
	return schedule, nil
}
