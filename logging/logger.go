// Package logging builds this service's zap logger the way every processor
// in this codebase's lineage does: zap.NewProduction(), stamped with the
// component and version fields every log line should carry.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// NewComponentLogger builds a production zap logger pre-stamped with the
// component name and build version, mirroring
// contract-invocation-processor's NewContractInvocationServer /
// contract-events-processor's main.go logger setup.
func NewComponentLogger(component, version string) (*zap.Logger, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("logging: failed to initialize zap logger: %w", err)
	}
	return logger.With(
		zap.String("component", component),
		zap.String("version", version),
	), nil
}
