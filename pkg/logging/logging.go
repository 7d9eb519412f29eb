// Package logging builds the engine's zap logger and scrubs credentials
// from anything that ends up in log output.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New constructs the process logger. The "local" environment gets a
// human-readable development logger; everything else logs production JSON.
//
// Stdio transport note: the MCP protocol owns stdout, so all log output is
// routed to stderr regardless of environment.
func New(env string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "local" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
