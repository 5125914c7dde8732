// Package logger builds the zap logger shared by the server and the
// lifecycle manager.
package logger

import (
	"fmt"

	"go.uber.org/zap"
)

// New returns a production (JSON) logger at the given level: debug, info,
// warn, error.
func New(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}

