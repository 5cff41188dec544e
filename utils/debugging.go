package utils

import (
	"log/slog"
	"time"
)

// Logs how long the enclosing call took at debug level.
//
//	defer utils.TimeMethod(logger, "build")()
func TimeMethod(logger *slog.Logger, name string) func() {
	start := time.Now()
	return func() {
		logger.Debug(name+" finished", "took", time.Since(start))
	}
}
