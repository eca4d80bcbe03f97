package util

import (
	"log/slog"
	"time"
)

// Trace 记录耗时：defer Trace("xxx")()
func Trace(msg string) func() {
	start := time.Now()
	return func() {
		slog.Info(msg, "cost", time.Since(start))
	}
}
