package log

import (
	"log/slog"
	"os"
	"runtime"
)

// SystemInfo describes the host the middleware runs on. Kernel details are
// filled in by platform code where they are available.
func SystemInfo() []any {
	attrs := []any{
		slog.String("goos", runtime.GOOS),
		slog.String("goarch", runtime.GOARCH),
		slog.String("go", runtime.Version()),
		slog.Int("cpus", runtime.NumCPU()),
	}
	if hostname, err := os.Hostname(); err == nil {
		attrs = append(attrs, slog.String("hostname", hostname))
	}
	if kernel := kernelInfo(); len(kernel) > 0 {
		attrs = append(attrs, slog.Group("kernel", kernel...))
	}
	return attrs
}
