//go:build !unix

package log

import (
	"log/slog"
	"os"
)

func kernelInfo() []any {
	if v, ok := os.LookupEnv("OS"); ok {
		return []any{slog.String("sysname", v)}
	}
	return nil
}
