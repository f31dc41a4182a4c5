//go:build unix

package log

import (
	"log/slog"

	"golang.org/x/sys/unix"
)

func kernelInfo() []any {
	var uname unix.Utsname
	if err := unix.Uname(&uname); err != nil {
		return nil
	}
	return []any{
		slog.String("sysname", unix.ByteSliceToString(uname.Sysname[:])),
		slog.String("release", unix.ByteSliceToString(uname.Release[:])),
		slog.String("machine", unix.ByteSliceToString(uname.Machine[:])),
	}
}
