package log

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

const (
	appName     = "prerender"
	logFileName = "prerender.log"
)

var (
	defaultDir     string
	defaultDirOnce sync.Once
)

// GetLogDir returns the directory log and stats files go to when none is
// configured: /var/log/prerender on Linux if writable, ~/.prerender
// otherwise, and a temp directory as the last resort.
func GetLogDir() string {
	defaultDirOnce.Do(func() {
		defaultDir = firstWritableDir(candidateDirs()...)
	})
	return defaultDir
}

func candidateDirs() []string {
	var dirs []string
	if runtime.GOOS == "linux" {
		dirs = append(dirs, filepath.Join("/var/log", appName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, "."+appName))
	}
	return dirs
}

// firstWritableDir creates and probes each dir in turn. The temp directory is
// returned if none of them can be written to.
func firstWritableDir(dirs ...string) string {
	for _, dir := range dirs {
		if writable(dir) {
			return dir
		}
	}
	dir := filepath.Join(os.TempDir(), appName)
	_ = os.MkdirAll(dir, 0755)
	return dir
}

func writable(dir string) bool {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false
	}
	f, err := os.CreateTemp(dir, ".write_test")
	if err != nil {
		return false
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return true
}

func GetLogFilePath() string {
	return filepath.Join(GetLogDir(), logFileName)
}

// GetStatsDir returns dir if set, creating it, or the default log directory.
func GetStatsDir(dir string) string {
	if dir == "" {
		return GetLogDir()
	}
	if !writable(dir) {
		return GetLogDir()
	}
	return dir
}
