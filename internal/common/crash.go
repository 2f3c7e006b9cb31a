// -----------------------------------------------------------------------
// Crash reports for panics that escape stage recovery
// -----------------------------------------------------------------------

package common

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// CrashLogDir is where crash reports are written. Set by InstallCrashHandler.
var CrashLogDir = "./logs"

// InstallCrashHandler points crash reports at the configured log directory
func InstallCrashHandler(logDir string) {
	if logDir != "" {
		CrashLogDir = logDir
	}
	if err := os.MkdirAll(CrashLogDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: failed to create log directory: %v\n", err)
	}
}

// WriteCrashFile writes a report for panicVal and returns its path, or "" when
// the file could not be written (the report then goes to stderr only).
func WriteCrashFile(panicVal interface{}, stackTrace string) string {
	now := time.Now()
	crashPath := filepath.Join(CrashLogDir, fmt.Sprintf("secsignal-crash-%s.log", now.Format("20060102-150405")))

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	var report bytes.Buffer
	fmt.Fprintf(&report, "secsignal crash at %s\n", now.Format(time.RFC3339))
	fmt.Fprintf(&report, "version: %s\n", GetFullVersion())
	fmt.Fprintf(&report, "platform: %s/%s, goroutines: %d, heap: %d MB\n\n",
		runtime.GOOS, runtime.GOARCH, runtime.NumGoroutine(), memStats.Alloc/1024/1024)
	fmt.Fprintf(&report, "panic: %v\n\n%s\n", panicVal, stackTrace)
	report.WriteString("\ngoroutines:\n")
	report.WriteString(allGoroutineStacks())

	if err := os.WriteFile(crashPath, report.Bytes(), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: failed to write crash file: %v\n%s", err, report.String())
		return ""
	}

	fmt.Fprintf(os.Stderr, "\nsecsignal crashed: %v\nreport saved to %s\n", panicVal, crashPath)
	return crashPath
}

func allGoroutineStacks() string {
	buf := make([]byte, 64*1024)
	for len(buf) <= 16*1024*1024 {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			return string(buf[:n])
		}
		buf = make([]byte, len(buf)*2)
	}
	return string(buf[:runtime.Stack(buf, true)])
}

// RecoverWithCrashFile is deferred at the top of main. It writes a crash
// report and exits with status 1.
func RecoverWithCrashFile() {
	if r := recover(); r != nil {
		buf := make([]byte, 8192)
		n := runtime.Stack(buf, false)
		WriteCrashFile(r, string(buf[:n]))
		os.Exit(1)
	}
}
