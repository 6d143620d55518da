package crash_test

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sthembisoo/reportit/config"
	"github.com/sthembisoo/reportit/crash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	envCrashMode = "REPORTIT_TEST_CRASH_MODE"
	envCrashLog  = "REPORTIT_TEST_CRASH_LOG"
)

func TestMain(m *testing.M) {
	if mode := os.Getenv(envCrashMode); mode != "" {
		crashProcess(mode, os.Getenv(envCrashLog))
		return
	}
	os.Exit(m.Run())
}

//go:noinline
func divide(a, b int) int {
	return a / b
}

// crashProcess runs in a child process and is expected to die from an
// unrecovered panic after it has been reported.
func crashProcess(mode, logFile string) {
	defer crash.Guard()

	if err := crash.Enable(config.Overrides{
		Enabled: config.Bool(true),
		Bridge:  config.BridgeFile,
		LogFile: logFile,
	}); err != nil {
		fmt.Fprintln(os.Stderr, "enable:", err)
		os.Exit(3)
	}

	switch mode {
	case "main":
		divide(1, 0)
	case "worker":
		select {
		case <-crash.Go("worker", func() { divide(1, 0) }):
		case <-time.After(10 * time.Second):
		}
	}

	fmt.Fprintln(os.Stderr, "process survived the panic")
	os.Exit(4)
}

func TestProcess_UnrecoveredPanicKeepsRuntimeBehaviour(t *testing.T) {
	for _, mode := range []string{"main", "worker"} {
		t.Run(mode, func(t *testing.T) {
			logFile := filepath.Join(t.TempDir(), "exceptions.log")

			cmd := exec.Command(os.Args[0], "-test.run=^$")
			cmd.Env = append(os.Environ(), envCrashMode+"="+mode, envCrashLog+"="+logFile)
			var stderr bytes.Buffer
			cmd.Stderr = &stderr

			err := cmd.Run()

			var exitErr *exec.ExitError
			require.True(t, errors.As(err, &exitErr), "expected a crash, got %v\n%s", err, stderr.String())
			assert.Equal(t, 2, exitErr.ExitCode(), stderr.String())
			assert.Contains(t, stderr.String(), "panic: runtime error: integer divide by zero")

			data, err := os.ReadFile(logFile)
			require.NoError(t, err)
			text := string(data)
			assert.Equal(t, 1, strings.Count(text, "Exception Report - "))
			assert.Contains(t, text, "Message: runtime error: integer divide by zero")
			assert.Contains(t, text, "crash_test.divide\n\t")
			if mode == "main" {
				assert.Contains(t, text, "Main Thread: true")
			} else {
				assert.Contains(t, text, "Thread: worker (ID: ")
			}
		})
	}
}
