package demo

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sthembisoo/reportit/config"
	"github.com/sthembisoo/reportit/hooks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStart_ReportsWorkersToFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "exceptions.log")
	flagWorkers, flagBridge, flagLogFile = 4, string(config.BridgeFile), logFile
	t.Cleanup(func() { flagWorkers, flagBridge, flagLogFile = 3, "", "" })

	before := hooks.Global().GoroutineHandler()
	var stderr bytes.Buffer
	require.NoError(t, start(&stderr))

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	text := string(data)

	assert.Equal(t, 5, strings.Count(text, "Exception Report - "))
	assert.Equal(t, 4, strings.Count(text, "Message: runtime error: integer divide by zero"))
	assert.Contains(t, text, "Thread: worker-4 (ID: ")
	assert.Contains(t, text, "Message: demo: manual report after workers finished")
	assert.Contains(t, text, "Scope: worker")
	assert.Contains(t, text, "demo.divide\n\t")

	assert.Equal(t, 4, strings.Count(stderr.String(), "panic: runtime error: integer divide by zero"))
	assert.Contains(t, stderr.String(), "reported 4 worker failures")

	assert.False(t, hooks.Global().Installed())
	assert.Same(t, before, hooks.Global().GoroutineHandler())
}

func TestStart_InvalidBridge(t *testing.T) {
	flagBridge = "pigeon"
	t.Cleanup(func() { flagBridge = "" })

	err := start(&bytes.Buffer{})
	assert.ErrorIs(t, err, config.ErrInvalidBridge)
	assert.False(t, hooks.Global().Installed())
}
