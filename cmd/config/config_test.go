package configcmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sthembisoo/reportit/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShow_MergesFileAndOverrides(t *testing.T) {
	t.Setenv(config.EnvEnabled, "")
	t.Setenv(config.EnvConfigFile, "")
	file := filepath.Join(t.TempDir(), "reportit.yaml")
	require.NoError(t, os.WriteFile(file, []byte("enabled: true\nlog_file: /tmp/app.log\n"), 0o644))

	var out bytes.Buffer
	require.NoError(t, show(&out, config.Overrides{File: file, Bridge: config.BridgeBoth}))

	assert.Contains(t, out.String(), "enabled = true")
	assert.Contains(t, out.String(), `bridge = "both"`)
	assert.Contains(t, out.String(), `log_file = "/tmp/app.log"`)
}

func TestShow_InvalidBridge(t *testing.T) {
	err := show(&bytes.Buffer{}, config.Overrides{Bridge: "smoke-signal"})
	assert.ErrorIs(t, err, config.ErrInvalidBridge)
}
