package planning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadTriggerConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trigger.yaml")
	require.NoError(t, os.WriteFile(path, []byte("enabled: true\nthreshold: 5\ninterval_seconds: 30\n"), 0644))

	cfg, err := LoadTriggerConfig(path)
	require.NoError(t, err)
	require.True(t, cfg.Enabled)
	require.Equal(t, 5, cfg.Threshold)
	require.Equal(t, 30, cfg.IntervalSeconds)
}

func TestLoadTriggerConfigJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trigger.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"enabled":true,"threshold":3,"interval_seconds":10}`), 0644))

	cfg, err := LoadTriggerConfig(path)
	require.NoError(t, err)
	require.True(t, cfg.Enabled)
	require.Equal(t, 3, cfg.Threshold)
}

func TestLoadTriggerConfigUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trigger.toml")
	require.NoError(t, os.WriteFile(path, []byte("enabled = true"), 0644))
	_, err := LoadTriggerConfig(path)
	require.Error(t, err)
}

func TestDecodeTriggerConfig(t *testing.T) {
	cfg, err := DecodeTriggerConfig(strings.NewReader("threshold: 7\n"), "yaml")
	require.NoError(t, err)
	require.Equal(t, 7, cfg.Threshold)

	_, err = DecodeTriggerConfig(strings.NewReader("{}"), "ini")
	require.Error(t, err)
}
