package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComponentLevelOverride(t *testing.T) {
	var buf bytes.Buffer
	SetComponentLevel("chatty", "error")
	log := newZerologLogger("chatty", &buf)

	log.Infof("hidden")
	require.Empty(t, buf.String())

	log.Errorf("boom")
	require.Contains(t, buf.String(), "boom")

	buf.Reset()
	log = newZerologLogger("api", &buf)
	log.Infof("served")
	require.Contains(t, buf.String(), `"component":"api"`)
	require.Contains(t, buf.String(), "served")
}

func TestComponentLevelIgnoresUnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	SetComponentLevel("metrics", "loud")
	log := newZerologLogger("metrics", &buf)

	log.Infof("still emitted")
	require.Contains(t, buf.String(), "still emitted")
}
