package slogc

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewFormats(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWriter(&buf, "fine", "json")
	require.NoError(t, err)

	Fine(logger, "request", "path", "/a.txt")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "FINE", line["level"])
	require.Equal(t, "request", line["msg"])
	require.Equal(t, "/a.txt", line["path"])
}

func TestNewLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWriter(&buf, "info", "text")
	require.NoError(t, err)

	Fine(logger, "hidden")
	logger.Debug("hidden")
	require.Empty(t, buf.String())

	logger.Info("shown")
	require.Contains(t, buf.String(), "msg=shown")
}

func TestNewInvalid(t *testing.T) {
	_, err := New("loud", "")
	require.ErrorContains(t, err, "invalid level 'loud'")

	_, err = New("", "xml")
	require.ErrorContains(t, err, "invalid format 'xml'")
}
