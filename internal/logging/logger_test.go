package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerToLevels(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerTo(&buf, "WARN")

	log.Info("dropped")
	assert.Zero(t, buf.Len())

	log.Warn("kept", "uuid", "b1")
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, "b1", rec["uuid"])
	assert.Equal(t, "WARN", rec["level"])
}
