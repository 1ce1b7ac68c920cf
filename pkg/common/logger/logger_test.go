package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithOutputWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	InitWithOutput(&buf, "warn")

	WithField("identifier", "P1").Info("dropped")
	WithFields(map[string]interface{}{"identifier": "P1", "peer": "10.0.0.5:3000"}).Warn("peer registry exchange failed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, "P1", entry["identifier"])
	assert.Equal(t, "peer registry exchange failed", entry["msg"])
}

func TestInitWithOutputDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	InitWithOutput(&buf, "verbose")
	assert.Equal(t, "info", Log.GetLevel().String())
}
