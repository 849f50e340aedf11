package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGlobalSettings(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	SetGlobalSettings("debug")
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
	assert.True(t, Enabled(zerolog.DebugLevel))

	SetGlobalSettings("nonsense")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
	assert.False(t, Enabled(zerolog.DebugLevel))
}

func TestWithField(t *testing.T) {
	buf := new(bytes.Buffer)
	logger := NewLogger(buf).WithField("epoch", "abc")
	logger.Infof("acquired %s", "lease")

	line := make(map[string]interface{})
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "abc", line["epoch"])
	assert.Equal(t, "acquired lease", line["message"])
	assert.Equal(t, "info", line["level"])
}
