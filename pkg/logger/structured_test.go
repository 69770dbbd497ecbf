package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("production", &buf)

	Info("listening on %d", 8090)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "rental-backend", line["service"])
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "listening on 8090", line["message"])
}

func TestInitWithWriter_ProductionSkipsDebug(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("production", &buf)

	GetLogger().Debug().Msg("hidden")
	assert.Empty(t, buf.String())
}

func TestWithSessionID(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("production", &buf)

	l := WithSessionID("abc")
	l.Warn().Msg("slow client")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "abc", line["session_id"])
}
