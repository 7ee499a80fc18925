package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "OFF", LogLevelOff.String())
	assert.Equal(t, "ERROR", LogLevelError.String())
	assert.Equal(t, "WARN", LogLevelWarn.String())
	assert.Equal(t, "INFO", LogLevelInfo.String())
	assert.Equal(t, "DEBUG", LogLevelDebug.String())

	// Out-of-range values render instead of panicking.
	assert.Equal(t, "LogLevel(42)", LogLevel(42).String())
	assert.Equal(t, "LogLevel(-1)", LogLevel(-1).String())
}

func TestLogLevelUnmarshalText(t *testing.T) {
	var level LogLevel
	require.NoError(t, level.UnmarshalText([]byte("debug")))
	assert.Equal(t, LogLevelDebug, level)

	require.NoError(t, level.UnmarshalText([]byte("ERROR")))
	assert.Equal(t, LogLevelError, level)

	assert.Error(t, level.UnmarshalText([]byte("verbose")))
}
