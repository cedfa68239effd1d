package cmd

import (
	"bytes"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	root := RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestConfigCommandReflectsFlags(t *testing.T) {
	out, err := execute(t, "config", "--backend", "null", "--buffer-ms", "300", "-i", "USB Mic")
	require.NoError(t, err)
	assert.Contains(t, out, `backend: "null"`)
	assert.Contains(t, out, "capacity_ms: 300")
	assert.Contains(t, out, "input: USB Mic")
	assert.Contains(t, out, "prefill_ms: 20", "unset flags keep their defaults")
}

func TestConfigCommandReadsEnvironment(t *testing.T) {
	t.Setenv("AUDIOLOOP_AUDIO_MISMATCH", "match-capture")

	out, err := execute(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "mismatch: match-capture")
}

func TestInvalidSettingsFailBeforeRunning(t *testing.T) {
	_, err := execute(t, "config", "--buffer-ms", "1")
	require.Error(t, err)

	_, err = execute(t, "devices", "--backend", "oto")
	require.Error(t, err, "oto cannot capture")
}

func TestDevicesCommand(t *testing.T) {
	out, err := execute(t, "devices", "--backend", "null")
	require.NoError(t, err)
	assert.Contains(t, out, "Null Input [default]")
	assert.Contains(t, out, "Null Output [default]")
}

func TestRootRejectsArguments(t *testing.T) {
	_, err := execute(t, "loop")
	require.Error(t, err)
}
