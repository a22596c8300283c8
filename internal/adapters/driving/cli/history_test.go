package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryCmd_Use(t *testing.T) {
	assert.Equal(t, "history", historyCmd.Use)
}

func TestHistoryCmd_Short(t *testing.T) {
	assert.Equal(t, "List recent batch runs", historyCmd.Short)
}

func TestHistoryCmd_EmptyStore(t *testing.T) {
	out, err := runCommand(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded yet.")
}

func TestHistoryCmd_ListsFolderRuns(t *testing.T) {
	cfgDir := t.TempDir()
	dir := t.TempDir()
	writeFeed(t, dir, "prod_response_1_abc123.txt", "id\n1\n")
	writeFeed(t, dir, "dev_response_1_abc123.txt", "id\n1\n2\n")

	// A folder run records itself in history under the same config dir.
	_, err := runCommandInConfig(t, cfgDir, "folder", dir)
	require.NoError(t, err)

	out, err := runCommandInConfig(t, cfgDir, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "folder")
	assert.Contains(t, out, dir)
}

func TestHistoryDir(t *testing.T) {
	flagConfigDir = ""
	assert.Equal(t, "", historyDir())

	flagConfigDir = "/tmp/custom"
	defer func() { flagConfigDir = "" }()
	assert.Equal(t, "/tmp/custom/data", historyDir())
}
