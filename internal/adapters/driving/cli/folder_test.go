package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFolderCmd_Use(t *testing.T) {
	assert.Equal(t, "folder [dir]", folderCmd.Use)
}

func TestFolderCmd_Short(t *testing.T) {
	assert.Equal(t, "Diff every prod/dev response pair in a folder", folderCmd.Short)
}

func TestFolderCmd_DiffsResponsePairs(t *testing.T) {
	dir := t.TempDir()
	writeFeed(t, dir, "prod_response_1_abc123.txt", "id,title\n1,Widget\n2,Gadget\n")
	writeFeed(t, dir, "dev_response_1_abc123.txt", "id,title\n1,Widget Pro\n2,Gadget\n")

	out, err := runCommand(t, "folder", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "1 case(s)")
	assert.Contains(t, out, "ok")
}

func TestFolderCmd_ReportsMissingCounterpart(t *testing.T) {
	dir := t.TempDir()
	writeFeed(t, dir, "prod_response_1_abc123.txt", "id\n1\n")

	out, err := runCommand(t, "folder", dir, "--json")
	require.NoError(t, err)

	assert.Contains(t, out, "Missing dev file")
}

func TestIsResponseFile(t *testing.T) {
	assert.True(t, isResponseFile("/runs/x/prod_response_3_deadbeef.txt"))
	assert.True(t, isResponseFile("dev_response_0_a1.txt"))
	assert.False(t, isResponseFile("run_metadata.json"))
	assert.False(t, isResponseFile("prod_response_3_deadbeef.json"))
	assert.False(t, isResponseFile("response_3_deadbeef.txt"))
}
