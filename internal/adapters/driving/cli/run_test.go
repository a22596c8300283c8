package cli

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCmd_Use(t *testing.T) {
	assert.Equal(t, "run [params-file]", runCmd.Use)
}

func TestRunCmd_Short(t *testing.T) {
	assert.Equal(t, "Fetch and diff feeds for every test case in a params file", runCmd.Short)
}

func TestRunCmd_RequiresEndpoints(t *testing.T) {
	params := writeFeed(t, t.TempDir(), "params.csv", "id,params\n1,?connection_info[store_hash]=abc\n")

	_, err := runCommand(t, "run", params)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoints.prod")
	assert.Contains(t, err.Error(), "endpoints.dev")
}

func TestRunCmd_FetchesAndDiffs(t *testing.T) {
	prodSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("id,title\n1,Widget\n2,Gadget\n")) //nolint:errcheck
	}))
	defer prodSrv.Close()
	devSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("id,title\n1,Widget Pro\n2,Gadget\n")) //nolint:errcheck
	}))
	defer devSrv.Close()

	cfgDir := t.TempDir()
	_, err := runCommandInConfig(t, cfgDir, "config", "set", "endpoints.prod", prodSrv.URL)
	require.NoError(t, err)
	_, err = runCommandInConfig(t, cfgDir, "config", "set", "endpoints.dev", devSrv.URL)
	require.NoError(t, err)

	params := writeFeed(t, t.TempDir(), "params.csv",
		"id,params\n1,\"?connection_info[store_hash]=abc&connection_info[shop_name]=acme\"\n")
	outDir := t.TempDir()
	defer func() { flagRunOutputDir = "" }()

	out, err := runCommandInConfig(t, cfgDir, "run", params, "--output-dir", outDir, "--json")
	require.NoError(t, err)

	assert.Contains(t, out, `"count": 1`)
	assert.Contains(t, out, `"rows_updated": 1`)
	assert.Contains(t, out, `"shop_name": "acme"`)

	// One run folder with both response files and the run metadata.
	folders, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, folders, 1)

	entries, err := os.ReadDir(filepath.Join(outDir, folders[0].Name()))
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "run_metadata.json")
	assert.Contains(t, names, "summary.json")

	var prodFiles, devFiles int
	for _, n := range names {
		if isResponseFile(n) {
			if n[:4] == "prod" {
				prodFiles++
			} else {
				devFiles++
			}
		}
	}
	assert.Equal(t, 1, prodFiles)
	assert.Equal(t, 1, devFiles)
}

func TestRunCmd_MissingParamsFile(t *testing.T) {
	_, err := runCommand(t, "run", filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}
