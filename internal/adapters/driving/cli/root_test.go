package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	configfile "github.com/custodia-labs/feeddiff-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/feeddiff-cli/internal/core/domain"
)

// withConfigStore installs a throwaway config store seeded with values and
// restores the previous store after the test.
func withConfigStore(t *testing.T, values map[string]any) {
	t.Helper()
	store, err := configfile.NewConfigStore(t.TempDir())
	require.NoError(t, err)
	for k, v := range values {
		require.NoError(t, store.Set(k, v))
	}

	original := cfgStore
	cfgStore = store
	t.Cleanup(func() { cfgStore = original })
}

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "feeddiff", rootCmd.Use)
}

func TestStringSetting_FlagWins(t *testing.T) {
	withConfigStore(t, map[string]any{configfile.KeySummaryDir: "from-config"})
	assert.Equal(t, "from-flag", stringSetting("from-flag", configfile.KeySummaryDir, "def"))
}

func TestStringSetting_ConfigBeatsDefault(t *testing.T) {
	withConfigStore(t, map[string]any{configfile.KeySummaryDir: "from-config"})
	assert.Equal(t, "from-config", stringSetting("", configfile.KeySummaryDir, "def"))
}

func TestStringSetting_Default(t *testing.T) {
	withConfigStore(t, nil)
	assert.Equal(t, "def", stringSetting("", configfile.KeySummaryDir, "def"))
}

func TestIntSetting_Precedence(t *testing.T) {
	withConfigStore(t, map[string]any{configfile.KeyMaxExamples: int64(25)})
	assert.Equal(t, 5, intSetting(5, configfile.KeyMaxExamples, 10))
	assert.Equal(t, 25, intSetting(0, configfile.KeyMaxExamples, 10))

	withConfigStore(t, nil)
	assert.Equal(t, 10, intSetting(0, configfile.KeyMaxExamples, 10))
}

func TestPrimaryKey_Default(t *testing.T) {
	withConfigStore(t, nil)
	flagPrimaryKey = ""
	assert.Equal(t, "id", primaryKey())
}

func TestNoiseMarkers_Default(t *testing.T) {
	withConfigStore(t, nil)
	flagNoiseMarkers = nil
	assert.Equal(t, domain.DefaultNoiseMarkers(), noiseMarkers())
}

func TestNoiseMarkers_FromConfig(t *testing.T) {
	withConfigStore(t, map[string]any{configfile.KeyNoiseMarkers: []string{"price"}})
	flagNoiseMarkers = nil
	assert.Equal(t, []string{"price"}, noiseMarkers())
}

func TestNoiseMarkers_FlagWins(t *testing.T) {
	withConfigStore(t, map[string]any{configfile.KeyNoiseMarkers: []string{"price"}})
	flagNoiseMarkers = []string{"stock"}
	defer func() { flagNoiseMarkers = nil }()
	assert.Equal(t, []string{"stock"}, noiseMarkers())
}
