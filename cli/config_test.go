package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigWithoutFile(t *testing.T) {
	t.Setenv("GOTOCOMPANY_CONFIG_DIR", t.TempDir())
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	assert.ErrorIs(t, err, ErrConfigNotFound)
	require.NotNil(t, cfg)

	cfg, err = LoadPluginConfig()
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
}
