package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig, *c)
}

func TestLoadOverridesDefaults(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "config.yaml")
	content := "rpc_port: 7700\npoll_interval: 5s\ndownload_dir: /tmp/dl\n"
	require.NoError(t, os.WriteFile(filename, []byte(content), 0o644))

	c, err := Load(filename)
	require.NoError(t, err)
	assert.Equal(t, 7700, c.RPCPort)
	assert.Equal(t, 5*time.Second, c.PollInterval.Std())
	assert.Equal(t, "/tmp/dl", c.DownloadDir)
	// Untouched fields keep their defaults.
	assert.Equal(t, DefaultConfig.RPCSecret, c.RPCSecret)
	assert.Equal(t, DefaultConfig.PageSize, c.PageSize)
}

func TestLoadBadYAML(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(filename, []byte("rpc_port: [nope"), 0o644))

	_, err := Load(filename)
	assert.Error(t, err)
}
